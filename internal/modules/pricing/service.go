// README: Pricing service computes fare estimates from a per-class rate table and a peak-hour multiplier.
package pricing

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"happyauto/internal/config"
	"happyauto/internal/types"
)

var ErrInvalidDistance = errors.New("invalid distance")

type Service struct {
	mu           sync.RWMutex
	rates        map[string]Rate
	defaultClass string

	currency       string
	peakMultiplier float64
	peakHours      [24]bool
	loc            *time.Location
}

func NewService(cfg config.PricingConfig) (*Service, error) {
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("pricing timezone: %w", err)
	}
	s := &Service{
		rates:          make(map[string]Rate, len(cfg.Rates)),
		defaultClass:   cfg.DefaultClass,
		currency:       cfg.Currency,
		peakMultiplier: cfg.PeakMultiplier,
		loc:            loc,
	}
	if s.defaultClass == "" {
		s.defaultClass = "auto"
	}
	for class, r := range cfg.Rates {
		s.rates[class] = Rate{VehicleClass: class, BaseFare: r.BaseFare, PerKm: r.PerKm}
	}
	if _, ok := s.rates[s.defaultClass]; !ok {
		return nil, fmt.Errorf("pricing: no rate for default class %q", s.defaultClass)
	}
	for _, h := range cfg.PeakHours {
		if h >= 0 && h < 24 {
			s.peakHours[h] = true
		}
	}
	return s, nil
}

// EstimateAt prices a trip quoted at the given instant. Callers pass the
// booking clock's reading so the peak decision is taken once and frozen into
// the fare. Unknown classes use the default class rate.
func (s *Service) EstimateAt(distanceKm float64, vehicleClass string, at time.Time) (Fare, error) {
	if math.IsNaN(distanceKm) || math.IsInf(distanceKm, 0) || distanceKm < 0 {
		return Fare{}, fmt.Errorf("%w: %v", ErrInvalidDistance, distanceKm)
	}
	rate := s.rateFor(vehicleClass)

	multiplier := 1.0
	peak := s.IsPeak(at)
	if peak {
		multiplier = s.peakMultiplier
	}
	base := decimal.NewFromFloat(rate.BaseFare)
	distanceFare := decimal.NewFromFloat(distanceKm).Mul(decimal.NewFromFloat(rate.PerKm))
	total := base.Add(distanceFare).Mul(decimal.NewFromFloat(multiplier))
	return Fare{
		VehicleClass: rate.VehicleClass,
		DistanceKm:   distanceKm,
		BaseFare:     types.FromDecimal(base, s.currency),
		DistanceFare: types.FromDecimal(distanceFare, s.currency),
		Total:        types.FromDecimal(total, s.currency),
		Peak:         peak,
		Multiplier:   multiplier,
		QuotedAt:     at.UTC(),
	}, nil
}

// IsPeak reports whether the hour of t in the configured zone is a peak hour.
func (s *Service) IsPeak(t time.Time) bool {
	return s.peakHours[t.In(s.loc).Hour()]
}

func (s *Service) rateFor(class string) Rate {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if r, ok := s.rates[class]; ok {
		return r
	}
	return s.rates[s.defaultClass]
}

// Rates returns a copy of the current rate table.
func (s *Service) Rates() map[string]Rate {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]Rate, len(s.rates))
	for k, v := range s.rates {
		out[k] = v
	}
	return out
}

type RateSource interface {
	ListRates(ctx context.Context) ([]Rate, error)
}

// LoadRates overlays rates from src onto the configured table and returns how
// many were applied. An empty source leaves the table unchanged.
func (s *Service) LoadRates(ctx context.Context, src RateSource) (int, error) {
	rates, err := src.ListRates(ctx)
	if err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range rates {
		s.rates[r.VehicleClass] = r
	}
	return len(rates), nil
}
