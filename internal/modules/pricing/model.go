// README: Pricing rate definition per vehicle class and the fare breakdown returned to callers.
package pricing

import (
	"time"

	"happyauto/internal/types"
)

type Rate struct {
	VehicleClass string
	BaseFare     float64
	PerKm        float64
}

// Fare is frozen into a delivery at booking time and never recomputed.
// BaseFare and DistanceFare are pre-multiplier; Total includes the multiplier.
type Fare struct {
	VehicleClass string
	DistanceKm   float64
	BaseFare     types.Money
	DistanceFare types.Money
	Total        types.Money
	Peak         bool
	Multiplier   float64
	QuotedAt     time.Time
}
