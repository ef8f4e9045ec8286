// README: Identifiers and coordinates shared by every module.
package types

import (
	"errors"
	"fmt"
)

type ID string

type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

var ErrInvalidCoordinates = errors.New("invalid coordinates")

// Validate checks lat ∈ [-90, 90] and lng ∈ [-180, 180].
func (p Point) Validate() error {
	if p.Lat != p.Lat || p.Lng != p.Lng {
		return fmt.Errorf("%w: NaN", ErrInvalidCoordinates)
	}
	if p.Lat < -90 || p.Lat > 90 {
		return fmt.Errorf("%w: latitude %f out of range", ErrInvalidCoordinates, p.Lat)
	}
	if p.Lng < -180 || p.Lng > 180 {
		return fmt.Errorf("%w: longitude %f out of range", ErrInvalidCoordinates, p.Lng)
	}
	return nil
}

func (p Point) String() string {
	return fmt.Sprintf("%f,%f", p.Lat, p.Lng)
}
