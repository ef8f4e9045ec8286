// README: JSON request and response shapes for the delivery API.
package handlers

import (
	"time"

	"happyauto/internal/modules/delivery"
	"happyauto/internal/modules/location"
	"happyauto/internal/modules/matching"
	"happyauto/internal/modules/pricing"
	"happyauto/internal/types"
)

type moneyResponse struct {
	Amount   float64 `json:"amount"`
	Minor    int64   `json:"amount_minor"`
	Currency string  `json:"currency"`
}

func toMoney(m types.Money) moneyResponse {
	return moneyResponse{Amount: m.Major(), Minor: m.Amount, Currency: m.Currency}
}

type vehicleResponse struct {
	Make  string  `json:"make"`
	Model string  `json:"model"`
	Year  int     `json:"year"`
	VIN   *string `json:"vin"`
}

type driverSummary struct {
	ID              types.ID     `json:"id"`
	Rating          float64      `json:"rating"`
	TotalDeliveries int          `json:"total_deliveries"`
	Location        *types.Point `json:"location,omitempty"`
}

type deliveryResponse struct {
	ID                types.ID        `json:"id"`
	CustomerID        types.ID        `json:"customer_id"`
	DriverID          *types.ID       `json:"driver_id"`
	SuggestedDriverID *types.ID       `json:"suggested_driver_id"`
	Status            delivery.Status `json:"status"`
	PaymentStatus     string          `json:"payment_status"`

	PickupAddress  string      `json:"pickup_address"`
	Pickup         types.Point `json:"pickup"`
	DropoffAddress string      `json:"dropoff_address"`
	Dropoff        types.Point `json:"dropoff"`

	Vehicle      vehicleResponse `json:"vehicle"`
	VehicleClass string          `json:"vehicle_class"`

	EstimatedDistanceKm float64       `json:"estimated_distance_km"`
	EstimatedTimeMin    float64       `json:"estimated_time_min"`
	EstimatedCost       moneyResponse `json:"estimated_cost"`
	RoutePolyline       string        `json:"route_polyline"`
	RouteSource         string        `json:"route_source"`

	ScheduledPickup *time.Time `json:"scheduled_pickup"`
	ActualPickup    *time.Time `json:"actual_pickup"`
	ActualDelivery  *time.Time `json:"actual_delivery"`
	CancelledAt     *time.Time `json:"cancelled_at"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`

	Driver *driverSummary `json:"driver,omitempty"`
}

func toDeliveryResponse(d *delivery.Delivery) deliveryResponse {
	return deliveryResponse{
		ID:                  d.ID,
		CustomerID:          d.CustomerID,
		DriverID:            d.DriverID,
		SuggestedDriverID:   d.SuggestedDriverID,
		Status:              d.Status,
		PaymentStatus:       string(d.PaymentStatus),
		PickupAddress:       d.PickupAddress,
		Pickup:              d.Pickup,
		DropoffAddress:      d.DropoffAddress,
		Dropoff:             d.Dropoff,
		Vehicle:             vehicleResponse{Make: d.Vehicle.Make, Model: d.Vehicle.Model, Year: d.Vehicle.Year, VIN: d.Vehicle.VIN},
		VehicleClass:        d.VehicleClass,
		EstimatedDistanceKm: d.EstimatedDistanceKm,
		EstimatedTimeMin:    d.EstimatedTimeMin,
		EstimatedCost:       toMoney(d.EstimatedCost),
		RoutePolyline:       d.RoutePolyline,
		RouteSource:         d.RouteSource,
		ScheduledPickup:     d.ScheduledPickup,
		ActualPickup:        d.ActualPickup,
		ActualDelivery:      d.ActualDelivery,
		CancelledAt:         d.CancelledAt,
		CreatedAt:           d.CreatedAt,
		UpdatedAt:           d.UpdatedAt,
	}
}

func toDeliveryList(ds []*delivery.Delivery) []deliveryResponse {
	out := make([]deliveryResponse, 0, len(ds))
	for _, d := range ds {
		out = append(out, toDeliveryResponse(d))
	}
	return out
}

func toDriverSummary(d *location.Driver) *driverSummary {
	return &driverSummary{
		ID:              d.ID,
		Rating:          d.Rating,
		TotalDeliveries: d.TotalDeliveries,
		Location:        d.Location,
	}
}

type fareResponse struct {
	VehicleClass string        `json:"vehicle_class"`
	BaseFare     moneyResponse `json:"base_fare"`
	DistanceFare moneyResponse `json:"distance_fare"`
	Total        moneyResponse `json:"total"`
	Peak         bool          `json:"peak"`
	Multiplier   float64       `json:"multiplier"`
	QuotedAt     time.Time     `json:"quoted_at"`
}

func toFare(f pricing.Fare) fareResponse {
	return fareResponse{
		VehicleClass: f.VehicleClass,
		BaseFare:     toMoney(f.BaseFare),
		DistanceFare: toMoney(f.DistanceFare),
		Total:        toMoney(f.Total),
		Peak:         f.Peak,
		Multiplier:   f.Multiplier,
		QuotedAt:     f.QuotedAt,
	}
}

type quoteResponse struct {
	DistanceKm  float64      `json:"distance_km"`
	DurationMin float64      `json:"duration_min"`
	Polyline    string       `json:"polyline"`
	RouteSource string       `json:"route_source"`
	Fare        fareResponse `json:"fare"`
}

func toQuote(q matching.Quote) quoteResponse {
	return quoteResponse{
		DistanceKm:  q.Route.DistanceKm,
		DurationMin: q.Route.DurationMin,
		Polyline:    q.Route.Polyline,
		RouteSource: string(q.Route.Source),
		Fare:        toFare(q.Fare),
	}
}

type bookRequest struct {
	PickupAddress   string     `json:"pickup_address"`
	PickupLat       *float64   `json:"pickup_lat"`
	PickupLng       *float64   `json:"pickup_lng"`
	DropoffAddress  string     `json:"dropoff_address"`
	DropoffLat      *float64   `json:"dropoff_lat"`
	DropoffLng      *float64   `json:"dropoff_lng"`
	VehicleMake     string     `json:"vehicle_make"`
	VehicleModel    string     `json:"vehicle_model"`
	VehicleYear     int        `json:"vehicle_year"`
	VehicleVIN      *string    `json:"vehicle_vin"`
	VehicleClass    string     `json:"vehicle_class"`
	ScheduledPickup *time.Time `json:"scheduled_pickup"`
}

func (r bookRequest) toRequest() (delivery.Request, bool) {
	if r.PickupLat == nil || r.PickupLng == nil || r.DropoffLat == nil || r.DropoffLng == nil {
		return delivery.Request{}, false
	}
	return delivery.Request{
		PickupAddress:  r.PickupAddress,
		Pickup:         types.Point{Lat: *r.PickupLat, Lng: *r.PickupLng},
		DropoffAddress: r.DropoffAddress,
		Dropoff:        types.Point{Lat: *r.DropoffLat, Lng: *r.DropoffLng},
		Vehicle: delivery.Vehicle{
			Make:  r.VehicleMake,
			Model: r.VehicleModel,
			Year:  r.VehicleYear,
			VIN:   r.VehicleVIN,
		},
		VehicleClass:    r.VehicleClass,
		ScheduledPickup: r.ScheduledPickup,
	}, true
}

type quoteRequest struct {
	Pickup       types.Point `json:"pickup"`
	Dropoff      types.Point `json:"dropoff"`
	VehicleClass string      `json:"vehicle_class"`
}

type rescheduleRequest struct {
	ScheduledPickup *time.Time `json:"scheduled_pickup"`
}

type statusRequest struct {
	Available *bool  `json:"available"`
	Status    string `json:"status"`
}

type locationRequest struct {
	Lat *float64 `json:"lat"`
	Lng *float64 `json:"lng"`
}
