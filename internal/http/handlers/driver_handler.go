// README: Driver handlers for availability, position updates and customer tracking.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"happyauto/internal/modules/location"
	"happyauto/internal/types"
)

type DriverHandler struct {
	location *location.Service
}

func NewDriverHandler(svc *location.Service) *DriverHandler {
	return &DriverHandler{location: svc}
}

func (h *DriverHandler) SetStatus(c *gin.Context) {
	var body statusRequest
	if err := c.ShouldBindJSON(&body); err != nil || body.Available == nil {
		writeError(c, http.StatusBadRequest, "available is required")
		return
	}
	status := location.DriverStatus(body.Status)
	if status == "" {
		status = location.StatusOffline
		if *body.Available {
			status = location.StatusOnline
		}
	}
	err := h.location.SetStatus(c.Request.Context(), location.StatusUpdate{
		DriverID:  caller(c).ID,
		Available: *body.Available,
		Status:    status,
	})
	if err != nil {
		writeDeliveryError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"available": *body.Available, "status": status})
}

func (h *DriverHandler) UpdateLocation(c *gin.Context) {
	var body locationRequest
	if err := c.ShouldBindJSON(&body); err != nil || body.Lat == nil || body.Lng == nil {
		writeError(c, http.StatusBadRequest, "lat and lng are required")
		return
	}
	p := types.Point{Lat: *body.Lat, Lng: *body.Lng}
	if err := h.location.UpdateLocation(c.Request.Context(), caller(c).ID, p); err != nil {
		writeDeliveryError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"status": "ok"})
}

// Track returns where the driver on the caller's active delivery is. Both
// fields are null when there is nothing to track.
func (h *DriverHandler) Track(c *gin.Context) {
	p, driverID, err := h.location.DriverLocationFor(c.Request.Context(), caller(c).ID)
	if err != nil {
		writeDeliveryError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"driver_id": driverID, "location": p})
}
