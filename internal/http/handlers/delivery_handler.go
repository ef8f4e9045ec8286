// README: Delivery handlers: booking, quotes, listings and lifecycle transitions.
package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"happyauto/internal/modules/delivery"
	"happyauto/internal/modules/location"
	"happyauto/internal/modules/matching"
	"happyauto/internal/types"
)

// DriverLookup resolves the driver summary attached to delivery responses.
type DriverLookup interface {
	Get(ctx context.Context, id types.ID) (*location.Driver, error)
}

type DeliveryHandler struct {
	deliveries *delivery.Service
	matching   *matching.Service
	drivers    DriverLookup
}

func NewDeliveryHandler(deliveries *delivery.Service, matchingSvc *matching.Service, drivers DriverLookup) *DeliveryHandler {
	return &DeliveryHandler{deliveries: deliveries, matching: matchingSvc, drivers: drivers}
}

func (h *DeliveryHandler) Book(c *gin.Context) {
	var body bookRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	req, ok := body.toRequest()
	if !ok {
		writeError(c, http.StatusBadRequest, "pickup and dropoff coordinates are required")
		return
	}
	booking, err := h.matching.Book(c.Request.Context(), caller(c).ID, req)
	if err != nil {
		writeDeliveryError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, gin.H{
		"delivery": toDeliveryResponse(booking.Delivery),
		"fare":     toFare(booking.Fare),
	})
}

func (h *DeliveryHandler) Quote(c *gin.Context) {
	var body quoteRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	q, err := h.matching.Quote(c.Request.Context(), body.Pickup, body.Dropoff, body.VehicleClass)
	if err != nil {
		writeDeliveryError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, toQuote(q))
}

func (h *DeliveryHandler) List(c *gin.Context) {
	ds, err := h.deliveries.ListByParty(c.Request.Context(), caller(c))
	if err != nil {
		writeDeliveryError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"deliveries": toDeliveryList(ds)})
}

func (h *DeliveryHandler) ListUnassigned(c *gin.Context) {
	ds, err := h.deliveries.ListUnassigned(c.Request.Context())
	if err != nil {
		writeDeliveryError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"deliveries": toDeliveryList(ds)})
}

func (h *DeliveryHandler) Get(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	d, err := h.deliveries.Get(c.Request.Context(), id, caller(c))
	if err != nil {
		writeDeliveryError(c, err)
		return
	}
	resp := toDeliveryResponse(d)
	if d.DriverID != nil && h.drivers != nil {
		// Driver details are best effort; the delivery itself is authoritative.
		if drv, err := h.drivers.Get(c.Request.Context(), *d.DriverID); err == nil {
			resp.Driver = toDriverSummary(drv)
		}
	}
	writeJSON(c, http.StatusOK, resp)
}

func (h *DeliveryHandler) Accept(c *gin.Context) {
	h.driverAction(c, func(ctx context.Context, cmd delivery.DriverCommand) (*delivery.Delivery, error) {
		return h.deliveries.Accept(ctx, delivery.AcceptCommand(cmd))
	})
}

func (h *DeliveryHandler) Start(c *gin.Context) {
	h.driverAction(c, h.deliveries.Start)
}

func (h *DeliveryHandler) Complete(c *gin.Context) {
	h.driverAction(c, h.deliveries.Complete)
}

func (h *DeliveryHandler) DriverCancel(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	d, fine, err := h.deliveries.DriverCancel(c.Request.Context(), delivery.DriverCommand{
		DeliveryID: id,
		DriverID:   caller(c).ID,
	})
	if err != nil {
		writeDeliveryError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"delivery": toDeliveryResponse(d), "fine": toMoney(fine)})
}

func (h *DeliveryHandler) Cancel(c *gin.Context) {
	h.customerAction(c, h.deliveries.CustomerCancel)
}

func (h *DeliveryHandler) Pay(c *gin.Context) {
	h.customerAction(c, h.deliveries.MarkPaid)
}

func (h *DeliveryHandler) Reschedule(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var body rescheduleRequest
	if err := c.ShouldBindJSON(&body); err != nil || body.ScheduledPickup == nil {
		writeError(c, http.StatusBadRequest, "scheduled_pickup (RFC3339) is required")
		return
	}
	d, err := h.deliveries.Reschedule(c.Request.Context(), delivery.RescheduleCommand{
		DeliveryID:      id,
		CustomerID:      caller(c).ID,
		ScheduledPickup: *body.ScheduledPickup,
	})
	if err != nil {
		writeDeliveryError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, toDeliveryResponse(d))
}

func (h *DeliveryHandler) driverAction(c *gin.Context, fn func(context.Context, delivery.DriverCommand) (*delivery.Delivery, error)) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	d, err := fn(c.Request.Context(), delivery.DriverCommand{DeliveryID: id, DriverID: caller(c).ID})
	if err != nil {
		writeDeliveryError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, toDeliveryResponse(d))
}

func (h *DeliveryHandler) customerAction(c *gin.Context, fn func(context.Context, delivery.CustomerCommand) (*delivery.Delivery, error)) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	d, err := fn(c.Request.Context(), delivery.CustomerCommand{DeliveryID: id, CustomerID: caller(c).ID})
	if err != nil {
		writeDeliveryError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, toDeliveryResponse(d))
}
