// README: HTTP router registration.
package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"happyauto/internal/http/handlers"
	"happyauto/internal/http/middleware"
	"happyauto/internal/infra"
	"happyauto/internal/modules/delivery"
	"happyauto/internal/modules/location"
	"happyauto/internal/modules/matching"
)

type RouterDeps struct {
	Deliveries *delivery.Service
	Matching   *matching.Service
	Location   *location.Service
	Verifier   infra.TokenVerifier
	// Gatherer backs /metrics; nil uses the default registry.
	Gatherer prometheus.Gatherer
	Log      zerolog.Logger
}

func NewRouter(deps RouterDeps) *gin.Engine {
	r := gin.New()
	r.Use(middleware.Recovery(deps.Log), middleware.Logging(deps.Log))

	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	})
	gatherer := deps.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	customer := middleware.RequireRole(string(delivery.RoleCustomer))
	driver := middleware.RequireRole(string(delivery.RoleDriver))

	api := r.Group("/api", middleware.Auth(deps.Verifier))

	deliveryHandler := handlers.NewDeliveryHandler(deps.Deliveries, deps.Matching, deps.Location)
	api.POST("/quotes", deliveryHandler.Quote)
	api.POST("/deliveries", customer, deliveryHandler.Book)
	api.GET("/deliveries", deliveryHandler.List)
	api.GET("/deliveries/unassigned", driver, deliveryHandler.ListUnassigned)
	api.GET("/deliveries/:id", deliveryHandler.Get)
	api.POST("/deliveries/:id/accept", driver, deliveryHandler.Accept)
	api.POST("/deliveries/:id/start", driver, deliveryHandler.Start)
	api.POST("/deliveries/:id/complete", driver, deliveryHandler.Complete)
	api.POST("/deliveries/:id/driver-cancel", driver, deliveryHandler.DriverCancel)
	api.POST("/deliveries/:id/cancel", customer, deliveryHandler.Cancel)
	api.POST("/deliveries/:id/pay", customer, deliveryHandler.Pay)
	api.POST("/deliveries/:id/reschedule", customer, deliveryHandler.Reschedule)

	driverHandler := handlers.NewDriverHandler(deps.Location)
	api.PUT("/drivers/me/status", driver, driverHandler.SetStatus)
	api.PUT("/drivers/me/location", driver, driverHandler.UpdateLocation)
	api.GET("/drivers/location", customer, driverHandler.Track)

	return r
}
