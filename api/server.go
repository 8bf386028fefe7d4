package api

import (
	"context"
	"net/http"
	"time"

	"example.com/backstage/services/fleet/config"
	"example.com/backstage/services/fleet/handlers"

	"github.com/gin-gonic/gin"
	"github.com/newrelic/go-agent/v3/integrations/nrgin"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

// HealthCheck reports whether one dependency is usable
type HealthCheck func(ctx context.Context) error

// Handlers groups the command handlers served over HTTP
type Handlers struct {
	Deliveries *handlers.DeliveryHandler
	Containers *handlers.ContainerHandler
	Customers  *handlers.CustomerHandler
	Locations  *handlers.LocationHandler
	Vehicles   *handlers.VehicleHandler
	Drivers    *handlers.DriverHandler
	Incidents  *handlers.IncidentHandler
}

// Options carries the optional collaborators of the server
type Options struct {
	Metrics      RequestObserver
	Gatherer     prometheus.Gatherer
	NewRelic     *newrelic.Application
	HealthChecks map[string]HealthCheck
}

// Server is the HTTP server for the API
type Server struct {
	cfg        config.ServerConfig
	router     *gin.Engine
	httpServer *http.Server
	h          Handlers
	opts       Options
}

// NewServer creates a new API server
func NewServer(cfg config.ServerConfig, h Handlers, opts Options) *Server {
	server := &Server{
		cfg:    cfg,
		router: gin.New(),
		h:      h,
		opts:   opts,
	}

	server.setupMiddleware()
	server.setupRoutes()

	return server
}

// Handler exposes the router, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.router
}

// setupMiddleware adds middleware to the router
func (s *Server) setupMiddleware() {
	s.router.Use(RequestIDMiddleware())

	if s.cfg.CorsEnabled {
		s.router.Use(CORSMiddleware(s.cfg.CorsOrigins))
	}

	s.router.Use(gin.Recovery())
	s.router.Use(LoggingMiddleware())

	if s.opts.Metrics != nil {
		s.router.Use(MetricsMiddleware(s.opts.Metrics))
	}
	if s.opts.NewRelic != nil {
		s.router.Use(nrgin.Middleware(s.opts.NewRelic))
	}
}

// setupRoutes defines the API routes
func (s *Server) setupRoutes() {
	s.router.GET("/ping", func(c *gin.Context) {
		c.String(http.StatusOK, "pong")
	})
	s.router.GET("/health", s.health)

	if s.cfg.MetricsEnabled && s.opts.Gatherer != nil {
		s.router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.opts.Gatherer, promhttp.HandlerOpts{})))
	}

	v1 := s.router.Group("/api/v1")
	v1.Use(ActorMiddleware())

	deliveries := v1.Group("/deliveries")
	{
		deliveries.GET("", s.listDeliveries)
		deliveries.POST("", s.createDelivery)
		deliveries.PATCH("/sequence", s.sequenceDeliveries)
		deliveries.GET("/:id", s.getDelivery)
		deliveries.PATCH("/:id", s.updateDelivery)
		deliveries.DELETE("/:id", s.deleteDelivery)
		deliveries.POST("/:id/transition", s.transitionDelivery)
		deliveries.GET("/:id/manifest", s.getManifest)
	}

	containers := v1.Group("/containers")
	{
		containers.GET("", s.listContainers)
		containers.POST("", s.createContainer)
		containers.GET("/:id", s.getContainer)
		containers.PATCH("/:id", s.updateContainer)
		containers.DELETE("/:id", s.deleteContainer)
		containers.POST("/:id/actions", s.recordContainerAction)
		containers.GET("/:id/history", s.listContainerHistory)
	}
	v1.GET("/barcodes/:barcode", s.getContainerByBarcode)

	customers := v1.Group("/customers")
	{
		customers.GET("", s.listCustomers)
		customers.POST("", s.createCustomer)
		customers.GET("/:id", s.getCustomer)
		customers.PUT("/:id", s.updateCustomer)
		customers.DELETE("/:id", s.deleteCustomer)
		customers.PATCH("/:id/archive", s.archiveCustomer)
		customers.GET("/:id/locations", s.listCustomerLocations)
	}

	locations := v1.Group("/locations")
	{
		locations.POST("", s.createLocation)
		locations.GET("/:id", s.getLocation)
		locations.PUT("/:id", s.updateLocation)
		locations.PATCH("/:id/deactivate", s.deactivateLocation)
		locations.GET("/:id/deliveries", s.listLocationDeliveries)
	}

	vehicles := v1.Group("/vehicles")
	{
		vehicles.GET("", s.listVehicles)
		vehicles.POST("", s.createVehicle)
		vehicles.GET("/:id", s.getVehicle)
		vehicles.PUT("/:id", s.updateVehicle)
		vehicles.DELETE("/:id", s.deleteVehicle)
		vehicles.GET("/:id/maintenance", s.listMaintenance)
		vehicles.POST("/:id/maintenance", s.addMaintenance)
		vehicles.GET("/:id/stats", s.getVehicleStats)
		vehicles.GET("/:id/inspections", s.listInspections)
		vehicles.POST("/:id/inspections", s.recordInspection)
	}

	drivers := v1.Group("/drivers")
	{
		drivers.GET("", s.listDrivers)
		drivers.POST("", s.createDriver)
		drivers.GET("/:id", s.getDriver)
		drivers.PUT("/:id", s.updateDriver)
		drivers.DELETE("/:id", s.deleteDriver)
		drivers.GET("/:id/deliveries", s.listDriverDeliveries)
	}

	incidents := v1.Group("/incidents")
	{
		incidents.GET("", s.listIncidents)
		incidents.POST("", s.reportIncident)
		incidents.GET("/stats/summary", s.incidentSummary)
		incidents.GET("/:id", s.getIncident)
		incidents.PUT("/:id", s.updateIncident)
		incidents.DELETE("/:id", s.deleteIncident)
		incidents.GET("/:id/comments", s.listIncidentComments)
		incidents.POST("/:id/comments", s.addIncidentComment)
	}
}

func (s *Server) health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	healthy := true
	details := make(map[string]string, len(s.opts.HealthChecks))
	for name, check := range s.opts.HealthChecks {
		if err := check(ctx); err != nil {
			healthy = false
			details[name] = err.Error()
			continue
		}
		details[name] = "ok"
	}

	status := http.StatusOK
	if !healthy {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, gin.H{"status": healthy, "details": details})
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:         s.cfg.Address,
		Handler:      s.router,
		ReadTimeout:  s.cfg.Timeout,
		WriteTimeout: s.cfg.Timeout,
	}

	log.Info().Msgf("HTTP server starting on %s", s.cfg.Address)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}

	return nil
}

// Shutdown gracefully shuts down the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}
