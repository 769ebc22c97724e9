// internal/web/server.go
package web

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"lanmap/internal/config"
	"lanmap/internal/database"
	"lanmap/internal/discovery"
	"lanmap/internal/metrics"
)

type Server struct {
	config  *config.Config
	store   database.Store
	engine  *discovery.Engine
	metrics *metrics.Collector
	router  *gin.Engine
	hub     *Hub
	server  *http.Server
}

func NewServer(cfg *config.Config, store database.Store, engine *discovery.Engine, metricsCollector *metrics.Collector) *Server {
	if cfg.Logging.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())

	server := &Server{
		config:  cfg,
		store:   store,
		engine:  engine,
		metrics: metricsCollector,
		router:  router,
		hub:     NewHub(metricsCollector),
	}

	server.setupRoutes()
	return server
}

func (s *Server) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:         s.config.Server.Port,
		Handler:      s.router,
		ReadTimeout:  s.config.Server.ReadTimeout,
		WriteTimeout: s.config.Server.WriteTimeout,
	}

	logrus.WithField("port", s.config.Server.Port).Info("Starting web server")

	// Fan discovery events out to every connected websocket client.
	go s.hub.Run(ctx, s.engine.Bus())
	go s.updateMetricsRoutine(ctx)

	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.WithError(err).Fatal("Failed to start server")
		}
	}()

	return nil
}

func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

func (s *Server) setupRoutes() {
	api := s.router.Group("/api")
	{
		api.POST("/discovery/sweep", s.startSweep)
		api.POST("/discovery/refresh", s.startRefresh)
		api.GET("/discovery/status", s.getDiscoveryStatus)

		api.GET("/devices", s.getDevices(database.TableDevices))
		api.GET("/devices/:id", s.getDevice(database.TableDevices))
		api.PUT("/devices/:id", s.updateDevice(database.TableDevices))
		api.GET("/vlan", s.getDevices(database.TableVLAN))
		api.GET("/vlan/:id", s.getDevice(database.TableVLAN))
		api.PUT("/vlan/:id", s.updateDevice(database.TableVLAN))

		api.GET("/history/:ip", s.getPingHistory)

		api.GET("/settings", s.getSettings)
		api.PUT("/settings/:key", s.updateSetting)

		api.GET("/build", s.getBuildInfo)
		api.GET("/health", s.healthCheck)
	}

	// WebSocket endpoint
	s.router.GET("/ws", s.handleWebSocket)

	// Prometheus metrics
	if s.config.Prometheus.Enabled {
		s.router.GET(s.config.Prometheus.MetricsPath, gin.WrapH(promhttp.Handler()))
	}
}

func (s *Server) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": time.Now(),
		"version":   Version,
	})
}

func (s *Server) updateMetricsRoutine(ctx context.Context) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.metrics.UpdateInventoryMetrics(ctx); err != nil {
				logrus.WithError(err).Error("Failed to update inventory metrics")
			}
		}
	}
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Credentials", "true")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Header("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}
