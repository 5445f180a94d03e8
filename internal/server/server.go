package server

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tm-acme-shop/acme-shop-settlement-service/internal/config"
	"github.com/tm-acme-shop/acme-shop-settlement-service/internal/handlers"
	"github.com/tm-acme-shop/acme-shop-settlement-service/internal/logging"
	"github.com/tm-acme-shop/acme-shop-settlement-service/internal/metrics"
	"github.com/tm-acme-shop/acme-shop-settlement-service/internal/middleware"
)

type Server struct {
	config   *config.Config
	router   *gin.Engine
	handlers *handlers.Handlers
	metrics  *metrics.Metrics
	http     *http.Server
	logger   *logging.Logger
}

func New(h *handlers.Handlers, cfg *config.Config, m *metrics.Metrics) *Server {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(m.GinMiddleware())

	s := &Server{
		config:   cfg,
		router:   router,
		handlers: h,
		metrics:  m,
		logger:   logging.New("server"),
	}

	s.setupRoutes()

	s.http = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	return s
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handlers.Health)
	s.router.GET("/ready", s.handlers.Ready)
	s.router.GET("/live", s.handlers.Live)
	s.router.GET("/version", s.handlers.Version)
	s.router.GET("/metrics", gin.WrapH(s.metrics.Handler()))

	v1 := s.router.Group("/api/v1")
	{
		tax := v1.Group("/tax")
		tax.POST("/calculate", s.handlers.CalculateTax)
		tax.GET("/estimate", s.handlers.EstimateTax)

		v1.POST("/fees/calculate", s.handlers.CalculateFees)

		settlements := v1.Group("/settlements")
		settlements.POST("/store-transfer", s.handlers.StoreTransfer)
		settlements.POST("/delivery-transfer", s.handlers.DeliveryTransfer)

		v1.POST("/checkout/price", s.handlers.PriceOrder)

		payouts := v1.Group("/payouts")
		payouts.POST("/stores/:id", s.handlers.PayoutStore)
		payouts.POST("/delivery-partners/:id", s.handlers.PayoutDeliveryPartner)

		admin := v1.Group("/admin")
		admin.POST("/cache/invalidate", s.handlers.InvalidateCache)
		admin.GET("/fees/validate", s.handlers.ValidateFees)
	}
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Start() error {
	s.logger.Info("Starting server", logging.Fields{"addr": s.http.Addr})
	return s.http.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}
