// Package api exposes the engine over HTTP: donor intake, document
// registration, eligibility queries, anchor decisions and outcome
// prediction.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/donor-eligibility-engine/internal/domain"
	"github.com/donor-eligibility-engine/internal/metrics"
	"github.com/donor-eligibility-engine/internal/service"
)

// Deps carries the collaborators the HTTP surface exposes.
type Deps struct {
	Donors    domain.DonorRepository
	Documents domain.DocumentRepository
	Evaluator *service.Evaluator
	Trigger   *service.Trigger
	Predictor *service.Predictor
	Metrics   *metrics.Metrics
	Log       *logrus.Logger
}

// Server is the HTTP server wrapping the gin router.
type Server struct {
	cfg    domain.ServerConfig
	deps   Deps
	router *gin.Engine
	server *http.Server
}

// NewServer builds the router and wires every route.
func NewServer(cfg domain.ServerConfig, logLevel string, deps Deps) *Server {
	if logLevel == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())
	router.Use(securityHeadersMiddleware())
	router.Use(requestIDMiddleware())
	if deps.Metrics != nil {
		router.Use(metricsMiddleware(deps.Metrics))
	}

	s := &Server{
		cfg:    cfg,
		deps:   deps,
		router: router,
	}
	s.setupRoutes()
	return s
}

// Router exposes the underlying handler for tests.
func (s *Server) Router() http.Handler {
	return s.router
}

// Start serves until ctx is canceled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
		IdleTimeout:  s.cfg.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.deps.Log.WithField("addr", addr).Info("HTTP server listening")
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return s.server.Shutdown(shutdownCtx)
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)
	if s.deps.Metrics != nil {
		s.router.GET("/metrics", gin.WrapH(s.deps.Metrics.Handler()))
	}

	v1 := s.router.Group("/api/v1")
	v1.Use(apiKeyMiddleware(s.cfg.APIKey))
	{
		v1.POST("/donors", s.handleCreateDonor)
		v1.GET("/donors/:id", s.handleGetDonor)
		v1.PUT("/donors/:id", s.handleUpdateDonor)

		v1.POST("/donors/:id/documents", s.handleRegisterDocument)
		v1.GET("/donors/:id/documents", s.handleListDocuments)

		v1.POST("/donors/:id/evaluate", s.handleEvaluate)
		v1.GET("/donors/:id/eligibility/:tissue", s.handleGetEligibility)

		v1.POST("/donors/:id/decision", s.handleRecordDecision)
		v1.GET("/donors/:id/prediction", s.handlePredict)
		v1.GET("/donors/:id/similar", s.handleFindSimilar)
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
	})
}
