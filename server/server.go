package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"stockpulse/config"
	"stockpulse/logger"
	"stockpulse/models"
)

// SnapshotProducer is satisfied by the processor aggregator.
type SnapshotProducer interface {
	Snapshot(ctx context.Context) models.MarketSnapshot
}

// Server hosts the market data API: a pull endpoint, a websocket stream and
// a liveness probe.
type Server struct {
	config     *config.Config
	producer   SnapshotProducer
	log        *logger.Log
	httpServer *http.Server
	upgrader   websocket.Upgrader
}

func NewServer(cfg *config.Config, producer SnapshotProducer) *Server {
	if config.AppEnvironment() == config.EnvironmentDevelopment {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	return &Server{
		config:   cfg,
		producer: producer,
		log:      logger.GetLogger(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Cross-origin access is deliberately unrestricted.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

func (s *Server) buildRouter() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())

	router.GET("/healthz", s.handleHealth)
	router.GET("/api/market-data", s.handleMarketData)
	router.GET("/ws", s.handleStream)

	return router
}

// corsMiddleware permits every origin, method and header.
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "*")
		c.Header("Access-Control-Allow-Headers", "*")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"service": s.config.Stockpulse.Name,
		"version": s.config.Stockpulse.Version,
	})
}

// handleMarketData serves one freshly aggregated snapshot per request.
func (s *Server) handleMarketData(c *gin.Context) {
	snapshot := s.producer.Snapshot(c.Request.Context())

	payload, err := json.Marshal(snapshot)
	if err != nil {
		s.log.WithComponent("api_server").WithError(err).Error("failed to encode snapshot")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to encode snapshot"})
		return
	}

	logger.IncrementAPIPull(len(payload))
	c.Data(http.StatusOK, "application/json; charset=utf-8", payload)
}

// Run starts the HTTP server and blocks until the provided context is
// cancelled or the server exits with an error.
func (s *Server) Run(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: s.buildRouter(),
	}

	log := s.log.WithComponent("api_server")
	log.WithFields(logger.Fields{
		"addr":               addr,
		"broadcast_interval": s.config.Server.BroadcastInterval,
		"symbols":            len(s.config.Market.Symbols),
	}).Info("starting server")

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.Server.ShutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		log.Info("server stopped")
		return nil
	case err := <-errCh:
		return err
	}
}
