package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/foresynth/radar/internal/processor"
	"github.com/foresynth/radar/internal/radar"
	"github.com/foresynth/radar/internal/server/ws"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

// FeedReader serves stored signals
type FeedReader interface {
	Feed(ctx context.Context, q radar.Query) ([]radar.Signal, error)
	Signal(ctx context.Context, id string) (radar.Signal, error)
	ByWallet(ctx context.Context, wallet string, limit int) ([]radar.Signal, error)
}

// Ingester scores and persists a submitted batch
type Ingester interface {
	IngestBatch(ctx context.Context, batch *radar.Batch) (*processor.Report, error)
}

// Pinger reports whether a dependency is reachable
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server is the HTTP API for the signal feed
type Server struct {
	httpServer *http.Server
	feed       FeedReader
	ingester   Ingester
	store      Pinger
	hub        *ws.Hub
	log        *logrus.Logger
}

// New creates the server and registers its routes. hub may be nil.
func New(port int, feed FeedReader, ingester Ingester, store Pinger, hub *ws.Hub, log *logrus.Logger) *Server {
	s := &Server{
		feed:     feed,
		ingester: ingester,
		store:    store,
		hub:      hub,
		log:      log,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /signals/feed", s.handleFeed)
	mux.HandleFunc("GET /signals/wallet/{address}", s.handleWallet)
	mux.HandleFunc("GET /signals/{id}", s.handleSignal)
	mux.HandleFunc("POST /signals/score", s.handleScore)
	if hub != nil {
		mux.HandleFunc("GET /signals/stream", hub.HandleWS)
	}

	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /ready", s.handleReady)
	mux.Handle("GET /metrics", promhttp.Handler())

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      logging(log)(mux),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Handler returns the routed handler, including middleware
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start serves until Shutdown is called
func (s *Server) Start() error {
	s.log.WithField("addr", s.httpServer.Addr).Info("Starting HTTP server")
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("listen: %w", err)
	}
	return nil
}

// Shutdown stops the server, waiting for in-flight requests
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
