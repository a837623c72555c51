package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"whiteboard-backend/internal/api/middleware"
	"whiteboard-backend/internal/queue"
	"whiteboard-backend/internal/store"
	"whiteboard-backend/internal/websocket"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

const shutdownTimeout = 10 * time.Second

type RouteRegistrar func(mux *http.ServeMux, s *APIServer)

type ServerConfig struct {
	ListenAddr     string
	Queue          *queue.RequestQueueManager
	Store          *store.Store
	Handler        *websocket.Handler
	AllowedOrigins []string
	Production     bool

	// Registerer and Gatherer default to the prometheus default registry.
	Registerer prometheus.Registerer
	Gatherer   prometheus.Gatherer
}

type APIServer struct {
	listenAddr          string
	requestQueueManager *queue.RequestQueueManager
	store               *store.Store
	routeRegistrars     []RouteRegistrar
	handler             *websocket.Handler
	cors                middleware.CORSConfig
	production          bool
	metrics             *metrics
	log                 *logrus.Entry
}

func NewAPIServer(cfg ServerConfig, registrars ...RouteRegistrar) *APIServer {
	reg := cfg.Registerer
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := cfg.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	return &APIServer{
		listenAddr:          cfg.ListenAddr,
		requestQueueManager: cfg.Queue,
		store:               cfg.Store,
		handler:             cfg.Handler,
		routeRegistrars:     registrars,
		cors: middleware.CORSConfig{
			AllowedOrigins: origins,
			AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
			AllowedHeaders: []string{"Content-Type", "X-Requested-With", "X-Request-ID"},
			MaxAge:         10 * time.Minute,
		},
		production: cfg.Production,
		metrics:    newMetrics(reg, gatherer, cfg.ListenAddr, cfg.Queue, cfg.Store),
		log:        logrus.WithField("component", "api"),
	}
}

// Routes builds the instrumented mux with every registrar applied.
func (s *APIServer) Routes() http.Handler {
	mux := http.NewServeMux()

	for _, reg := range s.routeRegistrars {
		reg(mux, s)
	}

	mux.Handle("/metrics", s.metrics.metricsHandler())

	return s.metrics.instrument(mux)
}

// Run serves until ctx is cancelled, then shuts down gracefully. A failure to
// bind the listen address is returned immediately.
func (s *APIServer) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.listenAddr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		s.log.WithField("addr", s.listenAddr).Info("server listening")
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("api: listen on %s: %w", s.listenAddr, err)
	case <-ctx.Done():
	}

	s.log.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("api: shutdown: %w", err)
	}
	return nil
}

func (s *APIServer) Store() *store.Store {
	return s.store
}

func (s *APIServer) Handler() *websocket.Handler {
	return s.handler
}

func (s *APIServer) Production() bool {
	return s.production
}
