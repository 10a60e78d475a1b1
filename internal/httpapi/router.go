package httpapi

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/northbeam/quotecache/internal/config"
)

// Server owns the HTTP listener and the routed Core.
type Server struct {
	router *mux.Router
	http   *http.Server
	core   *Core
	log    zerolog.Logger
}

// NewServer builds a Server bound to cfg.Server, routing every request to
// core's handlers.
func NewServer(cfg config.Config, core *Core, log zerolog.Logger) *Server {
	router := mux.NewRouter()
	router.Use(requestIDMiddleware)
	router.Use(loggingMiddleware(log))

	api := router.PathPrefix("/api").Subrouter()
	api.Use(jsonContentType)

	api.HandleFunc("/health", core.Health).Methods(http.MethodGet)
	api.HandleFunc("/data/{symbol}", core.Data).Methods(http.MethodGet)
	api.HandleFunc("/data_delta/{symbol}", core.DataDelta).Methods(http.MethodGet)
	api.HandleFunc("/stream/data/{symbol}", core.StreamData).Methods(http.MethodGet)
	api.HandleFunc("/quotes", core.Quotes).Methods(http.MethodGet)
	api.HandleFunc("/stream/quotes", core.StreamQuotes).Methods(http.MethodGet)
	api.HandleFunc("/symbols", core.Symbols).Methods(http.MethodGet)
	api.HandleFunc("/prewarm", core.Prewarm).Methods(http.MethodGet)
	api.HandleFunc("/news", core.News).Methods(http.MethodGet)
	api.HandleFunc("/metrics", core.Metrics).Methods(http.MethodGet)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	return &Server{
		router: router,
		core:   core,
		log:    log,
		http: &http.Server{
			Addr:         addr,
			Handler:      router,
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
			IdleTimeout:  cfg.Server.IdleTimeout,
		},
	}
}

// Start blocks serving HTTP until the listener errors or is shut down.
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.http.Addr).Msg("starting http server")
	err := s.http.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown gracefully drains in-flight requests, bounded by ctx.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("shutting down http server")
	return s.http.Shutdown(ctx)
}
