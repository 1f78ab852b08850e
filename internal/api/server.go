package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"metric-oracle/internal/logging"
	"metric-oracle/internal/oracle"
)

// Store is the oracle surface the API dispatches to.
type Store interface {
	PostMetric(ctx context.Context, sender string, metric oracle.Metric) (oracle.PostResult, error)
	Config(ctx context.Context) (oracle.Config, error)
	LatestMetric(ctx context.Context, key string) (oracle.Metric, error)
	AllLatestMetrics(ctx context.Context) (oracle.Metrics, error)
	HistoricalMetrics(ctx context.Context, key string) (oracle.Metrics, error)
	RecentMetrics(ctx context.Context, key string, n int) (oracle.Metrics, error)
	Price(ctx context.Context, denom, baseDenom, params string) (oracle.PriceResponse, error)
}

// Options parameterise the HTTP server.
type Options struct {
	Addr         string
	// SenderHeader names the header carrying the caller identity. It is taken
	// as given, so an authenticating proxy must own it.
	SenderHeader string
	ReadTimeout  time.Duration
}

// Server exposes ingestion and queries over HTTP.
type Server struct {
	opts   Options
	store  Store
	logger zerolog.Logger
}

// NewServer constructs the API server.
func NewServer(opts Options, store Store, logger zerolog.Logger) *Server {
	if opts.SenderHeader == "" {
		opts.SenderHeader = "X-Oracle-Sender"
	}
	if opts.ReadTimeout <= 0 {
		opts.ReadTimeout = 10 * time.Second
	}
	return &Server{
		opts:   opts,
		store:  store,
		logger: logging.Component(logger, "api"),
	}
}

// Router builds the request multiplexer.
func (s *Server) Router() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)

	v1 := r.PathPrefix("/v1").Subrouter()
	v1.HandleFunc("/config", s.handleConfig).Methods(http.MethodGet)
	v1.HandleFunc("/metrics", s.handlePostMetric).Methods(http.MethodPost)
	v1.HandleFunc("/metrics/latest", s.handleLatest).Methods(http.MethodGet)
	v1.HandleFunc("/metrics/history", s.handleHistory).Methods(http.MethodGet)
	v1.HandleFunc("/prices", s.handlePrice).Methods(http.MethodGet)

	r.Use(s.logRequests)
	return r
}

// Run serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.opts.Addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: s.opts.ReadTimeout,
		ReadTimeout:       s.opts.ReadTimeout,
	}

	errs := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", s.opts.Addr).Msg("api listening")
		errs <- srv.ListenAndServe()
	}()

	select {
	case err := <-errs:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Error().Err(err).Msg("api shutdown failed")
		}
		return ctx.Err()
	}
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.status).
			Dur("elapsed", time.Since(start)).
			Msg("request served")
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
