package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"metric-oracle/internal/oracle"
)

const maxBodyBytes = 1 << 20

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	cfg, err := s.store.Config(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

func (s *Server) handlePostMetric(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		s.writeError(w, fmt.Errorf("%w: read body: %v", oracle.ErrInvalidRequest, err))
		return
	}

	var metric oracle.Metric
	if err := json.Unmarshal(body, &metric); err != nil {
		s.writeError(w, fmt.Errorf("%w: decode metric: %v", oracle.ErrInvalidRequest, err))
		return
	}

	sender := r.Header.Get(s.opts.SenderHeader)
	res, err := s.store.PostMetric(r.Context(), sender, metric)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleLatest(w http.ResponseWriter, r *http.Request) {
	key := r.URL.Query().Get("key")
	if key == "" {
		all, err := s.store.AllLatestMetrics(r.Context())
		if err != nil {
			s.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, all)
		return
	}

	metric, err := s.store.LatestMetric(r.Context(), key)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, metric)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	key := query.Get("key")
	if key == "" {
		s.writeError(w, fmt.Errorf("%w: key is required", oracle.ErrInvalidRequest))
		return
	}

	var (
		metrics oracle.Metrics
		err     error
	)
	if raw := query.Get("limit"); raw != "" {
		limit, convErr := strconv.Atoi(raw)
		if convErr != nil || limit <= 0 {
			s.writeError(w, fmt.Errorf("%w: limit must be a positive integer", oracle.ErrInvalidRequest))
			return
		}
		metrics, err = s.store.RecentMetrics(r.Context(), key, limit)
	} else {
		metrics, err = s.store.HistoricalMetrics(r.Context(), key)
	}
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, metrics)
}

func (s *Server) handlePrice(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	denom := query.Get("denom")
	baseDenom := query.Get("base_denom")
	if denom == "" || baseDenom == "" {
		s.writeError(w, fmt.Errorf("%w: denom and base_denom are required", oracle.ErrInvalidRequest))
		return
	}

	price, err := s.store.Price(r.Context(), denom, baseDenom, query.Get("params"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, price)
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error().Err(err).Msg("request failed")
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, oracle.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, oracle.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, oracle.ErrInvalidRequest),
		errors.Is(err, oracle.ErrInvalidMetricAttributes),
		errors.Is(err, oracle.ErrInvalidDenom),
		errors.Is(err, oracle.ErrMalformedValue):
		return http.StatusBadRequest
	case errors.Is(err, oracle.ErrInconsistentPriceRecord):
		return http.StatusConflict
	case errors.Is(err, oracle.ErrNotInstantiated):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
