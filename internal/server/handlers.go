package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/foresynth/radar/internal/metrics"
	"github.com/foresynth/radar/internal/radar"
	"github.com/foresynth/radar/internal/storage"
)

const (
	defaultFeedLimit = 50
	maxFeedLimit     = 200
	maxBodyBytes     = 10 << 20
)

type listResponse struct {
	Signals []radar.Signal `json:"signals"`
	Count   int            `json:"count"`
}

type scoreResponse struct {
	Signals  []radar.Signal    `json:"signals"`
	Rejected []radar.Rejection `json:"rejected"`
	Count    int               `json:"count"`
}

// GET /signals/feed
func (s *Server) handleFeed(w http.ResponseWriter, r *http.Request) {
	q, err := parseFeedQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	signals, err := s.feed.Feed(r.Context(), q)
	if err != nil {
		s.log.WithError(err).Error("Failed to load feed")
		writeError(w, http.StatusInternalServerError, "failed to load feed")
		return
	}
	writeJSON(w, http.StatusOK, listResponse{Signals: signals, Count: len(signals)})
}

// GET /signals/{id}
func (s *Server) handleSignal(w http.ResponseWriter, r *http.Request) {
	signal, err := s.feed.Signal(r.Context(), r.PathValue("id"))
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, "signal not found")
		return
	}
	if err != nil {
		s.log.WithError(err).Error("Failed to load signal")
		writeError(w, http.StatusInternalServerError, "failed to load signal")
		return
	}
	writeJSON(w, http.StatusOK, signal)
}

// GET /signals/wallet/{address}
func (s *Server) handleWallet(w http.ResponseWriter, r *http.Request) {
	limit, err := intParam(r, "limit", defaultFeedLimit, 1, maxFeedLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	signals, err := s.feed.ByWallet(r.Context(), r.PathValue("address"), limit)
	if err != nil {
		s.log.WithError(err).Error("Failed to load wallet signals")
		writeError(w, http.StatusInternalServerError, "failed to load wallet signals")
		return
	}
	writeJSON(w, http.StatusOK, listResponse{Signals: signals, Count: len(signals)})
}

// POST /signals/score
func (s *Server) handleScore(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
		return
	}

	batch, err := radar.ParseBatch(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	report, err := s.ingester.IngestBatch(r.Context(), batch)
	if err != nil {
		s.log.WithError(err).Error("Failed to ingest batch")
		writeError(w, http.StatusInternalServerError, "failed to score batch")
		return
	}

	resp := scoreResponse{
		Signals:  report.Signals,
		Rejected: report.Rejected,
		Count:    len(report.Signals),
	}
	if resp.Signals == nil {
		resp.Signals = []radar.Signal{}
	}
	if resp.Rejected == nil {
		resp.Rejected = []radar.Rejection{}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	metrics.RecordHealthCheck(true)
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := s.store.Ping(ctx); err != nil {
		metrics.RecordHealthCheck(false)
		s.log.WithError(err).Warn("Readiness check failed")
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	metrics.RecordHealthCheck(true)
	resp := map[string]interface{}{"status": "ready"}
	if s.hub != nil {
		resp["stream_clients"] = s.hub.ClientCount()
	}
	writeJSON(w, http.StatusOK, resp)
}

func parseFeedQuery(r *http.Request) (radar.Query, error) {
	var q radar.Query
	var err error

	if q.MinScore, err = intParam(r, "min_score", 0, 0, 100); err != nil {
		return q, err
	}
	if r.URL.Query().Has("max_wallet_age_days") {
		if q.MaxWalletAgeDays, err = intParam(r, "max_wallet_age_days", 0, 0, 36500); err != nil {
			return q, err
		}
		q.HasMaxWalletAge = true
	}
	if q.Limit, err = intParam(r, "limit", defaultFeedLimit, 1, maxFeedLimit); err != nil {
		return q, err
	}
	q.Search = r.URL.Query().Get("search")
	return q, nil
}

// intParam parses an optional integer query parameter within [lo, hi]
func intParam(r *http.Request, name string, def, lo, hi int) (int, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer", name)
	}
	if n < lo || n > hi {
		return 0, fmt.Errorf("%s must be between %d and %d", name, lo, hi)
	}
	return n, nil
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(data)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
