// Package httpapi binds the journey and cache operations to HTTP.
package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/unkn0wn-root/journeycas"
)

const (
	demoKey = "demo:timestamp"
	demoTTL = 60 * time.Second

	conflictMessage = "Concurrency conflict. Please retry."
)

type Handler struct {
	journeys journeycas.Service
	kv       *journeycas.KV
	log      journeycas.Logger
	now      func() time.Time
}

func NewHandler(journeys journeycas.Service, kv *journeycas.KV, log journeycas.Logger) *Handler {
	if log == nil {
		log = journeycas.NopLogger{}
	}
	return &Handler{journeys: journeys, kv: kv, log: log, now: time.Now}
}

type cacheSetRequest struct {
	Value             string `json:"value"`
	ExpirationSeconds *int   `json:"expirationSeconds"`
}

type statusRequest struct {
	Status string `json:"status"`
}

type messageResponse struct {
	Message string `json:"message"`
}

// Routes registers every endpoint on mux.
func (h *Handler) Routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", h.Health)

	mux.HandleFunc("GET /api/cache/demo", h.CacheDemo)
	// GET patterns also match HEAD; CacheGet answers HEAD as an existence check
	mux.HandleFunc("GET /api/cache/{key}", h.CacheGet)
	mux.HandleFunc("POST /api/cache/{key}", h.CacheSet)
	mux.HandleFunc("DELETE /api/cache/{key}", h.CacheDelete)

	mux.HandleFunc("GET /api/journeys", h.ListJourneys)
	mux.HandleFunc("GET /api/journeys/{journeyId}", h.GetJourney)
	mux.HandleFunc("PUT /api/journeys/{journeyId}/segments/{segmentId}/status", h.UpdateSegmentStatus)
	mux.HandleFunc("PUT /api/journeys/{journeyId}/status", h.UpdateJourneyStatus)
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) CacheDemo(w http.ResponseWriter, r *http.Request) {
	v, ok, err := h.kv.Get(r.Context(), demoKey)
	if err != nil {
		h.fail(w, r, err, "")
		return
	}
	if ok {
		writeJSON(w, http.StatusOK, map[string]string{
			"source":  "cache",
			"value":   v,
			"message": "Value retrieved from cache",
		})
		return
	}

	v = fmt.Sprintf("Generated at %s UTC", h.now().UTC().Format("2006-01-02 15:04:05"))
	if err := h.kv.Set(r.Context(), demoKey, v, demoTTL); err != nil {
		h.fail(w, r, err, "")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"source":  "computed",
		"value":   v,
		"message": "New value generated and cached for 60 seconds",
	})
}

func (h *Handler) CacheGet(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodHead {
		h.CacheExists(w, r)
		return
	}
	key := r.PathValue("key")
	v, ok, err := h.kv.Get(r.Context(), key)
	if err != nil {
		h.fail(w, r, err, "")
		return
	}
	if !ok {
		writeJSON(w, http.StatusNotFound, messageResponse{fmt.Sprintf("Key '%s' not found in cache", key)})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"key": key, "value": v})
}

func (h *Handler) CacheExists(w http.ResponseWriter, r *http.Request) {
	ok, err := h.kv.Exists(r.Context(), r.PathValue("key"))
	if err != nil {
		w.WriteHeader(statusFor(err))
		return
	}
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (h *Handler) CacheSet(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	var req cacheSetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, messageResponse{"invalid request body"})
		return
	}
	var ttl time.Duration
	if req.ExpirationSeconds != nil {
		if *req.ExpirationSeconds <= 0 {
			writeJSON(w, http.StatusBadRequest, messageResponse{"expirationSeconds must be positive"})
			return
		}
		ttl = time.Duration(*req.ExpirationSeconds) * time.Second
	}
	if err := h.kv.Set(r.Context(), key, req.Value, ttl); err != nil {
		h.fail(w, r, err, "")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message":           "Value cached successfully",
		"key":               key,
		"expirationSeconds": req.ExpirationSeconds,
	})
}

func (h *Handler) CacheDelete(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	deleted, err := h.kv.Delete(r.Context(), key)
	if err != nil {
		h.fail(w, r, err, "")
		return
	}
	if !deleted {
		writeJSON(w, http.StatusNotFound, messageResponse{fmt.Sprintf("Key '%s' not found in cache", key)})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Value deleted successfully", "key": key})
}

func (h *Handler) ListJourneys(w http.ResponseWriter, r *http.Request) {
	ids, err := h.journeys.ListJourneyIDs(r.Context())
	if err != nil {
		h.fail(w, r, err, "")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"journeyIds": ids, "count": len(ids)})
}

func (h *Handler) GetJourney(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("journeyId")
	j, ok, err := h.journeys.GetJourney(r.Context(), id)
	if err != nil {
		h.fail(w, r, err, "")
		return
	}
	if !ok {
		writeJSON(w, http.StatusNotFound, messageResponse{fmt.Sprintf("Journey '%s' not found", id)})
		return
	}
	writeJSON(w, http.StatusOK, j)
}

func (h *Handler) UpdateSegmentStatus(w http.ResponseWriter, r *http.Request) {
	jid, sid := r.PathValue("journeyId"), r.PathValue("segmentId")
	var req statusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, messageResponse{"invalid request body"})
		return
	}
	if err := h.journeys.UpdateSegmentStatus(r.Context(), jid, sid, req.Status); err != nil {
		h.fail(w, r, err, fmt.Sprintf("Journey '%s' or segment '%s' not found", jid, sid))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"message":   "Segment status updated successfully",
		"journeyId": jid,
		"segmentId": sid,
		"newStatus": req.Status,
	})
}

func (h *Handler) UpdateJourneyStatus(w http.ResponseWriter, r *http.Request) {
	jid := r.PathValue("journeyId")
	var req statusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, messageResponse{"invalid request body"})
		return
	}
	if err := h.journeys.UpdateJourneyStatus(r.Context(), jid, req.Status); err != nil {
		h.fail(w, r, err, fmt.Sprintf("Journey '%s' not found", jid))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"message":   "Journey status updated successfully",
		"journeyId": jid,
		"newStatus": req.Status,
	})
}

// fail maps err to a status and a body. notFound is the 404 message.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error, notFound string) {
	status := statusFor(err)
	msg := err.Error()
	switch status {
	case http.StatusNotFound:
		if notFound != "" {
			msg = notFound
		}
	case http.StatusConflict:
		msg = conflictMessage
	case http.StatusServiceUnavailable:
		msg = "cache unavailable"
		h.log.Error("request failed", journeycas.Fields{"path": r.URL.Path, "requestId": requestID(r), "err": err})
	case http.StatusInternalServerError:
		msg = "internal error"
		h.log.Error("request failed", journeycas.Fields{"path": r.URL.Path, "requestId": requestID(r), "err": err})
	}
	writeJSON(w, status, messageResponse{msg})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, journeycas.ErrInvalid):
		return http.StatusBadRequest
	case errors.Is(err, journeycas.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, journeycas.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, journeycas.ErrTransport):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

const requestIDHeader = "X-Request-ID"

// WithRequestID echoes X-Request-ID, minting a UUID when the caller sent
// none, and logs each request at debug.
func WithRequestID(next http.Handler, log journeycas.Logger) http.Handler {
	if log == nil {
		log = journeycas.NopLogger{}
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = uuid.New().String()
			r.Header.Set(requestIDHeader, id)
		}
		w.Header().Set(requestIDHeader, id)
		start := time.Now()
		next.ServeHTTP(w, r)
		log.Debug("http request", journeycas.Fields{
			"method":    r.Method,
			"path":      r.URL.Path,
			"requestId": id,
			"took":      time.Since(start).String(),
		})
	})
}

func requestID(r *http.Request) string { return r.Header.Get(requestIDHeader) }
