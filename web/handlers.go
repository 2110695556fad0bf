package web

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/meterly/subgate/adapters/auth"
	"github.com/meterly/subgate/domain/billing"
)

// Healthz reports liveness.
func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"uptime": time.Since(h.startTime).Round(time.Second).String(),
	})
}

// Subscription resolves the caller's active subscription.
func (h *Handler) Subscription(w http.ResponseWriter, r *http.Request) {
	sub, outcome := h.gate.ResolveActiveSubscription(r.Context())
	if outcome != nil {
		h.writeOutcome(w, outcome)
		return
	}

	h.writeJSON(w, http.StatusOK, sub)
}

// SubscriptionUsage reports aggregate usage for the caller's subscription.
func (h *Handler) SubscriptionUsage(w http.ResponseWriter, r *http.Request) {
	sub, outcome := h.gate.ResolveActiveSubscription(r.Context())
	if outcome != nil {
		h.writeOutcome(w, outcome)
		return
	}

	itemID, ok := billing.FirstItemID(sub)
	if !ok {
		h.writeOutcome(w, &billing.OutcomeNoUsage)
		return
	}

	summary, outcome := h.usage.Summary(r.Context(), itemID)
	if outcome != nil {
		h.writeOutcome(w, outcome)
		return
	}

	h.writeJSON(w, http.StatusOK, summary)
}

type generateRequest struct {
	Topic string `json:"topic"`
}

// Generate streams generated content for a topic. The subscription gate runs
// before any upstream call; usage is metered only after a complete stream.
func (h *Handler) Generate(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "bad_request", "invalid JSON body")
		return
	}
	if req.Topic == "" {
		h.writeError(w, http.StatusBadRequest, "bad_request", "topic is required")
		return
	}

	sub, outcome := h.gate.ResolveActiveSubscription(r.Context())
	if outcome != nil {
		h.writeOutcome(w, outcome)
		return
	}

	principal, _ := auth.PrincipalFromContext(r.Context())

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("X-Accel-Buffering", "no")

	cw := &countingWriter{w: w}
	if err := h.generator.Generate(r.Context(), principal.BillingRef, req.Topic, sub, cw); err != nil {
		if cw.n == 0 {
			h.writeError(w, http.StatusBadGateway, "upstream_error", "generation failed")
			return
		}
		// Headers are gone; the truncated stream is the signal.
		h.logger.Warn().Err(err).Msg("stream aborted mid-generation")
	}
}

// Documents lists the caller's generated documents, newest first.
func (h *Handler) Documents(w http.ResponseWriter, r *http.Request) {
	principal, _ := auth.PrincipalFromContext(r.Context())

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			h.writeError(w, http.StatusBadRequest, "bad_request", "limit must be a positive integer")
			return
		}
		limit = n
	}

	docs, err := h.generator.ListDocuments(r.Context(), principal.BillingRef, limit)
	if err != nil {
		h.logger.Error().Err(err).Msg("list documents failed")
		h.writeError(w, http.StatusInternalServerError, "internal", "could not list documents")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{"documents": docs})
}

// Product returns the raw provider product record.
func (h *Handler) Product(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	raw, err := h.products.Resolve(r.Context(), id)
	if err != nil {
		h.logger.Error().Err(err).Str("product", id).Msg("product lookup failed")
		h.writeError(w, http.StatusBadGateway, "upstream_error", "product lookup failed")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(raw)
}

// countingWriter tracks whether anything reached the client.
type countingWriter struct {
	w http.ResponseWriter
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}

// Flush forwards to the underlying writer so chunks leave promptly.
func (c *countingWriter) Flush() {
	if f, ok := c.w.(http.Flusher); ok {
		f.Flush()
	}
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error().Err(err).Msg("write response failed")
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, code, message string) {
	h.writeJSON(w, status, errorResponse{Code: code, Message: message})
}

// writeOutcome maps a gate outcome onto the wire. The status and message are
// part of the API contract and pass through unchanged.
func (h *Handler) writeOutcome(w http.ResponseWriter, o *billing.Outcome) {
	h.writeJSON(w, o.HTTPStatus, errorResponse{Code: string(o.Kind), Message: o.Message})
}
