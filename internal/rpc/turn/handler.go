package turn

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/texttoaction/tta/internal/observability"
	"github.com/texttoaction/tta/internal/rpc"
	"github.com/texttoaction/tta/internal/sandbox"
)

// Handler serves POST /turn as an NDJSON stream of rpc.TurnEvent.
type Handler struct {
	runner  Runner
	metrics *observability.Metrics
}

// NewHandler constructs a handler instance.
func NewHandler(runner Runner, metrics *observability.Metrics) *Handler {
	return &Handler{runner: runner, metrics: metrics}
}

// ServeHTTP decodes one rpc.TurnRequest and streams the turn's events. The
// turn is canceled when the client goes away.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		h.metrics.RecordTransportError("ndjson", "method_not_allowed")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	h.metrics.IncActiveSessions("ndjson")
	defer h.metrics.DecActiveSessions("ndjson")

	var req rpc.TurnRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.metrics.RecordTransportError("ndjson", "decode")
		http.Error(w, fmt.Sprintf("invalid request: %v", err), http.StatusBadRequest)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	events, err := h.runner.Run(r.Context(), req)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, ErrEmptyInstruction) {
			status = http.StatusBadRequest
		}
		h.metrics.RecordTransportError("ndjson", "runner_error")
		http.Error(w, fmt.Sprintf("runner error: %v", err), status)
		return
	}

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.WriteHeader(http.StatusOK)

	writer := bufio.NewWriter(w)
	enc := json.NewEncoder(writer)
	broken := false
	for ev := range events {
		if broken {
			continue
		}
		if err := enc.Encode(ev); err != nil {
			broken = true
			continue
		}
		if err := writer.Flush(); err != nil {
			h.metrics.RecordTransportError("ndjson", "send")
			broken = true
			continue
		}
		flusher.Flush()
	}
}

// CapabilitiesHandler serves the sandbox capability set as JSON.
type CapabilitiesHandler struct {
	Capabilities sandbox.CapabilitySet
}

// ServeHTTP renders the capability descriptor.
func (h CapabilitiesHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(h.Capabilities.Describe())
}
