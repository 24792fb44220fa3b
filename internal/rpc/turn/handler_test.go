package turn

import (
	"bufio"
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/texttoaction/tta/internal/observability"
	"github.com/texttoaction/tta/internal/rpc"
	"github.com/texttoaction/tta/internal/sandbox"
)

func TestHandlerStreamsEvents(t *testing.T) {
	handler := NewHandler(&AgentRunner{Agent: &fakePerformer{}}, observability.NewMetrics())
	body := bytes.NewBufferString(`{"instruction":"say hi"}`)
	req := httptest.NewRequest(http.MethodPost, "/turn", body)
	rr := httptest.NewRecorder()

	handler.ServeHTTP(rr, req)

	resp := rr.Result()
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "application/x-ndjson", resp.Header.Get("Content-Type"))

	var types []string
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		var evt rpc.TurnEvent
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &evt))
		types = append(types, evt.Type)
	}
	require.Equal(t, []string{"state", "code", "output", "output", "completed"}, types)
}

func TestHandlerRejectsBadRequests(t *testing.T) {
	metrics := observability.NewMetrics()
	handler := NewHandler(&AgentRunner{Agent: &fakePerformer{}}, metrics)

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/turn", nil))
	require.Equal(t, http.StatusMethodNotAllowed, rr.Code)

	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/turn", bytes.NewBufferString("{")))
	require.Equal(t, http.StatusBadRequest, rr.Code)

	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/turn", bytes.NewBufferString(`{"instruction":""}`)))
	require.Equal(t, http.StatusBadRequest, rr.Code)

	require.Equal(t, float64(1), testutil.ToFloat64(metrics.TransportErrs.WithLabelValues("ndjson", "decode")))
	require.Equal(t, float64(0), testutil.ToFloat64(metrics.ActiveSession.WithLabelValues("ndjson")))
}

func TestCapabilitiesHandler(t *testing.T) {
	h := CapabilitiesHandler{Capabilities: sandbox.Standard()}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/capabilities", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	var desc sandbox.Descriptor
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &desc))
	require.Contains(t, desc.Builtins, "print")
	require.Equal(t, []string{"datetime", "time", "threading", "requests"}, desc.Imports)

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/capabilities", nil))
	require.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}
