package observability

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestMetricsRecord(t *testing.T) {
	m := NewMetrics()

	m.RecordTurn("completed", time.Second)
	m.RecordTurn("", time.Second)
	m.RecordAttempt("runtime_failure")
	m.RecordAttempt("runtime_failure")
	m.RecordGeneration("qwen2.5-coder:7b", time.Second, nil)
	m.RecordGeneration("qwen2.5-coder:7b", time.Second, errors.New("down"))
	m.IncActiveSessions("connect")
	m.RecordTransportError("ndjson", "")

	require.Equal(t, 1.0, testutil.ToFloat64(m.Turns.WithLabelValues("completed")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.Turns.WithLabelValues("unknown")))
	require.Equal(t, 2.0, testutil.ToFloat64(m.Attempts.WithLabelValues("runtime_failure")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.Generations.WithLabelValues("qwen2.5-coder:7b", "error")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.ActiveSession.WithLabelValues("connect")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.TransportErrs.WithLabelValues("ndjson", "unknown")))

	m.DecActiveSessions("connect")
	require.Equal(t, 0.0, testutil.ToFloat64(m.ActiveSession.WithLabelValues("connect")))

	families, err := m.Registry().Gather()
	require.NoError(t, err)
	require.NotEmpty(t, families)
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	m.RecordTurn("completed", time.Second)
	m.RecordAttempt("success")
	m.RecordGeneration("m", time.Second, nil)
	m.IncActiveSessions("connect")
	m.DecActiveSessions("connect")
	m.RecordTransportError("connect", "x")
}
