package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Jobs(t *testing.T) {
	m := New()

	m.JobEnqueued("user", "addUserToDB", nil)
	m.JobEnqueued("user", "addUserToDB", errors.New("down"))

	done := m.JobStarted("user", "addUserToDB")
	assert.Equal(t, float64(1), testutil.ToFloat64(m.jobsInFlight.WithLabelValues("user", "addUserToDB")))
	done(OutcomeFailed)
	m.JobMalformed("user", "addUserToDB")

	assert.Equal(t, float64(1), testutil.ToFloat64(m.jobsEnqueued.WithLabelValues("user", "addUserToDB")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.enqueueErrors.WithLabelValues("user", "addUserToDB")))
	assert.Equal(t, float64(0), testutil.ToFloat64(m.jobsInFlight.WithLabelValues("user", "addUserToDB")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.jobsProcessed.WithLabelValues("user", "addUserToDB", OutcomeFailed)))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.jobsProcessed.WithLabelValues("user", "addUserToDB", OutcomeMalformed)))
}

func TestMetrics_Gateway(t *testing.T) {
	m := New()

	m.ConnectionOpened()
	m.ConnectionOpened()
	m.ConnectionClosed()
	m.Broadcast(BroadcastLocalOnly)
	m.RemoteEvent()

	assert.Equal(t, float64(1), testutil.ToFloat64(m.connections))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.broadcasts.WithLabelValues(BroadcastLocalOnly)))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.remoteEvents))
}

func TestMetrics_Handler(t *testing.T) {
	m := New()
	m.Broadcast(BroadcastReplicated)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `backbone_gateway_broadcasts_total{outcome="replicated"} 1`)
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics

	m.JobEnqueued("q", "j", nil)
	m.JobStarted("q", "j")(OutcomeCompleted)
	m.JobMalformed("q", "j")
	m.ConnectionOpened()
	m.ConnectionClosed()
	m.Broadcast(BroadcastReplicated)
	m.RemoteEvent()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	assert.Equal(t, 404, rec.Code)
}
