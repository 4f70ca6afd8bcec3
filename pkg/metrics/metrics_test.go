package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterAndServe(t *testing.T) {
	reg := NewRegistry(WithRuntimeCollectors(false))

	counter := NewCounter("test", "events_total", "test events")
	vec := NewCounterVec("test", "outcomes_total", "test outcomes", "outcome")
	require.NoError(t, Register(reg, counter, vec))

	// registering again is not an error
	require.NoError(t, Register(reg, counter))

	counter.Add(3)
	vec.WithLabelValues("ok").Inc()
	assert.Equal(t, 3.0, testutil.ToFloat64(counter))

	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	assert.True(t, strings.Contains(body, "dagsync_test_events_total 3"))
	assert.True(t, strings.Contains(body, `dagsync_test_outcomes_total{outcome="ok"} 1`))
}

func TestRegisterConflict(t *testing.T) {
	reg := NewRegistry(WithRuntimeCollectors(false))
	require.NoError(t, Register(reg, NewCounter("test", "dup_total", "first")))
	require.Error(t, Register(reg, NewCounterVec("test", "dup_total", "second", "label")))
}

func TestUnits(t *testing.T) {
	assert.EqualValues(t, 1024, KB)
	assert.EqualValues(t, 1024*KB, MB)
	assert.EqualValues(t, 1024*MB, GB)
}
