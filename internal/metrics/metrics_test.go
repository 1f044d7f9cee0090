package metrics

import (
	"bytes"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounters(t *testing.T) {
	m := New()

	m.SessionStarted()
	m.SessionStarted()
	m.SessionCompleted("precision", 7, 0.28)
	m.SessionCompleted("max_questions", 20, 0.35)
	m.SessionCompleted("precision", 9, 0.29)
	m.ResponseRecorded(true, 4)
	m.ResponseRecorded(false, 3)
	m.ResponseRecorded(true, 5)
	m.ExposureSubstituted()
	m.Calibrated("calibrated")
	m.Calibrated("insufficient_data")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.sessionsStarted))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.sessionsCompleted.WithLabelValues("precision")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.sessionsCompleted.WithLabelValues("max_questions")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.responses.WithLabelValues("true")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.responses.WithLabelValues("false")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.substitutions))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.calibrations.WithLabelValues("insufficient_data")))

	// One series per unlabeled collector plus one per label value seen.
	n, err := testutil.GatherAndCount(m.registry)
	require.NoError(t, err)
	assert.Equal(t, 11, n)
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.SessionStarted()
	m.SessionCompleted("abandoned", 1, 1)
	m.ResponseRecorded(true, 1)
	m.ExposureSubstituted()
	m.Calibrated("calibrated")
	assert.NoError(t, m.WriteText(&bytes.Buffer{}))
}

func TestWriteText(t *testing.T) {
	m := New()
	m.SessionStarted()

	var buf bytes.Buffer
	require.NoError(t, m.WriteText(&buf))
	assert.Contains(t, buf.String(), "adaptest_session_started_total 1")
	assert.Contains(t, buf.String(), "# TYPE adaptest_estimator_iterations histogram")
}
