package console

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"qintegrity/domain/experiment"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigCompletedWording(t *testing.T) {
	var buf bytes.Buffer
	r := NewReporter(&buf)
	r.ConfigCompleted(experiment.ConfigSummary{
		Config:     experiment.QubitConfig{DataQubits: 2, SignatureQubits: 1},
		Detections: 40,
		Trials:     50,
	})

	assert.Equal(t, "number of data qubits = 2\n"+
		"number of signature qubits = 1\n"+
		"Detected 40 integrity attacks\n"+
		"Detected integrity attacks in 80.0% of the time\n\n", buf.String())
}

func TestRepetitionCompletedPrintsMatrixAndTime(t *testing.T) {
	var buf bytes.Buffer
	r := NewReporter(&buf)
	start := r.start
	r.now = func() time.Time { return start.Add(1500 * time.Millisecond) }

	m, err := experiment.NewDetectionMatrix(3)
	require.NoError(t, err)
	require.NoError(t, m.Set(experiment.QubitConfig{DataQubits: 1, SignatureQubits: 1}, 40))
	require.NoError(t, m.Set(experiment.QubitConfig{DataQubits: 2, SignatureQubits: 1}, 30))
	require.NoError(t, m.Set(experiment.QubitConfig{DataQubits: 1, SignatureQubits: 2}, 45))

	r.RepetitionCompleted(&experiment.SweepResult{Matrix: m, NumTrials: 50})
	out := buf.String()
	assert.Contains(t, out, "40")
	assert.Contains(t, out, "45")
	assert.Contains(t, out, "nan")
	assert.True(t, strings.HasSuffix(out, "Time to complete: 1.500 seconds\n"))
}

func TestFormatPercent(t *testing.T) {
	assert.Equal(t, "80.0", formatPercent(80))
	assert.Equal(t, "62.5", formatPercent(62.5))
	assert.Equal(t, "0.0", formatPercent(0))
}
