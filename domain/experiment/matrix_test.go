package experiment

import (
	"math"
	"testing"

	"qintegrity/domain/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnumerateConfigs(t *testing.T) {
	configs := EnumerateConfigs(3)
	assert.Equal(t, []QubitConfig{
		{DataQubits: 1, SignatureQubits: 1},
		{DataQubits: 2, SignatureQubits: 1},
		{DataQubits: 1, SignatureQubits: 2},
	}, configs)

	for max := 2; max <= 9; max++ {
		configs := EnumerateConfigs(max)
		assert.Len(t, configs, max*(max-1)/2, "max=%d", max)
		for _, cfg := range configs {
			assert.NoError(t, cfg.Validate(max))
		}
	}
}

func TestQubitConfigValidate(t *testing.T) {
	assert.NoError(t, QubitConfig{DataQubits: 2, SignatureQubits: 3}.Validate(5))
	assert.ErrorIs(t, QubitConfig{DataQubits: 3, SignatureQubits: 3}.Validate(5), core.ErrInvalidConfig)
	assert.ErrorIs(t, QubitConfig{DataQubits: 0, SignatureQubits: 1}.Validate(5), core.ErrInvalidConfig)
	assert.ErrorIs(t, QubitConfig{DataQubits: 1, SignatureQubits: 0}.Validate(5), core.ErrInvalidConfig)
}

func TestDetectionMatrixLayout(t *testing.T) {
	m, err := NewDetectionMatrix(3)
	require.NoError(t, err)

	r, c := m.Dims()
	assert.Equal(t, 2, r)
	assert.Equal(t, 2, c)

	require.NoError(t, m.Set(QubitConfig{DataQubits: 1, SignatureQubits: 1}, 10))
	require.NoError(t, m.Set(QubitConfig{DataQubits: 2, SignatureQubits: 1}, 20))
	require.NoError(t, m.Set(QubitConfig{DataQubits: 1, SignatureQubits: 2}, 30))
	assert.Error(t, m.Set(QubitConfig{DataQubits: 2, SignatureQubits: 2}, 40))

	assert.Equal(t, 10.0, m.At(0, 0))
	assert.Equal(t, 20.0, m.At(1, 0))
	assert.Equal(t, 30.0, m.At(0, 1))
	assert.True(t, math.IsNaN(m.At(1, 1)))

	cells := m.Cells()
	require.Len(t, cells, 3)
	assert.Equal(t, QubitConfig{DataQubits: 1, SignatureQubits: 2}, cells[1].Config)
}

func TestDetectionMatrixTooSmall(t *testing.T) {
	_, err := NewDetectionMatrix(1)
	assert.ErrorIs(t, err, core.ErrInvalidConfig)
}

func TestDetectionMatrixEqualHandlesNaN(t *testing.T) {
	a, _ := NewDetectionMatrix(4)
	b, _ := NewDetectionMatrix(4)
	assert.True(t, a.Equal(b))
	assert.Equal(t, a.Fingerprint(), b.Fingerprint())

	require.NoError(t, a.Set(QubitConfig{DataQubits: 1, SignatureQubits: 1}, 3))
	assert.False(t, a.Equal(b))
	require.NoError(t, b.Set(QubitConfig{DataQubits: 1, SignatureQubits: 1}, 3))
	assert.True(t, a.Equal(b))
}

func TestMatrixFileNames(t *testing.T) {
	name := MatrixFileName(2, 50)
	assert.Equal(t, "num_detections_array_2_for_50_num_trials.npy", name)
	assert.Equal(t, "num_detections_array_2_for_50_num_trials.png", ChartFileName(name))

	rep, trials, err := ParseMatrixFileName("/tmp/out/" + name)
	require.NoError(t, err)
	assert.Equal(t, 2, rep)
	assert.Equal(t, 50, trials)

	_, _, err = ParseMatrixFileName("results.csv")
	assert.ErrorIs(t, err, core.ErrInvalidMatrixName)

	_, _, err = ParseMatrixFileName("detections.npy")
	assert.True(t, core.IsValidationError(err))
}

func TestOutcome(t *testing.T) {
	assert.False(t, NoEffect.Conclusive())
	assert.True(t, Detected.Conclusive())
	assert.True(t, NotDetected.Conclusive())
	assert.Equal(t, "detected", Detected.String())

	s := ConfigSummary{Detections: 40, Trials: 50}
	assert.InDelta(t, 0.8, s.Rate(), 1e-12)
	assert.Equal(t, 0.0, ConfigSummary{}.Rate())
}
