package npy

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"testing"

	"qintegrity/domain/core"
	"qintegrity/domain/experiment"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundTripPreservesNaN(t *testing.T) {
	repo, err := NewRepository(t.TempDir())
	require.NoError(t, err)

	m, err := experiment.NewDetectionMatrix(4)
	require.NoError(t, err)
	for _, cfg := range experiment.EnumerateConfigs(4) {
		require.NoError(t, m.Set(cfg, cfg.DataQubits*10+cfg.SignatureQubits))
	}

	name := experiment.MatrixFileName(0, 50)
	require.NoError(t, repo.Save(context.Background(), name, m))

	loaded, err := repo.Load(context.Background(), name)
	require.NoError(t, err)
	assert.True(t, m.Equal(loaded))
	assert.True(t, math.IsNaN(loaded.At(2, 2)))
	assert.True(t, math.IsNaN(loaded.At(1, 2)))
	assert.Equal(t, 31.0, loaded.At(2, 0))
	assert.Equal(t, m.Fingerprint(), loaded.Fingerprint())
}

func TestListSkipsForeignFiles(t *testing.T) {
	dir := t.TempDir()
	repo, err := NewRepository(dir)
	require.NoError(t, err)

	m, err := experiment.NewDetectionMatrix(3)
	require.NoError(t, err)
	require.NoError(t, repo.Save(context.Background(), experiment.MatrixFileName(1, 50), m))
	require.NoError(t, repo.Save(context.Background(), experiment.MatrixFileName(0, 50), m))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.npy"), []byte("x"), 0o644))

	names, err := repo.List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{
		"num_detections_array_0_for_50_num_trials.npy",
		"num_detections_array_1_for_50_num_trials.npy",
	}, names)
}

func TestLoadMissing(t *testing.T) {
	repo, err := NewRepository(t.TempDir())
	require.NoError(t, err)

	_, err = repo.Load(context.Background(), experiment.MatrixFileName(0, 50))
	assert.ErrorIs(t, err, core.ErrMatrixNotFound)
	assert.True(t, core.IsNotFoundError(err))
}

func TestSaveRejectsBadName(t *testing.T) {
	repo, err := NewRepository(t.TempDir())
	require.NoError(t, err)
	m, err := experiment.NewDetectionMatrix(3)
	require.NoError(t, err)
	assert.Error(t, repo.Save(context.Background(), "matrix.csv", m))
}
