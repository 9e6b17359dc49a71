package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"qintegrity/domain/experiment"
)

func execute(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	require.NoError(t, cmd.ExecuteContext(context.Background()), out.String())
	return out.String()
}

func TestRunThenReport(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("LEDGER_DRIVER", "sqlite")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("LOG_LEVEL", "error")
	t.Setenv("LOG_PRETTY", "false")
	t.Setenv("PPROF_ENABLED", "false")
	t.Setenv("QI_OUTPUT_DIR", "")

	out := execute(t, "run", "--output-dir", dir, "--max-total-qubits", "2", "--trials", "4", "--seed", "7")
	assert.Contains(t, out, "number of data qubits = 1")
	assert.Contains(t, out, "number of signature qubits = 1")
	assert.Contains(t, out, "Time to complete:")

	name := experiment.MatrixFileName(0, 4)
	_, err := os.Stat(filepath.Join(dir, name))
	require.NoError(t, err)

	out = execute(t, "interval", name, "--output-dir", dir)
	assert.Contains(t, out, "LOWER")

	out = execute(t, "runs", "--output-dir", dir)
	assert.Contains(t, out, "complete")

	out = execute(t, "export", filepath.Join(dir, "out.xlsx"), "--output-dir", dir)
	assert.Contains(t, out, "out.xlsx")
}

func TestRunRejectsInvalidFlags(t *testing.T) {
	t.Setenv("LEDGER_DRIVER", "none")
	t.Setenv("LOG_LEVEL", "error")
	t.Setenv("QI_OUTPUT_DIR", "")

	cmd := newRootCmd()
	cmd.SetArgs([]string{"run", "--output-dir", t.TempDir(), "--max-total-qubits", "1"})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	assert.Error(t, cmd.ExecuteContext(context.Background()))
}
