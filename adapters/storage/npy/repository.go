// Package npy stores detection matrices as NumPy .npy files.
package npy

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"qintegrity/domain/core"
	"qintegrity/domain/experiment"
	"qintegrity/ports"

	"github.com/sbinet/npyio"
	"gonum.org/v1/gonum/mat"
)

// Repository keeps one .npy file per matrix in a directory
type Repository struct {
	dir string
}

var _ ports.MatrixRepository = (*Repository)(nil)

// NewRepository creates a repository rooted at dir, creating it if needed
func NewRepository(dir string) (*Repository, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create matrix dir %s: %w", dir, err)
	}
	return &Repository{dir: dir}, nil
}

// Path resolves a matrix name inside the repository directory
func (r *Repository) Path(name string) string {
	return filepath.Join(r.dir, filepath.Base(name))
}

// Save writes the matrix as a float64 array, NaN marking unused cells
func (r *Repository) Save(ctx context.Context, name string, matrix *experiment.DetectionMatrix) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !strings.HasSuffix(name, experiment.MatrixExt) {
		return fmt.Errorf("%w: %q must end in %s", core.ErrInvalidMatrixName, name, experiment.MatrixExt)
	}

	// write-then-rename so readers never see a partial file
	path := r.Path(name)
	tmp, err := os.CreateTemp(r.dir, ".tmp-*"+experiment.MatrixExt)
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmp.Name())
		}
	}()

	if err = npyio.Write(tmp, matrix.Dense()); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to encode %s: %w", name, err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", name, err)
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to move %s into place: %w", name, err)
	}
	return nil
}

// Load reads a stored matrix
func (r *Repository) Load(ctx context.Context, name string) (*experiment.DetectionMatrix, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(r.Path(name))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", core.ErrMatrixNotFound, name)
		}
		return nil, err
	}
	defer f.Close()

	var dense mat.Dense
	if err := npyio.Read(f, &dense); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", name, err)
	}
	return experiment.FromDense(&dense)
}

// List returns every matrix file in the directory in lexical order
func (r *Repository) List(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") {
			continue
		}
		if _, _, err := experiment.ParseMatrixFileName(name); err != nil {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}
