package ports

import (
	"context"

	"qintegrity/domain/experiment"
)

// MatrixRepository persists detection matrices under deterministic names
type MatrixRepository interface {
	Save(ctx context.Context, name string, matrix *experiment.DetectionMatrix) error
	Load(ctx context.Context, name string) (*experiment.DetectionMatrix, error)

	// List returns stored matrix names in lexical order
	List(ctx context.Context) ([]string, error)

	// Path resolves a name to its storage location
	Path(name string) string
}
