package experiment

import (
	"fmt"
	"math"

	"qintegrity/domain/core"

	"gonum.org/v1/gonum/mat"
)

// DetectionMatrix stores detection counts indexed by
// [dataQubits-1, signatureQubits-1]. Cells whose configuration exceeds the
// qubit budget hold NaN.
type DetectionMatrix struct {
	dense *mat.Dense
}

// NewDetectionMatrix creates a NaN-filled (max-1)x(max-1) matrix
func NewDetectionMatrix(maxTotalQubits int) (*DetectionMatrix, error) {
	if maxTotalQubits < 2 {
		return nil, fmt.Errorf("%w: max total qubits must be at least 2, got %d", core.ErrInvalidConfig, maxTotalQubits)
	}
	n := maxTotalQubits - 1
	data := make([]float64, n*n)
	for i := range data {
		data[i] = math.NaN()
	}
	return &DetectionMatrix{dense: mat.NewDense(n, n, data)}, nil
}

// FromDense wraps a loaded square matrix
func FromDense(d *mat.Dense) (*DetectionMatrix, error) {
	r, c := d.Dims()
	if r != c || r == 0 {
		return nil, fmt.Errorf("%w: detection matrix must be square and non-empty, got %dx%d", core.ErrDimensionMismatch, r, c)
	}
	return &DetectionMatrix{dense: d}, nil
}

// Dense exposes the underlying gonum matrix
func (m *DetectionMatrix) Dense() *mat.Dense {
	return m.dense
}

// Dims returns the matrix shape
func (m *DetectionMatrix) Dims() (int, int) {
	return m.dense.Dims()
}

// MaxTotalQubits recovers the qubit budget from the shape
func (m *DetectionMatrix) MaxTotalQubits() int {
	r, _ := m.dense.Dims()
	return r + 1
}

// Set records the detection count for a configuration
func (m *DetectionMatrix) Set(cfg QubitConfig, detections int) error {
	if err := cfg.Validate(m.MaxTotalQubits()); err != nil {
		return err
	}
	m.dense.Set(cfg.DataQubits-1, cfg.SignatureQubits-1, float64(detections))
	return nil
}

// At returns the raw cell value at zero-based indices
func (m *DetectionMatrix) At(i, j int) float64 {
	return m.dense.At(i, j)
}

// Cell is one populated matrix entry
type Cell struct {
	Config     QubitConfig
	Detections float64
}

// Cells returns every non-NaN cell in row-major order
func (m *DetectionMatrix) Cells() []Cell {
	r, c := m.dense.Dims()
	var cells []Cell
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			v := m.dense.At(i, j)
			if math.IsNaN(v) {
				continue
			}
			cells = append(cells, Cell{
				Config:     QubitConfig{DataQubits: i + 1, SignatureQubits: j + 1},
				Detections: v,
			})
		}
	}
	return cells
}

// Equal compares shape and values, treating NaN cells as equal to each other
func (m *DetectionMatrix) Equal(other *DetectionMatrix) bool {
	if other == nil {
		return false
	}
	r1, c1 := m.dense.Dims()
	r2, c2 := other.dense.Dims()
	if r1 != r2 || c1 != c2 {
		return false
	}
	for i := 0; i < r1; i++ {
		for j := 0; j < c1; j++ {
			a, b := m.dense.At(i, j), other.dense.At(i, j)
			if math.IsNaN(a) != math.IsNaN(b) {
				return false
			}
			if !math.IsNaN(a) && a != b {
				return false
			}
		}
	}
	return true
}

// Fingerprint hashes the raw row-major values
func (m *DetectionMatrix) Fingerprint() core.Hash {
	return core.HashFloats(m.dense.RawMatrix().Data)
}

// String prints the matrix the way numpy would, with nan for empty cells
func (m *DetectionMatrix) String() string {
	return fmt.Sprintf("%v", mat.Formatted(m.dense, mat.Squeeze()))
}
