// Package statevector is a dense state-vector simulator for small registers.
// Qubit 0 is the least significant bit of the amplitude index.
package statevector

import (
	"errors"
	"fmt"
	"math"
	"math/bits"

	"qintegrity/domain/quantum"
)

// MaxQubits bounds register size; 2^20 amplitudes is 16 MiB per state.
const MaxQubits = 20

var (
	ErrForeignValue  = errors.New("value was not produced by the statevector simulator")
	ErrInvalidLength = errors.New("amplitude count is not a power of two")
	ErrTooManyQubits = fmt.Errorf("register exceeds %d qubits", MaxQubits)
	ErrZeroNorm      = errors.New("state has zero norm")
	ErrInvalidQubits = errors.New("invalid qubit selection")
)

// State is a normalised pure state
type State struct {
	amps []complex128
	n    int
}

var _ quantum.State = (*State)(nil)

// NewState copies amps into a state; len(amps) must be a power of two
func NewState(amps []complex128) (*State, error) {
	if len(amps) == 0 || len(amps)&(len(amps)-1) != 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidLength, len(amps))
	}
	n := bits.TrailingZeros(uint(len(amps)))
	if n > MaxQubits {
		return nil, ErrTooManyQubits
	}
	out := make([]complex128, len(amps))
	copy(out, amps)
	return &State{amps: out, n: n}, nil
}

// NumQubits returns the register size
func (s *State) NumQubits() int {
	return s.n
}

// Dim returns 2^NumQubits
func (s *State) Dim() int {
	return len(s.amps)
}

// Amplitudes returns a copy of the amplitudes
func (s *State) Amplitudes() []complex128 {
	out := make([]complex128, len(s.amps))
	copy(out, s.amps)
	return out
}

// Norm returns the Euclidean norm
func (s *State) Norm() float64 {
	sum := 0.0
	for _, a := range s.amps {
		sum += real(a)*real(a) + imag(a)*imag(a)
	}
	return math.Sqrt(sum)
}

func (s *State) clone() *State {
	out := make([]complex128, len(s.amps))
	copy(out, s.amps)
	return &State{amps: out, n: s.n}
}

func (s *State) normalize() error {
	norm := s.Norm()
	if norm == 0 {
		return ErrZeroNorm
	}
	scale := complex(1/norm, 0)
	for i := range s.amps {
		s.amps[i] *= scale
	}
	return nil
}

func zeroState(n int) (*State, error) {
	if n < 1 || n > MaxQubits {
		return nil, fmt.Errorf("%w: %d qubits", ErrInvalidQubits, n)
	}
	amps := make([]complex128, 1<<n)
	amps[0] = 1
	return &State{amps: amps, n: n}, nil
}

// kron returns a ⊗ b with b on the low-order qubits
func kron(a, b *State) (*State, error) {
	n := a.n + b.n
	if n > MaxQubits {
		return nil, ErrTooManyQubits
	}
	amps := make([]complex128, 1<<n)
	lb := len(b.amps)
	for i, x := range a.amps {
		if x == 0 {
			continue
		}
		for j, y := range b.amps {
			amps[i*lb+j] = x * y
		}
	}
	return &State{amps: amps, n: n}, nil
}

// allClose mirrors numpy.allclose: |a-b| <= atol + rtol*|b| element-wise
func allClose(a, b *State, rtol, atol float64) bool {
	if a.n != b.n {
		return false
	}
	for i := range a.amps {
		diff := a.amps[i] - b.amps[i]
		if math.Hypot(real(diff), imag(diff)) > atol+rtol*math.Hypot(real(b.amps[i]), imag(b.amps[i])) {
			return false
		}
	}
	return true
}
