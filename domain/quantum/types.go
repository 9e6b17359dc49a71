// Package quantum holds the opaque values exchanged with a quantum simulator.
package quantum

import (
	"math/cmplx"
	"strings"
)

// State is a pure quantum state produced by a simulator. Callers treat it as
// opaque and hand it back to the simulator that created it.
type State interface {
	NumQubits() int
}

// Operator is a unitary acting on a fixed number of qubits.
type Operator interface {
	NumQubits() int
}

// Unitary2 is a single-qubit operator in row-major order.
type Unitary2 [2][2]complex128

// Identity2 returns the 2x2 identity.
func Identity2() Unitary2 {
	return Unitary2{{1, 0}, {0, 1}}
}

// IsIdentity reports exact equality with the identity, matching an
// element-wise array comparison.
func (u Unitary2) IsIdentity() bool {
	return u == Identity2()
}

// Dagger returns the conjugate transpose.
func (u Unitary2) Dagger() Unitary2 {
	return Unitary2{
		{cmplx.Conj(u[0][0]), cmplx.Conj(u[1][0])},
		{cmplx.Conj(u[0][1]), cmplx.Conj(u[1][1])},
	}
}

// Mul returns u·v.
func (u Unitary2) Mul(v Unitary2) Unitary2 {
	var out Unitary2
	for i := 0; i < 2; i++ {
		for j := 0; j < 2; j++ {
			out[i][j] = u[i][0]*v[0][j] + u[i][1]*v[1][j]
		}
	}
	return out
}

// Bits are measurement results in the order the qubits were requested.
type Bits []int

// HasOne reports whether any measured bit is 1.
func (b Bits) HasOne() bool {
	for _, v := range b {
		if v == 1 {
			return true
		}
	}
	return false
}

// String renders the bits highest requested qubit first, the usual
// little-endian bitstring convention.
func (b Bits) String() string {
	var sb strings.Builder
	for i := len(b) - 1; i >= 0; i-- {
		if b[i] == 1 {
			sb.WriteByte('1')
		} else {
			sb.WriteByte('0')
		}
	}
	return sb.String()
}
