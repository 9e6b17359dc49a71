package statevector

import (
	"math"

	"qintegrity/domain/quantum"
)

var (
	gateI = quantum.Identity2()
	gateX = quantum.Unitary2{{0, 1}, {1, 0}}
	gateY = quantum.Unitary2{{0, -1i}, {1i, 0}}
	gateZ = quantum.Unitary2{{1, 0}, {0, -1}}
	gateH = quantum.Unitary2{
		{complex(1/math.Sqrt2, 0), complex(1/math.Sqrt2, 0)},
		{complex(1/math.Sqrt2, 0), complex(-1/math.Sqrt2, 0)},
	}
	gateS = quantum.Unitary2{{1, 0}, {0, 1i}}
)

// singleQubitCliffords enumerates the 24 single-qubit Cliffords (modulo
// global phase) as the six axis permutations {I, H, S, HS, SH, HSH} times
// the Paulis.
var singleQubitCliffords = buildSingleQubitCliffords()

func buildSingleQubitCliffords() []quantum.Unitary2 {
	// each sequence is in application order
	cosets := [][]quantum.Unitary2{
		{},
		{gateH},
		{gateS},
		{gateS, gateH},
		{gateH, gateS},
		{gateH, gateS, gateH},
	}
	paulis := []quantum.Unitary2{gateI, gateX, gateY, gateZ}

	out := make([]quantum.Unitary2, 0, len(cosets)*len(paulis))
	for _, seq := range cosets {
		base := gateI
		for _, g := range seq {
			base = g.Mul(base)
		}
		for _, p := range paulis {
			out = append(out, p.Mul(base))
		}
	}
	return out
}
