package statevector

import (
	"fmt"

	"qintegrity/domain/quantum"
)

// Gate is a single-qubit matrix gate, or a CX when Control >= 0
type Gate struct {
	Name    string
	Target  int
	Control int
	Matrix  quantum.Unitary2
}

// IsCX reports whether the gate is a controlled-X
func (g Gate) IsCX() bool {
	return g.Control >= 0
}

func (g Gate) String() string {
	if g.IsCX() {
		return fmt.Sprintf("cx q[%d], q[%d]", g.Control, g.Target)
	}
	return fmt.Sprintf("%s q[%d]", g.Name, g.Target)
}

// Circuit is an ordered gate list on a fixed register
type Circuit struct {
	numQubits int
	gates     []Gate
}

var _ quantum.Operator = (*Circuit)(nil)

// NewCircuit creates an empty circuit
func NewCircuit(numQubits int) (*Circuit, error) {
	if numQubits < 1 || numQubits > MaxQubits {
		return nil, fmt.Errorf("%w: %d qubits", ErrInvalidQubits, numQubits)
	}
	return &Circuit{numQubits: numQubits}, nil
}

// NumQubits returns the register size
func (c *Circuit) NumQubits() int {
	return c.numQubits
}

// Gates returns a copy of the gate list
func (c *Circuit) Gates() []Gate {
	out := make([]Gate, len(c.gates))
	copy(out, c.gates)
	return out
}

// Len returns the gate count
func (c *Circuit) Len() int {
	return len(c.gates)
}

// Unitary appends a single-qubit gate
func (c *Circuit) Unitary(name string, target int, u quantum.Unitary2) error {
	if target < 0 || target >= c.numQubits {
		return fmt.Errorf("%w: target %d on %d qubits", ErrInvalidQubits, target, c.numQubits)
	}
	c.gates = append(c.gates, Gate{Name: name, Target: target, Control: -1, Matrix: u})
	return nil
}

// CX appends a controlled-X
func (c *Circuit) CX(control, target int) error {
	if control < 0 || control >= c.numQubits || target < 0 || target >= c.numQubits || control == target {
		return fmt.Errorf("%w: cx %d->%d on %d qubits", ErrInvalidQubits, control, target, c.numQubits)
	}
	c.gates = append(c.gates, Gate{Name: "cx", Target: target, Control: control})
	return nil
}

// Adjoint returns the inverse circuit: gates reversed, each daggered
func (c *Circuit) Adjoint() *Circuit {
	out := &Circuit{numQubits: c.numQubits, gates: make([]Gate, 0, len(c.gates))}
	for i := len(c.gates) - 1; i >= 0; i-- {
		g := c.gates[i]
		if !g.IsCX() {
			g.Matrix = g.Matrix.Dagger()
			g.Name += "_dg"
		}
		out.gates = append(out.gates, g)
	}
	return out
}

// Apply evolves a copy of s through the circuit
func (c *Circuit) Apply(s *State) (*State, error) {
	if s.n != c.numQubits {
		return nil, fmt.Errorf("%w: circuit has %d qubits, state has %d", ErrInvalidQubits, c.numQubits, s.n)
	}
	out := s.clone()
	for _, g := range c.gates {
		if g.IsCX() {
			applyCX(out.amps, g.Control, g.Target)
		} else {
			applySingle(out.amps, g.Target, g.Matrix)
		}
	}
	return out, nil
}

func applySingle(amps []complex128, target int, u quantum.Unitary2) {
	bit := 1 << target
	for i := range amps {
		if i&bit != 0 {
			continue
		}
		j := i | bit
		a0, a1 := amps[i], amps[j]
		amps[i] = u[0][0]*a0 + u[0][1]*a1
		amps[j] = u[1][0]*a0 + u[1][1]*a1
	}
}

func applyCX(amps []complex128, control, target int) {
	cbit, tbit := 1<<control, 1<<target
	for i := range amps {
		if i&cbit != 0 && i&tbit == 0 {
			j := i | tbit
			amps[i], amps[j] = amps[j], amps[i]
		}
	}
}
