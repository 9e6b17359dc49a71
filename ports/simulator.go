package ports

import (
	"math/rand/v2"

	"qintegrity/domain/quantum"
)

// QuantumSimulator is the capability set the trial runner consumes. States and
// operators are opaque and only valid with the simulator that produced them.
type QuantumSimulator interface {
	// RandomState returns a random pure state on numQubits qubits
	RandomState(numQubits int) (quantum.State, error)

	// ZeroState returns |0...0> on numQubits qubits
	ZeroState(numQubits int) (quantum.State, error)

	// TensorProduct returns a ⊗ b; b occupies the low-order qubits
	TensorProduct(a, b quantum.State) (quantum.State, error)

	// RandomSingleQubitUnitary returns a random 2x2 unitary that is never the identity
	RandomSingleQubitUnitary() (quantum.Unitary2, error)

	// SingleQubitOperator lifts u onto qubit target of a numQubits register
	SingleQubitOperator(numQubits, target int, u quantum.Unitary2) (quantum.Operator, error)

	// RandomClifford returns a random Clifford operator on numQubits qubits
	RandomClifford(numQubits int) (quantum.Operator, error)

	// Apply evolves state by op
	Apply(state quantum.State, op quantum.Operator) (quantum.State, error)

	// Adjoint returns the inverse of op
	Adjoint(op quantum.Operator) (quantum.Operator, error)

	// Measure projectively measures the given qubits, returning the bits in
	// request order and the collapsed state
	Measure(state quantum.State, qubits []int) (quantum.Bits, quantum.State, error)

	// Equal compares two states within the simulator's numerical tolerance
	Equal(a, b quantum.State) bool
}

// SimulatorFactory builds a simulator bound to one random stream
type SimulatorFactory func(rng *rand.Rand) QuantumSimulator
