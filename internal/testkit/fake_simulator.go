package testkit

import (
	"fmt"
	"math/rand/v2"
	"sync"

	"qintegrity/domain/experiment"
	"qintegrity/domain/quantum"
	"qintegrity/ports"
)

// FakeState is an opaque state that only tracks its width and whether the
// last measurement left it unchanged.
type FakeState struct {
	n       int
	touched bool
}

func (s FakeState) NumQubits() int { return s.n }

// FakeOperator stands in for any circuit
type FakeOperator struct {
	n int
}

func (o FakeOperator) NumQubits() int { return o.n }

// ScriptedSimulator replays a fixed sequence of trial outcomes. Each Measure
// call consumes the next outcome; the script wraps around when exhausted.
type ScriptedSimulator struct {
	script []experiment.Outcome
	next   int

	mu            sync.Mutex
	Measurements  int
	AttackTargets []int
	Cliffords     int
}

var _ ports.QuantumSimulator = (*ScriptedSimulator)(nil)

// NewScriptedSimulator creates a simulator replaying outcomes
func NewScriptedSimulator(outcomes ...experiment.Outcome) *ScriptedSimulator {
	if len(outcomes) == 0 {
		outcomes = []experiment.Outcome{experiment.Detected}
	}
	return &ScriptedSimulator{script: outcomes}
}

func (f *ScriptedSimulator) RandomState(numQubits int) (quantum.State, error) {
	return FakeState{n: numQubits}, nil
}

func (f *ScriptedSimulator) ZeroState(numQubits int) (quantum.State, error) {
	return FakeState{n: numQubits}, nil
}

func (f *ScriptedSimulator) TensorProduct(a, b quantum.State) (quantum.State, error) {
	return FakeState{n: a.NumQubits() + b.NumQubits()}, nil
}

func (f *ScriptedSimulator) RandomSingleQubitUnitary() (quantum.Unitary2, error) {
	return quantum.Unitary2{{0, 1}, {1, 0}}, nil
}

func (f *ScriptedSimulator) SingleQubitOperator(numQubits, target int, u quantum.Unitary2) (quantum.Operator, error) {
	if target < 0 || target >= numQubits {
		return nil, fmt.Errorf("target %d out of range", target)
	}
	f.mu.Lock()
	f.AttackTargets = append(f.AttackTargets, target)
	f.mu.Unlock()
	return FakeOperator{n: numQubits}, nil
}

func (f *ScriptedSimulator) RandomClifford(numQubits int) (quantum.Operator, error) {
	f.mu.Lock()
	f.Cliffords++
	f.mu.Unlock()
	return FakeOperator{n: numQubits}, nil
}

func (f *ScriptedSimulator) Apply(state quantum.State, op quantum.Operator) (quantum.State, error) {
	if state.NumQubits() != op.NumQubits() {
		return nil, fmt.Errorf("width mismatch: %d vs %d", state.NumQubits(), op.NumQubits())
	}
	return FakeState{n: state.NumQubits(), touched: true}, nil
}

func (f *ScriptedSimulator) Adjoint(op quantum.Operator) (quantum.Operator, error) {
	return op, nil
}

func (f *ScriptedSimulator) Measure(state quantum.State, qubits []int) (quantum.Bits, quantum.State, error) {
	f.mu.Lock()
	outcome := f.script[f.next%len(f.script)]
	f.next++
	f.Measurements++
	f.mu.Unlock()

	bits := make(quantum.Bits, len(qubits))
	if outcome == experiment.Detected {
		bits[len(bits)-1] = 1
	}
	return bits, FakeState{n: state.NumQubits(), touched: outcome != experiment.NoEffect}, nil
}

func (f *ScriptedSimulator) Equal(a, b quantum.State) bool {
	fa, okA := a.(FakeState)
	fb, okB := b.(FakeState)
	return okA && okB && fa == fb
}

// ScriptedFactory returns a factory handing every caller a fresh simulator
// replaying the same script.
func ScriptedFactory(outcomes ...experiment.Outcome) ports.SimulatorFactory {
	return func(_ *rand.Rand) ports.QuantumSimulator {
		return NewScriptedSimulator(outcomes...)
	}
}
