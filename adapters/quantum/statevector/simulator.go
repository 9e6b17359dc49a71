package statevector

import (
	"fmt"
	"math"
	"math/cmplx"
	"math/rand/v2"

	"qintegrity/domain/core"
	"qintegrity/domain/quantum"
	"qintegrity/ports"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/stat/distuv"
)

// Options configures a Simulator
type Options struct {
	// MaxResamples caps identity redraws in RandomSingleQubitUnitary
	MaxResamples int
	// RelTol and AbsTol define state equality, numpy.allclose style
	RelTol float64
	AbsTol float64
	// CliffordLayers returns the number of random layers for an n-qubit Clifford
	CliffordLayers func(numQubits int) int
	Logger         zerolog.Logger
}

// DefaultOptions returns the tolerances of numpy.allclose and a generous resample cap
func DefaultOptions() Options {
	return Options{
		MaxResamples:   1000,
		RelTol:         1e-5,
		AbsTol:         1e-8,
		CliffordLayers: DefaultCliffordLayers,
		Logger:         zerolog.Nop(),
	}
}

// DefaultCliffordLayers grows linearly with register size
func DefaultCliffordLayers(numQubits int) int {
	return 4*numQubits + 4
}

// Simulator implements ports.QuantumSimulator on dense state vectors
type Simulator struct {
	rng    *rand.Rand
	normal distuv.Normal
	opts   Options
	logger zerolog.Logger

	// drawUnitary is the raw Haar sampler; tests replace it to script identity draws
	drawUnitary func() quantum.Unitary2
}

var _ ports.QuantumSimulator = (*Simulator)(nil)

// New creates a simulator drawing all randomness from rng
func New(rng *rand.Rand, opts Options) *Simulator {
	if opts.MaxResamples <= 0 {
		opts.MaxResamples = DefaultOptions().MaxResamples
	}
	if opts.CliffordLayers == nil {
		opts.CliffordLayers = DefaultCliffordLayers
	}
	if opts.RelTol == 0 && opts.AbsTol == 0 {
		opts.RelTol, opts.AbsTol = DefaultOptions().RelTol, DefaultOptions().AbsTol
	}
	s := &Simulator{
		rng:    rng,
		normal: distuv.Normal{Mu: 0, Sigma: 1, Src: rng},
		opts:   opts,
		logger: opts.Logger.With().Str("component", "statevector").Logger(),
	}
	s.drawUnitary = s.haarUnitary
	return s
}

// Factory returns a ports.SimulatorFactory sharing opts
func Factory(opts Options) ports.SimulatorFactory {
	return func(rng *rand.Rand) ports.QuantumSimulator {
		return New(rng, opts)
	}
}

// RandomState draws a Haar-random pure state
func (s *Simulator) RandomState(numQubits int) (quantum.State, error) {
	st, err := zeroState(numQubits)
	if err != nil {
		return nil, err
	}
	for i := range st.amps {
		st.amps[i] = s.gaussian()
	}
	if err := st.normalize(); err != nil {
		return nil, err
	}
	return st, nil
}

// ZeroState returns |0...0>
func (s *Simulator) ZeroState(numQubits int) (quantum.State, error) {
	return zeroState(numQubits)
}

// TensorProduct returns a ⊗ b
func (s *Simulator) TensorProduct(a, b quantum.State) (quantum.State, error) {
	sa, err := asState(a)
	if err != nil {
		return nil, err
	}
	sb, err := asState(b)
	if err != nil {
		return nil, err
	}
	return kron(sa, sb)
}

// RandomSingleQubitUnitary draws Haar unitaries until one differs from the
// identity, giving up after MaxResamples draws.
func (s *Simulator) RandomSingleQubitUnitary() (quantum.Unitary2, error) {
	for attempt := 1; attempt <= s.opts.MaxResamples; attempt++ {
		u := s.drawUnitary()
		if !u.IsIdentity() {
			return u, nil
		}
		s.logger.Warn().Int("attempt", attempt).Msg("randomly selected the identity!")
	}
	return quantum.Unitary2{}, fmt.Errorf("%w after %d draws", core.ErrResampleExhausted, s.opts.MaxResamples)
}

// SingleQubitOperator lifts u onto target
func (s *Simulator) SingleQubitOperator(numQubits, target int, u quantum.Unitary2) (quantum.Operator, error) {
	c, err := NewCircuit(numQubits)
	if err != nil {
		return nil, err
	}
	if err := c.Unitary("unitary", target, u); err != nil {
		return nil, err
	}
	return c, nil
}

// RandomClifford builds alternating layers of random single-qubit Cliffords
// and CX gates over a random pairing of the qubits, closed by a final
// single-qubit layer.
func (s *Simulator) RandomClifford(numQubits int) (quantum.Operator, error) {
	c, err := NewCircuit(numQubits)
	if err != nil {
		return nil, err
	}

	layers := s.opts.CliffordLayers(numQubits)
	if numQubits == 1 {
		layers = 0
	}

	perm := make([]int, numQubits)
	for layer := 0; layer < layers; layer++ {
		if err := s.cliffordLayer(c); err != nil {
			return nil, err
		}
		for i := range perm {
			perm[i] = i
		}
		s.rng.Shuffle(len(perm), func(i, j int) { perm[i], perm[j] = perm[j], perm[i] })
		for k := 0; k+1 < numQubits; k += 2 {
			if err := c.CX(perm[k], perm[k+1]); err != nil {
				return nil, err
			}
		}
	}
	if err := s.cliffordLayer(c); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *Simulator) cliffordLayer(c *Circuit) error {
	for q := 0; q < c.numQubits; q++ {
		idx := s.rng.IntN(len(singleQubitCliffords))
		if err := c.Unitary(fmt.Sprintf("c1_%d", idx), q, singleQubitCliffords[idx]); err != nil {
			return err
		}
	}
	return nil
}

// Apply evolves state by op
func (s *Simulator) Apply(state quantum.State, op quantum.Operator) (quantum.State, error) {
	st, err := asState(state)
	if err != nil {
		return nil, err
	}
	c, err := asCircuit(op)
	if err != nil {
		return nil, err
	}
	return c.Apply(st)
}

// Adjoint returns the inverse circuit
func (s *Simulator) Adjoint(op quantum.Operator) (quantum.Operator, error) {
	c, err := asCircuit(op)
	if err != nil {
		return nil, err
	}
	return c.Adjoint(), nil
}

// Measure samples the joint outcome of qubits by the Born rule and returns
// the renormalised post-measurement state.
func (s *Simulator) Measure(state quantum.State, qubits []int) (quantum.Bits, quantum.State, error) {
	st, err := asState(state)
	if err != nil {
		return nil, nil, err
	}
	if err := validateQubits(qubits, st.n); err != nil {
		return nil, nil, err
	}

	keyOf := func(index int) int {
		key := 0
		for k, q := range qubits {
			if index&(1<<q) != 0 {
				key |= 1 << k
			}
		}
		return key
	}

	probs := make([]float64, 1<<len(qubits))
	for i, a := range st.amps {
		probs[keyOf(i)] += real(a)*real(a) + imag(a)*imag(a)
	}

	outcome := sampleIndex(probs, s.rng.Float64())

	collapsed := st.clone()
	for i := range collapsed.amps {
		if keyOf(i) != outcome {
			collapsed.amps[i] = 0
		}
	}
	if err := collapsed.normalize(); err != nil {
		return nil, nil, err
	}

	result := make(quantum.Bits, len(qubits))
	for k := range qubits {
		result[k] = (outcome >> k) & 1
	}
	return result, collapsed, nil
}

// Equal compares within RelTol/AbsTol; global phase is significant
func (s *Simulator) Equal(a, b quantum.State) bool {
	sa, err := asState(a)
	if err != nil {
		return false
	}
	sb, err := asState(b)
	if err != nil {
		return false
	}
	return allClose(sa, sb, s.opts.RelTol, s.opts.AbsTol)
}

// gaussian returns a standard complex normal sample
func (s *Simulator) gaussian() complex128 {
	return complex(s.normal.Rand(), s.normal.Rand())
}

// haarUnitary orthonormalises a complex Gaussian 2x2 matrix column by column.
// Gram-Schmidt leaves R with a positive diagonal, so Q is Haar distributed.
func (s *Simulator) haarUnitary() quantum.Unitary2 {
	c0 := [2]complex128{s.gaussian(), s.gaussian()}
	c1 := [2]complex128{s.gaussian(), s.gaussian()}

	n0 := math.Sqrt(sqAbs(c0[0]) + sqAbs(c0[1]))
	e0 := [2]complex128{c0[0] / complex(n0, 0), c0[1] / complex(n0, 0)}

	proj := cmplx.Conj(e0[0])*c1[0] + cmplx.Conj(e0[1])*c1[1]
	r := [2]complex128{c1[0] - proj*e0[0], c1[1] - proj*e0[1]}
	n1 := math.Sqrt(sqAbs(r[0]) + sqAbs(r[1]))
	e1 := [2]complex128{r[0] / complex(n1, 0), r[1] / complex(n1, 0)}

	return quantum.Unitary2{
		{e0[0], e1[0]},
		{e0[1], e1[1]},
	}
}

func sqAbs(z complex128) float64 {
	return real(z)*real(z) + imag(z)*imag(z)
}

// sampleIndex picks i with probability probs[i]/sum(probs) given u in [0,1)
func sampleIndex(probs []float64, u float64) int {
	total := 0.0
	for _, p := range probs {
		total += p
	}
	target := u * total
	last := -1
	acc := 0.0
	for i, p := range probs {
		if p <= 0 {
			continue
		}
		last = i
		acc += p
		if target < acc {
			return i
		}
	}
	// rounding left target at the very top of the range
	return last
}

func validateQubits(qubits []int, n int) error {
	if len(qubits) == 0 {
		return fmt.Errorf("%w: no qubits to measure", ErrInvalidQubits)
	}
	seen := make(map[int]bool, len(qubits))
	for _, q := range qubits {
		if q < 0 || q >= n {
			return fmt.Errorf("%w: qubit %d on %d qubits", core.ErrQubitOutOfRange, q, n)
		}
		if seen[q] {
			return fmt.Errorf("%w: qubit %d repeated", ErrInvalidQubits, q)
		}
		seen[q] = true
	}
	return nil
}

func asState(v quantum.State) (*State, error) {
	st, ok := v.(*State)
	if !ok || st == nil {
		return nil, fmt.Errorf("%w: state %T", ErrForeignValue, v)
	}
	return st, nil
}

func asCircuit(v quantum.Operator) (*Circuit, error) {
	c, ok := v.(*Circuit)
	if !ok || c == nil {
		return nil, fmt.Errorf("%w: operator %T", ErrForeignValue, v)
	}
	return c, nil
}
