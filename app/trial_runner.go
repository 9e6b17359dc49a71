package app

import (
	"context"
	"fmt"
	"math/rand/v2"

	"qintegrity/domain/core"
	"qintegrity/domain/experiment"
	"qintegrity/domain/quantum"
	"qintegrity/ports"

	"github.com/rs/zerolog"
)

// DefaultMaxRetries caps NoEffect retries per conclusive trial
const DefaultMaxRetries = 10000

// TrialOptions controls the adversary and the retry budget
type TrialOptions struct {
	// MaxRetries is the number of NoEffect retries allowed before giving up
	MaxRetries int
	// AttackQubit fixes the attacked position; negative means uniform at random
	AttackQubit int
	// AttackUnitary fixes the attack operation; nil means a fresh random unitary per trial
	AttackUnitary *quantum.Unitary2
}

// TrialRunner executes encode/attack/decode/measure trials for one configuration
type TrialRunner struct {
	sim    ports.QuantumSimulator
	rng    *rand.Rand
	opts   TrialOptions
	logger zerolog.Logger
}

// NewTrialRunner creates a trial runner; rng drives the attack position
func NewTrialRunner(sim ports.QuantumSimulator, rng *rand.Rand, opts TrialOptions, logger zerolog.Logger) *TrialRunner {
	if opts.MaxRetries < 0 {
		opts.MaxRetries = DefaultMaxRetries
	}
	return &TrialRunner{
		sim:    sim,
		rng:    rng,
		opts:   opts,
		logger: logger,
	}
}

// GenerateBaseState returns a random data state tensored with |0...0> on the
// signature qubits, which occupy the low-order positions.
func GenerateBaseState(sim ports.QuantumSimulator, cfg experiment.QubitConfig) (quantum.State, error) {
	data, err := sim.RandomState(cfg.DataQubits)
	if err != nil {
		return nil, fmt.Errorf("failed to draw data state: %w", err)
	}
	signature, err := sim.ZeroState(cfg.SignatureQubits)
	if err != nil {
		return nil, fmt.Errorf("failed to build signature state: %w", err)
	}
	return sim.TensorProduct(data, signature)
}

// RunTrial performs one trial against base and classifies it
func (r *TrialRunner) RunTrial(ctx context.Context, totalQubits, numSignatureQubits int, base quantum.State) (experiment.Outcome, error) {
	if err := ctx.Err(); err != nil {
		return experiment.NoEffect, err
	}
	if base.NumQubits() != totalQubits {
		return experiment.NoEffect, core.NewDimensionError(totalQubits, base.NumQubits())
	}
	if numSignatureQubits < 1 || numSignatureQubits >= totalQubits {
		return experiment.NoEffect, core.NewConfigError(totalQubits-numSignatureQubits, numSignatureQubits, totalQubits)
	}

	// 1. adversarial attack
	target := r.opts.AttackQubit
	if target < 0 {
		target = r.rng.IntN(totalQubits)
	} else if target >= totalQubits {
		return experiment.NoEffect, fmt.Errorf("%w: attack qubit %d on %d qubits", core.ErrQubitOutOfRange, target, totalQubits)
	}

	var u quantum.Unitary2
	if r.opts.AttackUnitary != nil {
		u = *r.opts.AttackUnitary
	} else {
		var err error
		u, err = r.sim.RandomSingleQubitUnitary()
		if err != nil {
			return experiment.NoEffect, err
		}
	}
	attack, err := r.sim.SingleQubitOperator(totalQubits, target, u)
	if err != nil {
		return experiment.NoEffect, fmt.Errorf("failed to build attack: %w", err)
	}

	// 2. encoding
	encode, err := r.sim.RandomClifford(totalQubits)
	if err != nil {
		return experiment.NoEffect, fmt.Errorf("failed to sample clifford: %w", err)
	}
	decode, err := r.sim.Adjoint(encode)
	if err != nil {
		return experiment.NoEffect, fmt.Errorf("failed to invert clifford: %w", err)
	}

	// 3. encode, attack, decode
	encoded, err := r.sim.Apply(base, encode)
	if err != nil {
		return experiment.NoEffect, fmt.Errorf("encode: %w", err)
	}
	attacked, err := r.sim.Apply(encoded, attack)
	if err != nil {
		return experiment.NoEffect, fmt.Errorf("attack: %w", err)
	}
	decoded, err := r.sim.Apply(attacked, decode)
	if err != nil {
		return experiment.NoEffect, fmt.Errorf("decode: %w", err)
	}

	// 4. measure the signature qubits
	signature := make([]int, numSignatureQubits)
	for i := range signature {
		signature[i] = i
	}
	bits, collapsed, err := r.sim.Measure(decoded, signature)
	if err != nil {
		return experiment.NoEffect, fmt.Errorf("measure: %w", err)
	}

	// 5. classify
	if r.sim.Equal(collapsed, base) {
		r.logger.Debug().Int("attack_qubit", target).Msg("the adversary had no effect on the state!")
		return experiment.NoEffect, nil
	}
	if bits.HasOne() {
		return experiment.Detected, nil
	}
	return experiment.NotDetected, nil
}

// RunConclusiveTrial repeats RunTrial until it is Detected or NotDetected.
// Each NoEffect triggers exactly one retry; after MaxRetries retries the
// trial fails with core.ErrRetryBudgetExhausted.
func (r *TrialRunner) RunConclusiveTrial(ctx context.Context, totalQubits, numSignatureQubits int, base quantum.State) (experiment.TrialRecord, error) {
	for retries := 0; retries <= r.opts.MaxRetries; retries++ {
		outcome, err := r.RunTrial(ctx, totalQubits, numSignatureQubits, base)
		if err != nil {
			return experiment.TrialRecord{}, err
		}
		if outcome.Conclusive() {
			return experiment.TrialRecord{Outcome: outcome, Retries: retries}, nil
		}
	}
	return experiment.TrialRecord{}, fmt.Errorf("%w: %d retries", core.ErrRetryBudgetExhausted, r.opts.MaxRetries)
}
