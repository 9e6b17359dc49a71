package experiment

import (
	"fmt"
	"time"

	"qintegrity/domain/core"
	"qintegrity/domain/stats"
)

// QubitConfig is one (data, signature) split of the qubit budget
type QubitConfig struct {
	DataQubits      int `json:"data_qubits" db:"data_qubits"`
	SignatureQubits int `json:"signature_qubits" db:"signature_qubits"`
}

// Total returns the number of qubits the encoded state spans
func (c QubitConfig) Total() int {
	return c.DataQubits + c.SignatureQubits
}

// Validate checks both counts are positive and fit the budget
func (c QubitConfig) Validate(maxTotalQubits int) error {
	if c.DataQubits < 1 || c.SignatureQubits < 1 || c.Total() > maxTotalQubits {
		return core.NewConfigError(c.DataQubits, c.SignatureQubits, maxTotalQubits)
	}
	return nil
}

func (c QubitConfig) String() string {
	return fmt.Sprintf("m=%d,d=%d", c.DataQubits, c.SignatureQubits)
}

// EnumerateConfigs lists every valid configuration, signature count outermost
func EnumerateConfigs(maxTotalQubits int) []QubitConfig {
	var configs []QubitConfig
	for d := 1; d < maxTotalQubits; d++ {
		for m := 1; m <= maxTotalQubits-d; m++ {
			configs = append(configs, QubitConfig{DataQubits: m, SignatureQubits: d})
		}
	}
	return configs
}

// Outcome classifies a single encode/attack/decode trial
type Outcome int

const (
	// NoEffect means the decoded, measured state equals the original; the trial is retried
	NoEffect Outcome = iota
	NotDetected
	Detected
)

func (o Outcome) String() string {
	switch o {
	case NoEffect:
		return "no_effect"
	case NotDetected:
		return "not_detected"
	case Detected:
		return "detected"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Conclusive reports whether the outcome counts toward the trial budget
func (o Outcome) Conclusive() bool {
	return o == Detected || o == NotDetected
}

// TrialRecord is a conclusive outcome and the NoEffect retries that preceded it
type TrialRecord struct {
	Outcome Outcome
	Retries int
}

// ConfigSummary is the per-configuration result of one repetition
type ConfigSummary struct {
	Config          QubitConfig    `json:"config"`
	Detections      int            `json:"detections"`
	Trials          int            `json:"trials"`
	NoEffectRetries int            `json:"no_effect_retries"`
	Interval        stats.Interval `json:"interval"`
}

// Rate returns the detection fraction
func (s ConfigSummary) Rate() float64 {
	if s.Trials == 0 {
		return 0
	}
	return float64(s.Detections) / float64(s.Trials)
}

// SweepResult contains the complete output of one sweep repetition
type SweepResult struct {
	RunID      core.RunID       `json:"run_id"`
	Repetition int              `json:"repetition"`
	NumTrials  int              `json:"num_trials"`
	Matrix     *DetectionMatrix `json:"-"`
	Summaries  []ConfigSummary  `json:"summaries"`
	Elapsed    time.Duration    `json:"elapsed"`
}
