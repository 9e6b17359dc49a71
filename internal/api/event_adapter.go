package api

import (
	"qintegrity/domain/experiment"
	"qintegrity/ports"
)

// ProgressBroadcaster publishes sweep progress through the SSE hub
type ProgressBroadcaster struct {
	hub   *SSEHub
	topic string
}

var _ ports.ProgressReporter = (*ProgressBroadcaster)(nil)

// NewProgressBroadcaster creates a broadcaster for topic
func NewProgressBroadcaster(hub *SSEHub, topic string) *ProgressBroadcaster {
	if topic == "" {
		topic = DefaultTopic
	}
	return &ProgressBroadcaster{hub: hub, topic: topic}
}

// ConfigCompleted implements ports.ProgressReporter
func (b *ProgressBroadcaster) ConfigCompleted(s experiment.ConfigSummary) {
	b.hub.Broadcast(SweepEvent{
		Topic:     b.topic,
		EventType: "config_completed",
		Data: map[string]interface{}{
			"data_qubits":       s.Config.DataQubits,
			"signature_qubits":  s.Config.SignatureQubits,
			"detections":        s.Detections,
			"trials":            s.Trials,
			"rate":              s.Rate(),
			"lower_bound":       s.Interval.Lower,
			"upper_bound":       s.Interval.Upper,
			"no_effect_retries": s.NoEffectRetries,
		},
	})
}

// RepetitionCompleted implements ports.ProgressReporter
func (b *ProgressBroadcaster) RepetitionCompleted(result *experiment.SweepResult) {
	b.hub.Broadcast(SweepEvent{
		Topic:     b.topic,
		EventType: "repetition_completed",
		RunID:     result.RunID.String(),
		Data: map[string]interface{}{
			"repetition":  result.Repetition,
			"num_trials":  result.NumTrials,
			"fingerprint": result.Matrix.Fingerprint().String(),
			"elapsed_ms":  result.Elapsed.Milliseconds(),
		},
	})
}

// MultiReporter forwards progress to several reporters
type MultiReporter []ports.ProgressReporter

func (m MultiReporter) ConfigCompleted(s experiment.ConfigSummary) {
	for _, r := range m {
		r.ConfigCompleted(s)
	}
}

func (m MultiReporter) RepetitionCompleted(result *experiment.SweepResult) {
	for _, r := range m {
		r.RepetitionCompleted(result)
	}
}
