package main

import (
	"encoding/json"
	"fmt"

	"rampage/internal/cue"
)

// ============================================================================
// Control Events
// ============================================================================
// Control events are what the outside world can ask of the daemon (IPC,
// rampage-ctl, camera feeders). They carry no timestamps; the daemon loop
// wraps them in TimedEvent on receipt.
// ============================================================================

// FlowObserved is one motion sample from a camera's optical-flow stage.
type FlowObserved struct {
	Camera int     `json:"camera"`
	Flow   float64 `json:"flow"`
}

func (FlowObserved) eventMarker() {}

// SetTrackerEnabled switches a camera's severity tracker on or off.
type SetTrackerEnabled struct {
	Camera  int  `json:"camera"`
	Enabled bool `json:"enabled"`
}

func (SetTrackerEnabled) eventMarker() {}

// SetPhase changes the installation phase.
type SetPhase struct {
	Phase cue.Phase `json:"phase"`
}

func (SetPhase) eventMarker() {}

// SetMonster selects the monster whose intro plays next.
type SetMonster struct {
	Monster cue.Monster `json:"monster"`
}

func (SetMonster) eventMarker() {}

// TriggerIntro plays the monster intro and starts scoring.
type TriggerIntro struct{}

func (TriggerIntro) eventMarker() {}

// PlayManual fires an operator one-shot.
type PlayManual struct {
	Cue cue.ManualCue `json:"cue"`
}

func (PlayManual) eventMarker() {}

// SetParam changes a live parameter by settings key.
type SetParam struct {
	Key   string  `json:"key"`
	Value float64 `json:"value"`
}

func (SetParam) eventMarker() {}

// ============================================================================
// JSON Encoding/Decoding Support
// ============================================================================

// EventEnvelope wraps an event with a type discriminator for JSON marshaling
type EventEnvelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

const (
	typeFlowObserved      = "flow_observed"
	typeSetTrackerEnabled = "set_tracker_enabled"
	typeSetPhase          = "set_phase"
	typeSetMonster        = "set_monster"
	typeTriggerIntro      = "trigger_intro"
	typePlayManual        = "play_manual"
	typeSetParam          = "set_param"
)

// UnmarshalEvent decodes a control event envelope. Enum fields are validated
// by their UnmarshalText, so a bad phase name fails here rather than in the
// daemon loop.
func UnmarshalEvent(data []byte) (Event, error) {
	var env EventEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("unmarshal envelope: %w", err)
	}

	switch env.Type {
	case typeFlowObserved:
		return decodePayload[FlowObserved](env)
	case typeSetTrackerEnabled:
		return decodePayload[SetTrackerEnabled](env)
	case typeSetPhase:
		return decodePayload[SetPhase](env)
	case typeSetMonster:
		return decodePayload[SetMonster](env)
	case typeTriggerIntro:
		return TriggerIntro{}, nil
	case typePlayManual:
		return decodePayload[PlayManual](env)
	case typeSetParam:
		ev, err := decodePayload[SetParam](env)
		if err == nil && ev.(SetParam).Key == "" {
			return nil, fmt.Errorf("unmarshal SetParam: key is required")
		}
		return ev, err
	default:
		return nil, fmt.Errorf("unknown event type: %q", env.Type)
	}
}

func decodePayload[T Event](env EventEnvelope) (Event, error) {
	var v T
	if len(env.Data) == 0 {
		return nil, fmt.Errorf("unmarshal %s: missing data", env.Type)
	}
	if err := json.Unmarshal(env.Data, &v); err != nil {
		return nil, fmt.Errorf("unmarshal %s: %w", env.Type, err)
	}
	return v, nil
}

// MarshalEvent encodes a control event into its envelope.
func MarshalEvent(e Event) ([]byte, error) {
	var env EventEnvelope

	switch e.(type) {
	case FlowObserved:
		env.Type = typeFlowObserved
	case SetTrackerEnabled:
		env.Type = typeSetTrackerEnabled
	case SetPhase:
		env.Type = typeSetPhase
	case SetMonster:
		env.Type = typeSetMonster
	case TriggerIntro:
		env.Type = typeTriggerIntro
		return json.Marshal(env)
	case PlayManual:
		env.Type = typePlayManual
	case SetParam:
		env.Type = typeSetParam
	default:
		return nil, fmt.Errorf("unsupported event type: %T", e)
	}

	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("marshal %s: %w", env.Type, err)
	}
	env.Data = data
	return json.Marshal(env)
}
