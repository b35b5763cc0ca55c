package main

import (
	"strings"
	"testing"

	"rampage/internal/cue"
)

func TestUnmarshalEvent_WireNames(t *testing.T) {
	tests := []struct {
		line string
		want Event
	}{
		{`{"type":"flow_observed","data":{"camera":1,"flow":0.42}}`, FlowObserved{Camera: 1, Flow: 0.42}},
		{`{"type":"set_phase","data":{"phase":"reconstruct"}}`, SetPhase{Phase: cue.PhaseReconstructing}},
		{`{"type":"set_monster","data":{"monster":"robot"}}`, SetMonster{Monster: cue.MonsterRobot}},
		{`{"type":"trigger_intro"}`, TriggerIntro{}},
		{`{"type":"play_manual","data":{"cue":"large-damage"}}`, PlayManual{Cue: cue.ManualLargeDamage}},
		{`{"type":"set_tracker_enabled","data":{"camera":0,"enabled":false}}`, SetTrackerEnabled{Camera: 0}},
		{`{"type":"set_param","data":{"key":"sampler.heavyChaosPoints","value":1200}}`, SetParam{Key: keyHeavyChaosPoints, Value: 1200}},
	}

	for _, tt := range tests {
		got, err := UnmarshalEvent([]byte(tt.line))
		if err != nil {
			t.Fatalf("UnmarshalEvent(%s): %v", tt.line, err)
		}
		if got != tt.want {
			t.Fatalf("UnmarshalEvent(%s) = %#v, want %#v", tt.line, got, tt.want)
		}
	}
}

func TestUnmarshalEvent_Errors(t *testing.T) {
	tests := []struct {
		name string
		line string
		want string
	}{
		{"not json", `phase action`, "unmarshal envelope"},
		{"unknown type", `{"type":"explode"}`, "unknown event type"},
		{"missing data", `{"type":"set_phase"}`, "missing data"},
		{"bad phase", `{"type":"set_phase","data":{"phase":"finale"}}`, "unknown phase"},
		{"bad cue", `{"type":"play_manual","data":{"cue":"applause"}}`, "unknown manual cue"},
		{"no key", `{"type":"set_param","data":{"value":3}}`, "key is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := UnmarshalEvent([]byte(tt.line))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("err = %v, want %q", err, tt.want)
			}
		})
	}
}

func TestMarshalEvent_RoundTrip(t *testing.T) {
	events := []Event{
		SetPhase{Phase: cue.PhaseAction},
		TriggerIntro{},
		PlayManual{Cue: cue.ManualScream},
		SetParam{Key: keySmallTriggerSlope, Value: 2.5},
	}
	for _, ev := range events {
		b, err := MarshalEvent(ev)
		if err != nil {
			t.Fatalf("MarshalEvent(%#v): %v", ev, err)
		}
		got, err := UnmarshalEvent(b)
		if err != nil {
			t.Fatalf("UnmarshalEvent(%s): %v", b, err)
		}
		if got != ev {
			t.Fatalf("round trip %s = %#v, want %#v", b, got, ev)
		}
	}

	if _, err := MarshalEvent(Tick{}); err == nil {
		t.Fatalf("internal events must not marshal")
	}
}
