package main

import (
	"encoding/json"
	"errors"
	"flag"
	"testing"
)

func TestBuildEvent(t *testing.T) {
	tests := []struct {
		args     []string
		wantType string
		wantData string
	}{
		{[]string{"phase", "action"}, "set_phase", `{"phase":"action"}`},
		{[]string{"monster", "robot"}, "set_monster", `{"monster":"robot"}`},
		{[]string{"intro"}, "trigger_intro", ``},
		{[]string{"play", "scream"}, "play_manual", `{"cue":"scream"}`},
		{[]string{"set", "sampler.mildChaosPoints", "400"}, "set_param", `{"key":"sampler.mildChaosPoints","value":400}`},
		{[]string{"track", "1", "off"}, "set_tracker_enabled", `{"camera":1,"enabled":false}`},
	}

	for _, tt := range tests {
		env, err := buildEvent(tt.args)
		if err != nil {
			t.Fatalf("buildEvent(%v): %v", tt.args, err)
		}
		if env.Type != tt.wantType || string(env.Data) != tt.wantData {
			t.Fatalf("buildEvent(%v) = %s %s, want %s %s", tt.args, env.Type, env.Data, tt.wantType, tt.wantData)
		}
	}
}

func TestBuildEvent_Errors(t *testing.T) {
	for _, args := range [][]string{
		{"phase"},
		{"set", "k"},
		{"set", "k", "lots"},
		{"track", "x", "on"},
		{"track", "0", "maybe"},
		{"explode"},
	} {
		if _, err := buildEvent(args); err == nil {
			t.Fatalf("buildEvent(%v) should fail", args)
		}
	}

	if _, err := buildEvent([]string{"help"}); !errors.Is(err, flag.ErrHelp) {
		t.Fatalf("help err = %v", err)
	}
}

func TestEnvelopeOmitsEmptyData(t *testing.T) {
	env, _ := newEnvelope("trigger_intro", nil)
	b, err := json.Marshal(env)
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != `{"type":"trigger_intro"}` {
		t.Fatalf("marshal = %s", b)
	}
}
