package main

import (
	"errors"
	"testing"
	"time"

	"rampage/internal/cue"
	"rampage/internal/flow"
)

func baseSnapshot() StateSnapshot {
	return StateSnapshot{
		Phase:   cue.PhaseStopped,
		Monster: cue.MonsterLizard,
		Cameras: []CameraState{
			{Camera: 0, Enabled: true},
			{Camera: 1, Enabled: true},
		},
		Params: map[string]float64{keySmallTriggerSlope: 2},
	}
}

func broadcastTypes(bcs []StateBroadcast) map[string]int {
	out := make(map[string]int)
	for _, b := range bcs {
		ev, ok := convertBroadcast(b)
		if !ok {
			continue
		}
		out[ev.Type]++
	}
	return out
}

func TestReduce_ControlEventsMapToCommands(t *testing.T) {
	tests := []struct {
		name string
		ev   Event
		want Command
	}{
		{"flow", FlowObserved{Camera: 1, Flow: 0.5}, CmdObserveFlow{Camera: 1, Flow: 0.5}},
		{"tracker", SetTrackerEnabled{Camera: 0, Enabled: false}, CmdSetTrackerEnabled{Camera: 0, Enabled: false}},
		{"phase", SetPhase{Phase: cue.PhaseAction}, CmdSetPhase{Phase: cue.PhaseAction}},
		{"monster", SetMonster{Monster: cue.MonsterRobot}, CmdSetMonster{Monster: cue.MonsterRobot}},
		{"intro", TriggerIntro{}, CmdTriggerIntro{}},
		{"manual", PlayManual{Cue: cue.ManualScream}, CmdPlayManual{Cue: cue.ManualScream}},
		{"param", SetParam{Key: "k", Value: 3}, CmdSetParam{Key: "k", Value: 3}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := Reduce(&DaemonState{}, TimedEvent{Event: tt.ev, At: time.Now()})
			if len(rr.Commands) != 1 {
				t.Fatalf("got %d commands, want 1", len(rr.Commands))
			}
			if rr.Commands[0] != tt.want {
				t.Fatalf("command = %v, want %v", rr.Commands[0], tt.want)
			}
			if len(rr.Broadcasts) != 0 {
				t.Fatalf("control events must not broadcast directly, got %d", len(rr.Broadcasts))
			}
		})
	}
}

func TestReduce_TickAndSnapshotRequest(t *testing.T) {
	rr := Reduce(nil, Tick{Now: time.Now()})
	if rr.State == nil {
		t.Fatalf("Reduce(nil) must allocate state")
	}
	if len(rr.Commands) != 1 || rr.Commands[0] != (CmdTick{}) {
		t.Fatalf("Tick commands = %v", rr.Commands)
	}

	reply := make(chan StateSnapshot, 1)
	rr = Reduce(rr.State, RequestStateSnapshot{Reply: reply})
	cmd, ok := rr.Commands[0].(CmdPublishStateSnapshot)
	if !ok || cmd.Reply != reply {
		t.Fatalf("snapshot request command = %v", rr.Commands)
	}
}

func TestReduce_FirstObservationBroadcastsEverything(t *testing.T) {
	s := &DaemonState{}
	rr := Reduce(s, StateObserved{Snapshot: baseSnapshot(), At: time.Now()})

	if !rr.State.Known {
		t.Fatalf("state should be known after first observation")
	}
	got := broadcastTypes(rr.Broadcasts)
	want := map[string]int{
		wsTypePhaseChanged:   1,
		wsTypeMonsterChanged: 1,
		wsTypeIntroChanged:   1,
		wsTypeScoreChanged:   1,
		wsTypeChaosChanged:   1,
		wsTypeCameraChanged:  2,
		wsTypeParamsChanged:  1,
	}
	for k, n := range want {
		if got[k] != n {
			t.Fatalf("%s broadcasts = %d, want %d (all: %v)", k, got[k], n, got)
		}
	}
}

func TestReduce_OnlyChangesAreBroadcast(t *testing.T) {
	s := &DaemonState{}
	Reduce(s, StateObserved{Snapshot: baseSnapshot(), At: time.Now()})

	// Identical snapshot: nothing to say.
	rr := Reduce(s, StateObserved{Snapshot: baseSnapshot(), At: time.Now()})
	if len(rr.Broadcasts) != 0 {
		t.Fatalf("unchanged snapshot broadcast %v", broadcastTypes(rr.Broadcasts))
	}

	next := baseSnapshot()
	next.Phase = cue.PhaseAction
	next.Score = 12
	next.Cameras[1].Tier = flow.SeverityLarge
	next.Cameras[0].Rise = 1.7 // moves every frame; not broadcast on its own

	rr = Reduce(s, StateObserved{Snapshot: next, At: time.Now()})
	got := broadcastTypes(rr.Broadcasts)
	if len(got) != 3 || got[wsTypePhaseChanged] != 1 || got[wsTypeScoreChanged] != 1 || got[wsTypeCameraChanged] != 1 {
		t.Fatalf("broadcasts = %v, want phase, score and one camera", got)
	}
	for _, b := range rr.Broadcasts {
		if cam, ok := b.(BroadcastCameraChanged); ok && cam.Camera.Camera != 1 {
			t.Fatalf("camera broadcast for %d, want 1", cam.Camera.Camera)
		}
	}
	if s.Observed.Score != 12 {
		t.Fatalf("observed score = %d, want 12", s.Observed.Score)
	}
}

func TestReduce_ParamsChangeIsCopied(t *testing.T) {
	s := &DaemonState{}
	Reduce(s, StateObserved{Snapshot: baseSnapshot(), At: time.Now()})

	next := baseSnapshot()
	next.Params = map[string]float64{keySmallTriggerSlope: 2.5}
	rr := Reduce(s, StateObserved{Snapshot: next, At: time.Now()})
	if len(rr.Broadcasts) != 1 {
		t.Fatalf("broadcasts = %v, want params only", broadcastTypes(rr.Broadcasts))
	}
	pc := rr.Broadcasts[0].(BroadcastParamsChanged)
	next.Params[keySmallTriggerSlope] = 9
	if pc.Params[keySmallTriggerSlope] != 2.5 {
		t.Fatalf("broadcast params alias the snapshot map")
	}
}

func TestReduce_CommandFailedRecorded(t *testing.T) {
	s := &DaemonState{}
	err := errors.New("boom")
	rr := Reduce(s, CommandFailed{Command: CmdSetParam{Key: "x"}, Err: err, At: time.Now()})
	if rr.State.LastFailure == nil || !errors.Is(rr.State.LastFailure.Err, err) {
		t.Fatalf("LastFailure = %+v", rr.State.LastFailure)
	}
	if len(rr.Commands) != 0 || len(rr.Broadcasts) != 0 {
		t.Fatalf("failure should not produce output")
	}
}
