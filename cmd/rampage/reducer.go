package main

import (
	"fmt"
	"maps"
	"time"

	"rampage/internal/cue"
	"rampage/internal/flow"
)

// This file holds the daemon's reducer building blocks:
//
//   - Events: inputs (control events, ticks, observations of the installation)
//   - Commands: work the effects stage performs against the installation
//   - Broadcasts: state changes published to websocket clients
//   - Reduce(): computes next state, commands and broadcasts without I/O
//
// The cue controller and trackers own the real state. DaemonState only caches
// the last observed snapshot so the reducer can tell what changed.

// ==============================
// Events
// ==============================

// Event is the input to the reducer.
type Event interface {
	eventMarker()
}

// TimedEvent stamps a control event with its arrival time.
type TimedEvent struct {
	Event Event
	At    time.Time
}

func (TimedEvent) eventMarker() {}

// Tick is emitted by the daemon loop at the severity evaluation cadence.
type Tick struct {
	Now time.Time
}

func (Tick) eventMarker() {}

// RequestStateSnapshot asks for a full snapshot, e.g. for a websocket
// client's state_init. Internal only; it cannot arrive over IPC.
type RequestStateSnapshot struct {
	Reply chan StateSnapshot
}

func (RequestStateSnapshot) eventMarker() {}

// StateObserved carries a snapshot taken after a command ran.
type StateObserved struct {
	Snapshot StateSnapshot
	At       time.Time
}

func (StateObserved) eventMarker() {}

// CommandFailed reports a command the installation rejected.
type CommandFailed struct {
	Command Command
	Err     error
	At      time.Time
}

func (CommandFailed) eventMarker() {}

// ==============================
// Snapshot
// ==============================

// CameraState is the per-camera part of a snapshot.
type CameraState struct {
	Camera   int           `json:"camera"`
	Enabled  bool          `json:"enabled"`
	WarmedUp bool          `json:"warmed_up"`
	Tier     flow.Severity `json:"tier"`
	Rise     float64       `json:"rise"`
}

// StateSnapshot is a coherent view of the installation.
type StateSnapshot struct {
	Phase        cue.Phase          `json:"phase"`
	Monster      cue.Monster        `json:"monster"`
	Score        int                `json:"score"`
	RecentPoints int64              `json:"recent_points"`
	Chaos        cue.ChaosLevel     `json:"chaos"`
	IntroPlayed  bool               `json:"intro_played"`
	Active       int                `json:"active"`
	Cameras      []CameraState      `json:"cameras"`
	Params       map[string]float64 `json:"params"`
	Counters     cue.Counters       `json:"counters"`
}

// ==============================
// Commands
// ==============================

// Command is a side effect requested by the reducer.
type Command interface {
	commandMarker()
	String() string
}

type CmdTick struct{}

func (CmdTick) commandMarker()  {}
func (CmdTick) String() string { return "CmdTick()" }

type CmdObserveFlow struct {
	Camera int
	Flow   float64
}

func (CmdObserveFlow) commandMarker() {}
func (c CmdObserveFlow) String() string {
	return fmt.Sprintf("CmdObserveFlow(camera=%d, flow=%.3f)", c.Camera, c.Flow)
}

type CmdSetTrackerEnabled struct {
	Camera  int
	Enabled bool
}

func (CmdSetTrackerEnabled) commandMarker() {}
func (c CmdSetTrackerEnabled) String() string {
	return fmt.Sprintf("CmdSetTrackerEnabled(camera=%d, enabled=%v)", c.Camera, c.Enabled)
}

type CmdSetPhase struct{ Phase cue.Phase }

func (CmdSetPhase) commandMarker()    {}
func (c CmdSetPhase) String() string { return fmt.Sprintf("CmdSetPhase(%s)", c.Phase) }

type CmdSetMonster struct{ Monster cue.Monster }

func (CmdSetMonster) commandMarker()    {}
func (c CmdSetMonster) String() string { return fmt.Sprintf("CmdSetMonster(%s)", c.Monster) }

type CmdTriggerIntro struct{}

func (CmdTriggerIntro) commandMarker()  {}
func (CmdTriggerIntro) String() string { return "CmdTriggerIntro()" }

type CmdPlayManual struct{ Cue cue.ManualCue }

func (CmdPlayManual) commandMarker()    {}
func (c CmdPlayManual) String() string { return fmt.Sprintf("CmdPlayManual(%s)", c.Cue) }

type CmdSetParam struct {
	Key   string
	Value float64
}

func (CmdSetParam) commandMarker() {}
func (c CmdSetParam) String() string {
	return fmt.Sprintf("CmdSetParam(%s=%v)", c.Key, c.Value)
}

// CmdRefresh takes a snapshot without changing anything.
type CmdRefresh struct{}

func (CmdRefresh) commandMarker()  {}
func (CmdRefresh) String() string { return "CmdRefresh()" }

// CmdPublishStateSnapshot delivers a fresh snapshot to a requester.
type CmdPublishStateSnapshot struct {
	Reply chan StateSnapshot
}

func (CmdPublishStateSnapshot) commandMarker()  {}
func (CmdPublishStateSnapshot) String() string { return "CmdPublishStateSnapshot()" }

// ==============================
// Broadcasts
// ==============================

// StateBroadcast is a state change for websocket clients.
type StateBroadcast interface {
	broadcastMarker()
}

type BroadcastPhaseChanged struct {
	Phase cue.Phase
	At    time.Time
}

type BroadcastMonsterChanged struct {
	Monster cue.Monster
	At      time.Time
}

type BroadcastIntroChanged struct {
	IntroPlayed bool
	At          time.Time
}

type BroadcastScoreChanged struct {
	Score        int
	RecentPoints int64
	At           time.Time
}

type BroadcastChaosChanged struct {
	Chaos cue.ChaosLevel
	At    time.Time
}

type BroadcastCameraChanged struct {
	Camera CameraState
	At     time.Time
}

type BroadcastParamsChanged struct {
	Params map[string]float64
	At     time.Time
}

func (BroadcastPhaseChanged) broadcastMarker()   {}
func (BroadcastMonsterChanged) broadcastMarker() {}
func (BroadcastIntroChanged) broadcastMarker()   {}
func (BroadcastScoreChanged) broadcastMarker()   {}
func (BroadcastChaosChanged) broadcastMarker()   {}
func (BroadcastCameraChanged) broadcastMarker()  {}
func (BroadcastParamsChanged) broadcastMarker()  {}

// ==============================
// Reducer
// ==============================

// DaemonState is the daemon-owned reducer state.
type DaemonState struct {
	// Observed is the last snapshot seen; Known is false until the first one.
	Observed StateSnapshot
	Known    bool

	ObservedAt time.Time

	// LastFailure is kept for diagnostics.
	LastFailure *CommandFailed
}

// ReduceResult is the output of Reduce.
type ReduceResult struct {
	State      *DaemonState
	Commands   []Command
	Broadcasts []StateBroadcast
}

// Reduce must not perform I/O or block. It never mutates anything but s.
func Reduce(s *DaemonState, e Event) ReduceResult {
	if s == nil {
		s = &DaemonState{}
	}

	var (
		cmds []Command
		bcs  []StateBroadcast
	)

	switch ev := e.(type) {
	case TimedEvent:
		if c := commandFor(ev.Event); c != nil {
			cmds = append(cmds, c)
		}

	case Tick:
		cmds = append(cmds, CmdTick{})

	case RequestStateSnapshot:
		cmds = append(cmds, CmdPublishStateSnapshot{Reply: ev.Reply})

	case StateObserved:
		bcs = diffSnapshots(s.Observed, s.Known, ev.Snapshot, ev.At)
		s.Observed = ev.Snapshot
		s.Known = true
		s.ObservedAt = ev.At

	case CommandFailed:
		failed := ev
		s.LastFailure = &failed

	default:
		// Unknown event type: no-op.
	}

	return ReduceResult{State: s, Commands: cmds, Broadcasts: bcs}
}

// commandFor maps a control event to its command.
func commandFor(e Event) Command {
	switch ev := e.(type) {
	case FlowObserved:
		return CmdObserveFlow{Camera: ev.Camera, Flow: ev.Flow}
	case SetTrackerEnabled:
		return CmdSetTrackerEnabled{Camera: ev.Camera, Enabled: ev.Enabled}
	case SetPhase:
		return CmdSetPhase{Phase: ev.Phase}
	case SetMonster:
		return CmdSetMonster{Monster: ev.Monster}
	case TriggerIntro:
		return CmdTriggerIntro{}
	case PlayManual:
		return CmdPlayManual{Cue: ev.Cue}
	case SetParam:
		return CmdSetParam{Key: ev.Key, Value: ev.Value}
	case RequestStateSnapshot:
		return CmdPublishStateSnapshot{Reply: ev.Reply}
	default:
		return nil
	}
}

// diffSnapshots emits one broadcast per changed aspect. The first snapshot
// (known == false) broadcasts everything.
func diffSnapshots(prev StateSnapshot, known bool, next StateSnapshot, at time.Time) []StateBroadcast {
	var out []StateBroadcast

	if !known || prev.Phase != next.Phase {
		out = append(out, BroadcastPhaseChanged{Phase: next.Phase, At: at})
	}
	if !known || prev.Monster != next.Monster {
		out = append(out, BroadcastMonsterChanged{Monster: next.Monster, At: at})
	}
	if !known || prev.IntroPlayed != next.IntroPlayed {
		out = append(out, BroadcastIntroChanged{IntroPlayed: next.IntroPlayed, At: at})
	}
	if !known || prev.Score != next.Score || prev.RecentPoints != next.RecentPoints {
		out = append(out, BroadcastScoreChanged{Score: next.Score, RecentPoints: next.RecentPoints, At: at})
	}
	if !known || prev.Chaos != next.Chaos {
		out = append(out, BroadcastChaosChanged{Chaos: next.Chaos, At: at})
	}

	for i, cam := range next.Cameras {
		if known && i < len(prev.Cameras) && sameCamera(prev.Cameras[i], cam) {
			continue
		}
		out = append(out, BroadcastCameraChanged{Camera: cam, At: at})
	}

	if !known || !maps.Equal(prev.Params, next.Params) {
		out = append(out, BroadcastParamsChanged{Params: maps.Clone(next.Params), At: at})
	}

	return out
}

// sameCamera ignores Rise, which moves on every frame.
func sameCamera(a, b CameraState) bool {
	return a.Enabled == b.Enabled && a.WarmedUp == b.WarmedUp && a.Tier == b.Tier
}
