package main

import (
	"log/slog"
	"time"

	"rampage/internal/cue"
)

// Backend is what the effects stage drives. Installation implements it; tests
// use a fake.
type Backend interface {
	ObserveFlow(camera int, flow float64) error
	SetTrackerEnabled(camera int, enabled bool) error
	SetPhase(p cue.Phase)
	SetMonster(m cue.Monster)
	TriggerIntro() bool
	TriggerManual(m cue.ManualCue) bool
	SetParam(key string, value float64) error
	Tick()
	Snapshot() StateSnapshot
}

// runEffect executes a single reducer-emitted Command against the backend and
// emits observation Events via onEvent.
//
// It must never call Reduce() directly; the daemon loop sequences
// Reduce -> Commands -> runEffect -> Events -> Reduce.
func runEffect(
	backend Backend,
	cmd Command,
	logger *slog.Logger,
	onEvent func(Event),
) {
	if onEvent == nil {
		return
	}

	now := time.Now()

	if backend == nil {
		onEvent(CommandFailed{Command: cmd, Err: errNoBackend{}, At: now})
		return
	}

	fail := func(err error) {
		logger.Warn("command failed", "command", cmd.String(), "error", err)
		onEvent(CommandFailed{Command: cmd, Err: err, At: now})
	}
	observe := func() {
		onEvent(StateObserved{Snapshot: backend.Snapshot(), At: now})
	}

	switch c := cmd.(type) {
	case CmdTick:
		backend.Tick()
		observe()

	case CmdObserveFlow:
		// Tier changes surface on the next tick's observation.
		if err := backend.ObserveFlow(c.Camera, c.Flow); err != nil {
			fail(err)
		}

	case CmdSetTrackerEnabled:
		if err := backend.SetTrackerEnabled(c.Camera, c.Enabled); err != nil {
			fail(err)
			return
		}
		observe()

	case CmdSetPhase:
		backend.SetPhase(c.Phase)
		observe()

	case CmdSetMonster:
		backend.SetMonster(c.Monster)
		observe()

	case CmdTriggerIntro:
		if !backend.TriggerIntro() {
			logger.Info("monster intro not played")
		}
		observe()

	case CmdPlayManual:
		if !backend.TriggerManual(c.Cue) {
			logger.Info("manual cue not played", "cue", c.Cue)
		}
		observe()

	case CmdSetParam:
		if err := backend.SetParam(c.Key, c.Value); err != nil {
			fail(err)
			return
		}
		observe()

	case CmdRefresh:
		observe()

	case CmdPublishStateSnapshot:
		if c.Reply == nil {
			logger.Warn("state snapshot requested with nil reply channel")
			return
		}
		select {
		case c.Reply <- backend.Snapshot():
		default:
			logger.Warn("state snapshot reply channel not ready; dropping snapshot")
		}

	default:
		logger.Warn("unknown command type", "command", cmd.String())
		onEvent(CommandFailed{Command: cmd, Err: errUnknownCommand{cmd: cmd}, At: now})
	}
}

type errNoBackend struct{}

func (errNoBackend) Error() string { return "no backend" }

type errUnknownCommand struct {
	cmd Command
}

func (e errUnknownCommand) Error() string { return "unknown command: " + e.cmd.String() }
