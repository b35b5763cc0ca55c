package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// ============================================================================
// Central Daemon Loop
// ============================================================================
//
// Rules enforced here:
//   - The reducer performs no I/O and computes next state, commands and
//     broadcasts.
//   - The daemon loop is the only place that executes side effects against
//     the installation, so the cue controller sees one caller.
//   - Effects report back as Events that are reduced in order.
//   - Explicit event and command queues; nothing re-enters Reduce.
//
// ============================================================================

// runDaemon receives control events, emits Tick on a fixed cadence, reduces
// events into commands and executes them against backend. Broadcasts are
// forwarded without blocking; a full channel drops them.
//
// It returns nil when ctx is canceled or events is closed.
func runDaemon(
	ctx context.Context,
	events <-chan Event,
	backend Backend,
	tickInterval time.Duration,
	broadcasts chan<- StateBroadcast,
	logger *slog.Logger,
) error {
	if tickInterval <= 0 {
		tickInterval = time.Duration(defaultTickMS) * time.Millisecond
	}
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	state := &DaemonState{}

	var eventQueue []Event
	var cmdQueue []Command

	enqueueEvent := func(ev Event) {
		eventQueue = append(eventQueue, ev)
	}

	publish := func(bcs []StateBroadcast) {
		if broadcasts == nil {
			return
		}
		for _, b := range bcs {
			select {
			case broadcasts <- b:
			default:
				logger.Warn("broadcast queue full, dropping state change", "type", fmt.Sprintf("%T", b))
			}
		}
	}

	flushEvents := func() {
		for len(eventQueue) > 0 {
			ev := eventQueue[0]
			eventQueue = eventQueue[1:]

			rr := Reduce(state, ev)
			if rr.State != nil {
				state = rr.State
			}
			cmdQueue = append(cmdQueue, rr.Commands...)
			publish(rr.Broadcasts)
		}
	}

	flushCommands := func() {
		for len(cmdQueue) > 0 {
			cmd := cmdQueue[0]
			cmdQueue = cmdQueue[1:]

			runEffect(backend, cmd, logger, enqueueEvent)

			// Reduce observations promptly so the next command sees a
			// coherent state.
			flushEvents()
		}
	}

	// Seed the reducer so the first broadcasts describe the full state.
	cmdQueue = append(cmdQueue, CmdRefresh{})
	flushCommands()

	for {
		select {
		case <-ctx.Done():
			logger.Info("daemon stopping (context canceled)")
			return nil

		case ev, ok := <-events:
			if !ok {
				logger.Info("daemon stopping (events channel closed)")
				return nil
			}
			switch ev.(type) {
			case RequestStateSnapshot:
				// Internal request; no timestamp needed.
				enqueueEvent(ev)
			default:
				enqueueEvent(TimedEvent{Event: ev, At: time.Now()})
			}
			flushEvents()
			flushCommands()

		case now := <-ticker.C:
			enqueueEvent(Tick{Now: now})
			flushEvents()
			flushCommands()
		}
	}
}
