package playback

import (
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"rampage/internal/cue"
)

func waitUntil(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met within %v", timeout)
}

type completions struct {
	mu  sync.Mutex
	got []cue.Handle
}

func (c *completions) done(h cue.Handle) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.got = append(c.got, h)
}

func (c *completions) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.got)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestDryRun_OneShotFinishes(t *testing.T) {
	e := NewDryRunEngine(20*time.Millisecond, quietLogger())
	var c completions

	h, err := e.Play(cue.Sample{Path: "a.wav"}, 0.5, false, c.done)
	if err != nil {
		t.Fatalf("Play: %v", err)
	}
	waitUntil(t, time.Second, func() bool { return c.count() == 1 })
	if c.got[0] != h {
		t.Fatalf("completion for wrong handle")
	}
	if e.Active() != 0 {
		t.Fatalf("finished voice still active")
	}
}

func TestDryRun_LoopRunsUntilStopped(t *testing.T) {
	e := NewDryRunEngine(10*time.Millisecond, quietLogger())
	var c completions

	h, _ := e.Play(cue.Sample{Path: "city.wav"}, 0.3, true, c.done)
	time.Sleep(50 * time.Millisecond)
	if c.count() != 0 || e.Active() != 1 {
		t.Fatalf("loop ended on its own")
	}

	e.Stop(h)
	e.Stop(h)
	waitUntil(t, time.Second, func() bool { return c.count() == 1 })
	time.Sleep(20 * time.Millisecond)
	if c.count() != 1 {
		t.Fatalf("done called %d times", c.count())
	}
}

func TestDryRun_CloseRefusesPlay(t *testing.T) {
	e := NewDryRunEngine(time.Hour, quietLogger())
	var c completions
	e.Play(cue.Sample{Path: "a.wav"}, 1, false, c.done)

	if err := e.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	waitUntil(t, time.Second, func() bool { return c.count() == 1 })
	if _, err := e.Play(cue.Sample{Path: "b.wav"}, 1, false, c.done); err != ErrClosed {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}

// The controller holds its lock across Play and Stop; the engine must never
// call back synchronously or this deadlocks.
func TestDryRun_DrivesController(t *testing.T) {
	e := NewDryRunEngine(10*time.Millisecond, quietLogger())

	store := make(cue.SampleStore)
	for _, cat := range cue.Categories() {
		store[cat] = []cue.Sample{{Category: cat, Name: "a.wav", Path: cat.String() + "/a.wav"}}
	}
	c, err := cue.NewController(e, store, cue.Config{Cameras: 1, Monster: cue.MonsterRobot}, quietLogger())
	if err != nil {
		t.Fatalf("NewController: %v", err)
	}

	c.SetPhase(cue.PhaseAction)
	c.TriggerMonsterIntro()
	if c.Snapshot().Active != 2 {
		t.Fatalf("expected ambience and intro active, got %d", c.Snapshot().Active)
	}
	waitUntil(t, time.Second, func() bool { return c.Snapshot().Active == 1 })

	c.SetPhase(cue.PhaseStopped)
	waitUntil(t, time.Second, func() bool { return e.Active() == 0 })
	if c.Snapshot().Active != 0 {
		t.Fatalf("registry not empty after stop")
	}
}
