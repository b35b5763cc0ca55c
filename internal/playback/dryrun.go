package playback

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"rampage/internal/cue"
)

// DefaultDryRunLength is how long a simulated one-shot lasts.
const DefaultDryRunLength = 2 * time.Second

// DryRunEngine satisfies cue.Engine without an audio device. One-shots end
// after a fixed length; loops run until stopped.
type DryRunEngine struct {
	length time.Duration
	logger *slog.Logger

	mu     sync.Mutex
	voices map[cue.Handle]*dryVoice
	plays  int
	closed bool
}

type dryVoice struct {
	sample cue.Sample
	timer  *time.Timer
	done   func(cue.Handle)
}

// NewDryRunEngine returns an engine whose one-shots last length
// (DefaultDryRunLength when zero).
func NewDryRunEngine(length time.Duration, logger *slog.Logger) *DryRunEngine {
	if length <= 0 {
		length = DefaultDryRunLength
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &DryRunEngine{
		length: length,
		logger: logger,
		voices: make(map[cue.Handle]*dryVoice),
	}
}

// Play implements cue.Engine.
func (e *DryRunEngine) Play(s cue.Sample, gain float64, loop bool, done func(cue.Handle)) (cue.Handle, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return cue.Handle{}, ErrClosed
	}

	h := uuid.New()
	v := &dryVoice{sample: s, done: done}
	if !loop {
		v.timer = time.AfterFunc(e.length, func() { e.finish(h) })
	}
	e.voices[h] = v
	e.plays++

	e.logger.Info("dry-run play", "sample", s.Path, "gain", gain, "loop", loop, "handle", h)
	return h, nil
}

// Stop implements cue.Engine.
func (e *DryRunEngine) Stop(h cue.Handle) {
	e.mu.Lock()
	v, ok := e.voices[h]
	e.mu.Unlock()
	if !ok {
		return
	}
	if v.timer != nil {
		v.timer.Stop()
	}
	go e.finish(h)
}

// finish removes the voice and reports it. Whichever of the timer and Stop
// gets here first wins; the other finds nothing.
func (e *DryRunEngine) finish(h cue.Handle) {
	e.mu.Lock()
	v, ok := e.voices[h]
	if ok {
		delete(e.voices, h)
	}
	e.mu.Unlock()
	if ok && v.done != nil {
		v.done(h)
	}
}

// Active reports how many simulated voices are running.
func (e *DryRunEngine) Active() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.voices)
}

// Plays reports how many playbacks were started.
func (e *DryRunEngine) Plays() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.plays
}

// Close stops every voice.
func (e *DryRunEngine) Close() error {
	e.mu.Lock()
	e.closed = true
	handles := make([]cue.Handle, 0, len(e.voices))
	for h := range e.voices {
		handles = append(handles, h)
	}
	e.mu.Unlock()

	for _, h := range handles {
		e.Stop(h)
	}
	return nil
}
