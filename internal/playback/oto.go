// Package playback implements cue.Engine on top of real and simulated audio
// outputs.
package playback

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hajimehoshi/oto/v2"

	"rampage/internal/cue"
)

const (
	DefaultSampleRate = 44100

	readyTimeout = 5 * time.Second
	pollInterval = 10 * time.Millisecond
)

var ErrClosed = errors.New("audio engine closed")

// voice is one running player.
type voice struct {
	player oto.Player
	stop   chan struct{}
	once   sync.Once
}

func (v *voice) halt() {
	v.once.Do(func() { close(v.stop) })
}

// OtoEngine plays samples through the system audio device.
type OtoEngine struct {
	ctx        *oto.Context
	sampleRate int
	logger     *slog.Logger

	mu     sync.Mutex
	cache  map[string][]byte
	voices map[cue.Handle]*voice
	closed bool
}

// NewOtoEngine opens the audio device and waits for it to become ready.
func NewOtoEngine(sampleRate int, logger *slog.Logger) (*OtoEngine, error) {
	if sampleRate <= 0 {
		sampleRate = DefaultSampleRate
	}
	if logger == nil {
		logger = slog.Default()
	}

	ctx, ready, err := oto.NewContext(sampleRate, channelCount, oto.FormatSignedInt16LE)
	if err != nil {
		return nil, fmt.Errorf("open audio device: %w", err)
	}
	select {
	case <-ready:
	case <-time.After(readyTimeout):
		return nil, errors.New("audio device did not become ready")
	}

	logger.Info("audio output ready", "sample_rate", sampleRate, "channels", channelCount)
	return &OtoEngine{
		ctx:        ctx,
		sampleRate: sampleRate,
		logger:     logger,
		cache:      make(map[string][]byte),
		voices:     make(map[cue.Handle]*voice),
	}, nil
}

// Preload decodes every sample up front so format problems surface at
// startup instead of mid-show.
func (e *OtoEngine) Preload(samples []cue.Sample) error {
	for _, s := range samples {
		if _, err := e.pcm(s.Path); err != nil {
			return err
		}
	}
	e.logger.Info("samples decoded", "count", len(samples))
	return nil
}

func (e *OtoEngine) pcm(path string) ([]byte, error) {
	e.mu.Lock()
	data, ok := e.cache[path]
	e.mu.Unlock()
	if ok {
		return data, nil
	}

	data, err := decodeFile(path, e.sampleRate)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	e.cache[path] = data
	e.mu.Unlock()
	return data, nil
}

// Play implements cue.Engine.
func (e *OtoEngine) Play(s cue.Sample, gain float64, loop bool, done func(cue.Handle)) (cue.Handle, error) {
	data, err := e.pcm(s.Path)
	if err != nil {
		return cue.Handle{}, err
	}

	var r io.Reader = bytes.NewReader(data)
	if loop {
		r = &loopReader{data: data}
	}

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return cue.Handle{}, ErrClosed
	}
	h := uuid.New()
	v := &voice{player: e.ctx.NewPlayer(r), stop: make(chan struct{})}
	e.voices[h] = v
	e.mu.Unlock()

	v.player.SetVolume(clampGain(gain))
	v.player.Play()

	go e.watch(h, v, done)
	return h, nil
}

// watch waits for the player to drain or be stopped, then releases it and
// reports completion.
func (e *OtoEngine) watch(h cue.Handle, v *voice, done func(cue.Handle)) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

wait:
	for {
		select {
		case <-v.stop:
			break wait
		case <-ticker.C:
			if !v.player.IsPlaying() {
				break wait
			}
		}
	}

	if err := v.player.Err(); err != nil {
		e.logger.Warn("player error", "handle", h, "error", err)
	}
	if err := v.player.Close(); err != nil {
		e.logger.Debug("player close failed", "handle", h, "error", err)
	}

	e.mu.Lock()
	delete(e.voices, h)
	e.mu.Unlock()

	if done != nil {
		done(h)
	}
}

// Stop implements cue.Engine. Unknown or finished handles are ignored.
func (e *OtoEngine) Stop(h cue.Handle) {
	e.mu.Lock()
	v, ok := e.voices[h]
	e.mu.Unlock()
	if ok {
		v.halt()
	}
}

// Close stops every voice and refuses further playback.
func (e *OtoEngine) Close() error {
	e.mu.Lock()
	e.closed = true
	voices := make([]*voice, 0, len(e.voices))
	for _, v := range e.voices {
		voices = append(voices, v)
	}
	e.mu.Unlock()

	for _, v := range voices {
		v.halt()
	}
	return nil
}

func clampGain(g float64) float64 {
	if g < 0 {
		return 0
	}
	if g > 1 {
		return 1
	}
	return g
}
