package cue

import "github.com/google/uuid"

// Handle identifies one playback started through an Engine.
type Handle = uuid.UUID

// Engine is the audio output the controller drives.
//
// Play starts sample at the given gain and returns a handle. When the sound
// stops for any reason (it ended, Stop was called, or the engine shut down)
// the engine calls done exactly once with that handle. done must be called
// from another goroutine, never from inside Play or Stop: the controller holds
// its lock across both calls and done takes the same lock.
type Engine interface {
	Play(sample Sample, gain float64, loop bool, done func(Handle)) (Handle, error)
	Stop(h Handle)
}
