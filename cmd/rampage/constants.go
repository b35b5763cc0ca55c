package main

import "time"

const version = "0.3.0"

// Defaults shared by DefaultConfig and the flag help text.
const (
	defaultSoundsDir    = "~/rampage/sounds"
	defaultSettingsPath = "~/.config/rampage/settings.yaml"
	defaultSocketPath   = "/tmp/rampage.sock"
	defaultHTTPPort     = 3002
	defaultCameras      = 2
	defaultTickMS       = 50
	defaultAudioDriver  = audioDriverOto
	defaultMonster      = "lizard"

	// Events from IPC and websocket clients queue here before the daemon
	// loop picks them up. Cameras may post flow at frame rate.
	eventQueueSize = 256

	// Broadcasts waiting for the websocket broadcaster.
	broadcastQueueSize = 128
)

const (
	audioDriverOto    = "oto"
	audioDriverDryRun = "dryrun"
)

const (
	httpShutdownTimeout = 3 * time.Second
	snapshotWait        = time.Second
)
