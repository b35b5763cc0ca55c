package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"rampage/internal/cue"
)

func TestDefaultConfig_Valid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.TickInterval() != 50*time.Millisecond {
		t.Fatalf("tick = %v, want 50ms", cfg.TickInterval())
	}

	cc := cfg.ToControllerConfig()
	if cc.Monster != cue.MonsterLizard {
		t.Fatalf("default monster = %v, want lizard", cc.Monster)
	}
	if cc.HeavyChaosCooldown != cue.DefaultHeavyChaosCooldown || cc.MildChaosCooldown != cue.DefaultMildChaosCooldown {
		t.Fatalf("cooldowns = %v/%v", cc.HeavyChaosCooldown, cc.MildChaosCooldown)
	}
	if cc.Cameras != defaultCameras {
		t.Fatalf("cameras = %d", cc.Cameras)
	}
}

func TestParseConfig_OverridesDefaults(t *testing.T) {
	cfg, err := parseConfig([]byte(`
sounds:
  dir: /srv/sounds
cameras:
  count: 4
controller:
  tick_ms: 100
  monster: robot
audio:
  driver: dryrun
  dryrun_length_ms: 500
http:
  port: 0
`))
	if err != nil {
		t.Fatalf("parseConfig: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	if cfg.Sounds.Dir != "/srv/sounds" || cfg.Cameras.Count != 4 || cfg.Controller.TickMS != 100 {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
	if cfg.Audio.Driver != audioDriverDryRun || cfg.Audio.DryRunLengthMS != 500 {
		t.Fatalf("audio = %+v", cfg.Audio)
	}
	if cfg.HTTP.Port != 0 {
		t.Fatalf("http port = %d, want 0", cfg.HTTP.Port)
	}
	// Untouched sections keep defaults.
	if cfg.IPC.SocketPath != defaultSocketPath || cfg.Tracker.LongWindow != 100 {
		t.Fatalf("defaults lost: ipc=%q long=%d", cfg.IPC.SocketPath, cfg.Tracker.LongWindow)
	}
	if cfg.ToTrackerConfig(3).Camera != 3 {
		t.Fatalf("tracker camera not set")
	}
}

func TestParseConfig_RejectsUnknownField(t *testing.T) {
	_, err := parseConfig([]byte("cameras:\n  cout: 3\n"))
	if err == nil {
		t.Fatalf("expected error for misspelled field")
	}
}

func TestParseConfig_RejectsTrailingDocument(t *testing.T) {
	_, err := parseConfig([]byte("cameras:\n  count: 3\n---\ncameras:\n  count: 4\n"))
	if err == nil || !strings.Contains(err.Error(), "trailing") {
		t.Fatalf("err = %v, want trailing document error", err)
	}
}

func TestLoadConfigFile(t *testing.T) {
	if _, err := LoadConfigFile(""); err == nil {
		t.Fatalf("empty path should fail")
	}
	if _, err := LoadConfigFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("missing file should fail")
	}

	path := filepath.Join(t.TempDir(), "rampage.yaml")
	if err := os.WriteFile(path, []byte("logging:\n  level: debug\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := LoadConfigFile(path)
	if err != nil {
		t.Fatalf("LoadConfigFile: %v", err)
	}
	if cfg.Logging.Level != "debug" {
		t.Fatalf("level = %q", cfg.Logging.Level)
	}
}

func TestFlagOverrides_Apply(t *testing.T) {
	cfg := DefaultConfig()
	cams := 3
	monster := "other"
	port := 0

	FlagOverrides{Cameras: &cams, Monster: &monster, HTTPPort: &port}.Apply(&cfg)

	if cfg.Cameras.Count != 3 || cfg.Controller.Monster != "other" || cfg.HTTP.Port != 0 {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
	if cfg.Sounds.Dir != defaultSoundsDir {
		t.Fatalf("nil override changed sounds dir")
	}

	FlagOverrides{}.Apply(nil)
}

func TestConfigValidate_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"no sounds", func(c *Config) { c.Sounds.Dir = "" }, "sounds.dir"},
		{"zero cameras", func(c *Config) { c.Cameras.Count = 0 }, "cameras.count"},
		{"windows", func(c *Config) { c.Tracker.LongWindow = c.Tracker.ShortWindow }, "long_window"},
		{"tick", func(c *Config) { c.Controller.TickMS = 5 }, "tick_ms"},
		{"monster", func(c *Config) { c.Controller.Monster = "kraken" }, "monster"},
		{"driver", func(c *Config) { c.Audio.Driver = "alsa" }, "audio.driver"},
		{"rate", func(c *Config) { c.Audio.SampleRate = 100 }, "sample_rate"},
		{"port", func(c *Config) { c.HTTP.Port = 70000 }, "http.port"},
		{"level", func(c *Config) { c.Logging.Level = "loud" }, "logging.level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("err = %v, want mention of %q", err, tt.want)
			}
		})
	}
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}
	if got := ExpandPath("~/x/y"); got != filepath.Join(home, "x/y") {
		t.Fatalf("ExpandPath = %q", got)
	}
	if got := ExpandPath("~"); got != home {
		t.Fatalf("ExpandPath(~) = %q", got)
	}
	if got := ExpandPath("/abs"); got != "/abs" {
		t.Fatalf("ExpandPath(/abs) = %q", got)
	}
	if got := ExpandPath("~other/x"); got != "~other/x" {
		t.Fatalf("ExpandPath(~other/x) = %q", got)
	}
}

func TestParseLogLevel(t *testing.T) {
	for in, want := range map[string]LogLevel{"": LogLevelInfo, "WARNING": LogLevelWarn, " debug ": LogLevelDebug} {
		got, err := parseLogLevel(in)
		if err != nil || got != want {
			t.Fatalf("parseLogLevel(%q) = %q, %v; want %q", in, got, err, want)
		}
	}
	if _, err := parseLogLevel("trace"); err == nil {
		t.Fatalf("trace should be rejected")
	}
}
