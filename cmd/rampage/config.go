package main

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"rampage/internal/cue"
	"rampage/internal/flow"
)

// Config is the top-level YAML configuration for the rampage daemon.
//
// Live-tunable values (damage points, chaos thresholds, trigger slopes) are
// not here: they live in the settings file so operator edits survive
// restarts. This file holds what needs a restart to change.
type Config struct {
	Sounds     SoundsConfig     `yaml:"sounds"`
	Cameras    CamerasConfig    `yaml:"cameras"`
	Tracker    TrackerConfig    `yaml:"tracker"`
	Controller ControllerConfig `yaml:"controller"`
	Audio      AudioConfig      `yaml:"audio"`
	IPC        IPCConfig        `yaml:"ipc"`
	HTTP       HTTPConfig       `yaml:"http"`
	Settings   SettingsConfig   `yaml:"settings"`
	Logging    LoggingConfig    `yaml:"logging"`
}

type SoundsConfig struct {
	// Dir holds one sub-directory per cue category.
	Dir string `yaml:"dir"`
}

type CamerasConfig struct {
	Count int `yaml:"count"`
}

// TrackerConfig sets the averaging windows. Window lengths are fixed for a
// run; trigger slopes are live params.
type TrackerConfig struct {
	ShortWindow int `yaml:"short_window"`
	LongWindow  int `yaml:"long_window"`
}

type ControllerConfig struct {
	TickMS               int    `yaml:"tick_ms"`
	HeavyChaosCooldownMS int    `yaml:"heavy_chaos_cooldown_ms"`
	MildChaosCooldownMS  int    `yaml:"mild_chaos_cooldown_ms"`
	Monster              string `yaml:"monster"`
}

type AudioConfig struct {
	Driver         string `yaml:"driver"` // "oto" or "dryrun"
	SampleRate     int    `yaml:"sample_rate"`
	DryRunLengthMS int    `yaml:"dryrun_length_ms,omitempty"`
}

type IPCConfig struct {
	SocketPath string `yaml:"socket_path"`
}

type HTTPConfig struct {
	Port int `yaml:"port"`
}

type SettingsConfig struct {
	Path string `yaml:"path"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
}

// DefaultConfig returns a fully-populated Config with defaults.
func DefaultConfig() Config {
	return Config{
		Sounds:  SoundsConfig{Dir: defaultSoundsDir},
		Cameras: CamerasConfig{Count: defaultCameras},
		Tracker: TrackerConfig{
			ShortWindow: flow.DefaultShortWindow,
			LongWindow:  flow.DefaultLongWindow,
		},
		Controller: ControllerConfig{
			TickMS:               defaultTickMS,
			HeavyChaosCooldownMS: int(cue.DefaultHeavyChaosCooldown / time.Millisecond),
			MildChaosCooldownMS:  int(cue.DefaultMildChaosCooldown / time.Millisecond),
			Monster:              defaultMonster,
		},
		Audio: AudioConfig{
			Driver:     defaultAudioDriver,
			SampleRate: 44100,
		},
		IPC:      IPCConfig{SocketPath: defaultSocketPath},
		HTTP:     HTTPConfig{Port: defaultHTTPPort},
		Settings: SettingsConfig{Path: defaultSettingsPath},
		Logging:  LoggingConfig{Level: "info"},
	}
}

// LoadConfigFile reads a YAML config file on top of DefaultConfig. Unknown
// fields are rejected so typos do not silently fall back to defaults.
func LoadConfigFile(path string) (Config, error) {
	if path == "" {
		return Config{}, errors.New("config path is empty")
	}
	b, err := os.ReadFile(ExpandPath(path))
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}
	return parseConfig(b)
}

func parseConfig(b []byte) (Config, error) {
	cfg := DefaultConfig()

	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)

	if err := dec.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config yaml: %w", err)
	}

	// Only whitespace and comments may follow the document.
	if err := dec.Decode(&struct{}{}); err == nil {
		return Config{}, fmt.Errorf("decode config yaml: unexpected trailing document")
	}

	return cfg, nil
}

// FlagOverrides carries command-line values that win over the file. A nil
// pointer means the flag was not given.
type FlagOverrides struct {
	SoundsDir    *string
	Cameras      *int
	TickMS       *int
	Monster      *string
	AudioDriver  *string
	SampleRate   *int
	SocketPath   *string
	HTTPPort     *int
	SettingsPath *string
	LogLevel     *string
}

// Apply merges the overrides into cfg.
func (o FlagOverrides) Apply(cfg *Config) {
	if cfg == nil {
		return
	}
	if o.SoundsDir != nil {
		cfg.Sounds.Dir = *o.SoundsDir
	}
	if o.Cameras != nil {
		cfg.Cameras.Count = *o.Cameras
	}
	if o.TickMS != nil {
		cfg.Controller.TickMS = *o.TickMS
	}
	if o.Monster != nil {
		cfg.Controller.Monster = *o.Monster
	}
	if o.AudioDriver != nil {
		cfg.Audio.Driver = *o.AudioDriver
	}
	if o.SampleRate != nil {
		cfg.Audio.SampleRate = *o.SampleRate
	}
	if o.SocketPath != nil {
		cfg.IPC.SocketPath = *o.SocketPath
	}
	if o.HTTPPort != nil {
		cfg.HTTP.Port = *o.HTTPPort
	}
	if o.SettingsPath != nil {
		cfg.Settings.Path = *o.SettingsPath
	}
	if o.LogLevel != nil {
		cfg.Logging.Level = *o.LogLevel
	}
}

// Validate checks config invariants after defaults, file and overrides have
// been applied.
func (c *Config) Validate() error {
	if c.Sounds.Dir == "" {
		return errors.New("sounds.dir must not be empty")
	}
	if c.Cameras.Count < 1 || c.Cameras.Count > 16 {
		return errors.New("cameras.count must be between 1 and 16")
	}

	if c.Tracker.ShortWindow < 1 {
		return errors.New("tracker.short_window must be >= 1")
	}
	if c.Tracker.LongWindow <= c.Tracker.ShortWindow {
		return errors.New("tracker.long_window must be greater than tracker.short_window")
	}

	if c.Controller.TickMS < 10 || c.Controller.TickMS > 1000 {
		return errors.New("controller.tick_ms must be between 10 and 1000")
	}
	if c.Controller.HeavyChaosCooldownMS <= 0 {
		return errors.New("controller.heavy_chaos_cooldown_ms must be > 0")
	}
	if c.Controller.MildChaosCooldownMS <= 0 {
		return errors.New("controller.mild_chaos_cooldown_ms must be > 0")
	}
	if _, err := cue.ParseMonster(c.Controller.Monster); err != nil {
		return fmt.Errorf("controller.monster: %w", err)
	}

	switch c.Audio.Driver {
	case audioDriverOto, audioDriverDryRun:
	default:
		return fmt.Errorf("audio.driver must be %q or %q", audioDriverOto, audioDriverDryRun)
	}
	if c.Audio.SampleRate < 8000 || c.Audio.SampleRate > 192000 {
		return errors.New("audio.sample_rate must be between 8000 and 192000")
	}
	if c.Audio.DryRunLengthMS < 0 {
		return errors.New("audio.dryrun_length_ms must be >= 0")
	}

	if c.IPC.SocketPath == "" {
		return errors.New("ipc.socket_path must not be empty")
	}
	if c.HTTP.Port < 0 || c.HTTP.Port > 65535 {
		return errors.New("http.port must be between 0 and 65535 (0 disables)")
	}
	if c.Settings.Path == "" {
		return errors.New("settings.path must not be empty")
	}

	if _, err := parseLogLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("logging.level: %w", err)
	}

	return nil
}

// TickInterval is the severity evaluation cadence.
func (c *Config) TickInterval() time.Duration {
	return time.Duration(c.Controller.TickMS) * time.Millisecond
}

// ToControllerConfig builds the cue controller configuration. Validate must
// have passed.
func (c *Config) ToControllerConfig() cue.Config {
	monster, _ := cue.ParseMonster(c.Controller.Monster)
	return cue.Config{
		Cameras:            c.Cameras.Count,
		Points:             cue.DefaultPoints(),
		HeavyChaosCooldown: time.Duration(c.Controller.HeavyChaosCooldownMS) * time.Millisecond,
		MildChaosCooldown:  time.Duration(c.Controller.MildChaosCooldownMS) * time.Millisecond,
		Monster:            monster,
	}
}

// ToTrackerConfig builds the flow tracker configuration for one camera.
func (c *Config) ToTrackerConfig(camera int) flow.Config {
	return flow.Config{
		Camera:      camera,
		ShortWindow: c.Tracker.ShortWindow,
		LongWindow:  c.Tracker.LongWindow,
		Thresholds:  flow.DefaultThresholds(),
	}
}

// ExpandPath expands a leading "~" in a path using $HOME.
func ExpandPath(p string) string {
	if p == "" {
		return p
	}
	if p[0] != '~' {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	if p == "~" {
		return home
	}
	if len(p) >= 2 && (p[1] == '/' || p[1] == '\\') {
		return filepath.Join(home, p[2:])
	}
	return p
}
