// Package flow turns a per-frame motion scalar into discrete severity tiers.
//
// Each camera gets its own Tracker. The tracker keeps two exponentially
// updated averages of the flow signal, a short one that follows bursts and a
// long one that acts as the noise floor, and classifies the ratio between them.
package flow

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"

	"rampage/internal/stats"
)

const (
	DefaultShortWindow = 5
	DefaultLongWindow  = 100

	// historySize is the number of raw flow values kept for diagnostics.
	historySize = 30
)

// Reporter receives classifications. The cue controller implements it.
type Reporter interface {
	ReportSeverity(camera int, tier Severity)
}

// Thresholds are the rise ratios (short average over long average) a signal
// must strictly exceed to be classified as each tier.
type Thresholds struct {
	Small  float64 `json:"small"`
	Medium float64 `json:"medium"`
	Large  float64 `json:"large"`
}

// DefaultThresholds returns the stock trigger slopes.
func DefaultThresholds() Thresholds {
	return Thresholds{Small: 2, Medium: 3, Large: 4}
}

// Validate rejects non-positive ratios.
func (t Thresholds) Validate() error {
	if t.Small <= 0 || t.Medium <= 0 || t.Large <= 0 {
		return errors.New("flow thresholds must be > 0")
	}
	return nil
}

// Classify maps a rise ratio to a tier. Thresholds are checked from the
// largest down, and a tier is only chosen when rise strictly exceeds it.
func (t Thresholds) Classify(rise float64) Severity {
	switch {
	case rise > t.Large:
		return SeverityLarge
	case rise > t.Medium:
		return SeverityMedium
	case rise > t.Small:
		return SeveritySmall
	default:
		return SeverityNone
	}
}

// Config describes one tracker.
type Config struct {
	Camera      int
	ShortWindow int
	LongWindow  int
	Thresholds  Thresholds
}

// Snapshot is a point-in-time view of a tracker for status displays.
type Snapshot struct {
	Camera       int        `json:"camera"`
	Enabled      bool       `json:"enabled"`
	Samples      int64      `json:"samples"`
	WarmedUp     bool       `json:"warmed_up"`
	ShortAverage float64    `json:"short_average"`
	LongAverage  float64    `json:"long_average"`
	Rise         float64    `json:"rise"`
	PeakFlow     float64    `json:"peak_flow"`
	Last         Severity   `json:"last"`
	Thresholds   Thresholds `json:"thresholds"`
}

// Tracker is a per-camera adaptive anomaly detector. It is safe for
// concurrent use: frames and operator edits may arrive on different goroutines.
type Tracker struct {
	mu sync.Mutex

	camera      int
	shortWindow int
	longWindow  int
	thresholds  Thresholds

	enabled      bool
	samples      int64
	shortAverage float64
	longAverage  float64
	rise         float64
	last         Severity
	history      *stats.FloatWindow

	reporter Reporter
	logger   *slog.Logger
}

// NewTracker creates an enabled tracker. Zero window lengths and thresholds
// fall back to the defaults. reporter may be nil.
func NewTracker(cfg Config, reporter Reporter, logger *slog.Logger) (*Tracker, error) {
	if cfg.ShortWindow == 0 {
		cfg.ShortWindow = DefaultShortWindow
	}
	if cfg.LongWindow == 0 {
		cfg.LongWindow = DefaultLongWindow
	}
	if cfg.Thresholds == (Thresholds{}) {
		cfg.Thresholds = DefaultThresholds()
	}
	if cfg.ShortWindow < 1 || cfg.LongWindow < 1 {
		return nil, fmt.Errorf("camera %d: window lengths must be >= 1", cfg.Camera)
	}
	if cfg.ShortWindow >= cfg.LongWindow {
		return nil, fmt.Errorf("camera %d: short window (%d) must be smaller than long window (%d)", cfg.Camera, cfg.ShortWindow, cfg.LongWindow)
	}
	if err := cfg.Thresholds.Validate(); err != nil {
		return nil, fmt.Errorf("camera %d: %w", cfg.Camera, err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Tracker{
		camera:      cfg.Camera,
		shortWindow: cfg.ShortWindow,
		longWindow:  cfg.LongWindow,
		thresholds:  cfg.Thresholds,
		enabled:     true,
		history:     stats.NewFloat(historySize),
		reporter:    reporter,
		logger:      logger.With("camera", cfg.Camera),
	}, nil
}

// Camera returns the camera index this tracker reports for.
func (t *Tracker) Camera() int { return t.camera }

// Observe feeds one frame's flow value. It returns the classification and
// true once the long average has had LongWindow samples to settle; before
// that, or while disabled, it returns (SeverityNone, false) and reports nothing.
func (t *Tracker) Observe(flow float64) (Severity, bool) {
	if flow < 0 || math.IsNaN(flow) {
		flow = 0
	}

	t.mu.Lock()
	if !t.enabled {
		t.mu.Unlock()
		return SeverityNone, false
	}

	t.longAverage = movingAverage(t.longAverage, t.longWindow, flow)
	t.shortAverage = movingAverage(t.shortAverage, t.shortWindow, flow)
	t.samples++
	t.history.Add(flow)

	// No noise floor yet; early ratios are meaningless.
	if t.samples < int64(t.longWindow) {
		first := t.samples == 1
		t.mu.Unlock()
		if first {
			t.logger.Debug("training flow tracker", "samples_needed", t.longWindow)
		}
		return SeverityNone, false
	}

	rise := 0.0
	if t.longAverage != 0 {
		rise = t.shortAverage / t.longAverage
	}
	tier := t.thresholds.Classify(rise)
	t.rise = rise
	t.last = tier
	reporter := t.reporter
	t.mu.Unlock()

	if reporter != nil {
		reporter.ReportSeverity(t.camera, tier)
	}
	return tier, true
}

// SetEnabled turns tracking on or off. Disabling discards the learned
// averages so that re-enabling starts a fresh warm-up.
func (t *Tracker) SetEnabled(enabled bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.enabled == enabled {
		return
	}
	t.enabled = enabled
	if !enabled {
		t.samples = 0
		t.shortAverage = 0
		t.longAverage = 0
		t.rise = 0
		t.last = SeverityNone
	}
	t.logger.Info("flow tracking toggled", "enabled", enabled)
}

// Enabled reports whether the tracker is consuming frames.
func (t *Tracker) Enabled() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.enabled
}

// Thresholds returns the current trigger slopes.
func (t *Tracker) Thresholds() Thresholds {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.thresholds
}

// SetThresholds replaces the trigger slopes. It takes effect on the next frame.
func (t *Tracker) SetThresholds(th Thresholds) error {
	if err := th.Validate(); err != nil {
		return err
	}
	t.mu.Lock()
	t.thresholds = th
	t.mu.Unlock()
	return nil
}

// Snapshot returns the tracker's current state.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return Snapshot{
		Camera:       t.camera,
		Enabled:      t.enabled,
		Samples:      t.samples,
		WarmedUp:     t.samples >= int64(t.longWindow),
		ShortAverage: t.shortAverage,
		LongAverage:  t.longAverage,
		Rise:         t.rise,
		PeakFlow:     t.history.Max(),
		Last:         t.last,
		Thresholds:   t.thresholds,
	}
}

// movingAverage folds one sample into a decaying average. window sets the
// decay rate only; it is not a hard cutoff.
func movingAverage(previous float64, window int, sample float64) float64 {
	return (previous*float64(window) + sample) / float64(window+1)
}
