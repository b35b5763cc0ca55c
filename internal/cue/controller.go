// Package cue decides which audio cues an installation plays, when, and how
// loud, from per-camera severity reports and operator controls.
//
// All controller state (phase, score, active playbacks) sits behind one
// mutex. Timers, the control surface and engine completion callbacks all go
// through the exported methods, so no operation is ever partially applied.
package cue

import (
	"errors"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"rampage/internal/flow"
	"rampage/internal/stats"
)

const (
	DefaultHeavyChaosCooldown = 20 * time.Second
	DefaultMildChaosCooldown  = 60 * time.Second

	// pointsWindow is the number of ticks summed for Snapshot.RecentPoints.
	pointsWindow = 20
)

// Config configures a Controller. Zero values take the defaults.
type Config struct {
	// Cameras is the number of severity sources.
	Cameras int

	Points             Points
	HeavyChaosCooldown time.Duration
	MildChaosCooldown  time.Duration
	Monster            Monster

	// Now and Rand are injectable for tests.
	Now  func() time.Time
	Rand *rand.Rand
}

// activePlayback is one registry entry.
type activePlayback struct {
	category Category
	sample   Sample
	loop     bool
	started  time.Time
}

// Counters are lifetime diagnostics.
type Counters struct {
	Plays   uint64 `json:"plays"`
	Skipped uint64 `json:"skipped"`
	Failed  uint64 `json:"failed"`
}

// Snapshot is a consistent copy of the controller state.
type Snapshot struct {
	Phase        Phase           `json:"phase"`
	Monster      Monster         `json:"monster"`
	Score        int             `json:"score"`
	Chaos        ChaosLevel      `json:"chaos"`
	IntroPlayed  bool            `json:"intro_played"`
	Cameras      []flow.Severity `json:"cameras"`
	Active       int             `json:"active"`
	Points       Points          `json:"points"`
	RecentPoints int64           `json:"recent_points"`
	Counters     Counters        `json:"counters"`
}

// Controller is the audio cue state machine.
type Controller struct {
	mu sync.Mutex

	engine  Engine
	samples SampleStore
	logger  *slog.Logger
	now     func() time.Time
	rand    *rand.Rand

	phase       Phase
	monster     Monster
	score       int
	introPlayed bool
	lastChaosAt time.Time

	points        Points
	heavyCooldown time.Duration
	mildCooldown  time.Duration

	tiers        []flow.Severity
	active       map[Handle]activePlayback
	recentPoints *stats.IntWindow
	counters     Counters
}

// NewController validates the sample library and returns a controller in
// the stopped phase. A category without samples is a *ConfigError.
func NewController(engine Engine, samples SampleStore, cfg Config, logger *slog.Logger) (*Controller, error) {
	if engine == nil {
		return nil, errors.New("cue: nil engine")
	}
	if err := samples.Validate(); err != nil {
		return nil, err
	}
	if cfg.Cameras < 0 {
		return nil, errors.New("cue: negative camera count")
	}
	if cfg.Points == (Points{}) {
		cfg.Points = DefaultPoints()
	}
	if err := cfg.Points.Validate(); err != nil {
		return nil, err
	}
	if cfg.HeavyChaosCooldown <= 0 {
		cfg.HeavyChaosCooldown = DefaultHeavyChaosCooldown
	}
	if cfg.MildChaosCooldown <= 0 {
		cfg.MildChaosCooldown = DefaultMildChaosCooldown
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Rand == nil {
		cfg.Rand = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Controller{
		engine:        engine,
		samples:       samples,
		logger:        logger,
		now:           cfg.Now,
		rand:          cfg.Rand,
		phase:         PhaseStopped,
		monster:       cfg.Monster,
		points:        cfg.Points,
		heavyCooldown: cfg.HeavyChaosCooldown,
		mildCooldown:  cfg.MildChaosCooldown,
		tiers:         make([]flow.Severity, cfg.Cameras),
		active:        make(map[Handle]activePlayback),
		recentPoints:  stats.NewInt(pointsWindow),
	}, nil
}

// ============================================================================
// Operator controls
// ============================================================================

// SetPhase switches the narrative phase. Setting the current phase is a
// no-op. Any other transition stops every playback, resets the score and the
// intro flag, and starts the new phase's ambient loop (if it has one).
func (c *Controller) SetPhase(p Phase) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if p == c.phase {
		return
	}

	c.stopAllLocked()
	c.score = 0
	c.introPlayed = false
	c.recentPoints = stats.NewInt(pointsWindow)
	c.phase = p
	c.logger.Info("phase changed", "phase", p)

	switch p {
	case PhaseReconstructing:
		c.playLocked(CategoryReconstruction, VolumeAmbient, true, false)
	case PhaseAction:
		c.playLocked(CategoryCity, VolumeAmbient, true, false)
	case PhaseStopped:
	}
}

// Phase returns the current phase.
func (c *Controller) Phase() Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase
}

// SetMonster selects the monster whose intro plays next.
func (c *Controller) SetMonster(m Monster) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.monster = m
	c.logger.Info("monster selected", "monster", m)
}

// TriggerMonsterIntro plays the selected monster's intro and starts scoring.
// It does nothing outside the action phase.
func (c *Controller) TriggerMonsterIntro() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.phase != PhaseAction {
		c.logger.Debug("monster intro ignored outside action", "phase", c.phase)
		return false
	}

	c.playLocked(c.monster.introCategory(), VolumeIntro, false, true)
	c.introPlayed = true
	return true
}

// TriggerManual fires an operator one-shot. Damage and scream only sound
// during the action phase; the circus plays any time.
func (c *Controller) TriggerManual(m ManualCue) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch m {
	case ManualLargeDamage:
		if c.phase != PhaseAction {
			return false
		}
		return c.playLocked(CategoryLargeDamage, VolumeFull, false, true)
	case ManualScream:
		if c.phase != PhaseAction {
			return false
		}
		return c.playLocked(CategoryScream, VolumeEffectMedium, false, true)
	case ManualCircus:
		return c.playLocked(CategoryCircus, VolumeEffectLow, false, true)
	default:
		c.logger.Warn("unknown manual cue", "cue", m)
		return false
	}
}

// PlayCategory plays one sample from category. See playLocked.
func (c *Controller) PlayCategory(category Category, volume Volume, loop, force bool) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.playLocked(category, volume, loop, force)
}

// Points returns the scoring parameters.
func (c *Controller) Points() Points {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.points
}

// SetPoints replaces the scoring parameters.
func (c *Controller) SetPoints(p Points) error {
	if err := p.Validate(); err != nil {
		return err
	}
	c.mu.Lock()
	c.points = p
	c.mu.Unlock()
	return nil
}

// StopAll stops every active playback.
func (c *Controller) StopAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopAllLocked()
}

// Close stops everything; used on shutdown.
func (c *Controller) Close() {
	c.StopAll()
}

// ============================================================================
// Severity input
// ============================================================================

// ReportSeverity records the latest tier for a camera. Reports for unknown
// cameras are logged and dropped.
func (c *Controller) ReportSeverity(camera int, tier flow.Severity) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if camera < 0 || camera >= len(c.tiers) {
		c.logger.Warn("severity for unknown camera ignored", "camera", camera, "cameras", len(c.tiers))
		return
	}
	c.tiers[camera] = tier
}

// Tick evaluates the most recently reported tiers. The daemon calls it on a
// fixed cadence, independent of camera frame rates.
func (c *Controller) Tick() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.severityTickLocked(c.tiers)
}

// OnSeverityTick scores one tick given each camera's tier.
func (c *Controller) OnSeverityTick(tiers []flow.Severity) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.severityTickLocked(tiers)
}

func (c *Controller) severityTickLocked(tiers []flow.Severity) {
	// Stale ticks for other phases are dropped here rather than cancelled.
	if c.phase != PhaseAction || !c.introPlayed {
		return
	}

	points := 0
	switch flow.Max(tiers) {
	case flow.SeverityLarge:
		c.logger.Debug("large damage")
		c.playLocked(CategoryLargeDamage, VolumeEffectHigh, false, false)
		points = c.points.LargeDamage
	case flow.SeverityMedium:
		c.logger.Debug("medium damage")
		c.playLocked(CategoryMediumDamage, VolumeEffectMedium, false, false)
		c.playLocked(CategoryCrumble, VolumeEffectMedium, false, false)
		points = c.points.MediumDamage
	case flow.SeveritySmall:
		c.logger.Debug("small damage")
		c.playLocked(CategorySmallDamage, VolumeEffectLow, false, false)
		c.playLocked(CategoryCrumble, VolumeEffectLow, false, false)
		points = c.points.SmallDamage
	case flow.SeverityNone:
	}

	old := c.score
	c.score += points
	c.recentPoints.Add(int64(points))

	c.maintainChaosLocked(old)
}

// maintainChaosLocked fires a chaos stinger when the score crosses a level
// threshold, and re-fires the current level's stinger once its cooldown has
// elapsed. The score only rises within a phase, so there is no way down.
func (c *Controller) maintainChaosLocked(oldScore int) {
	now := c.now()

	switch {
	case c.score >= c.points.HeavyChaos:
		crossed := oldScore < c.points.HeavyChaos
		if crossed {
			c.logger.Info("chaos level changed", "chaos", ChaosHeavy, "score", c.score)
		}
		if crossed || now.Sub(c.lastChaosAt) >= c.heavyCooldown {
			c.lastChaosAt = now
			c.playLocked(CategoryHeavyChaos, VolumeEffectMedium, false, false)
		}

	case c.score >= c.points.MildChaos:
		crossed := oldScore < c.points.MildChaos
		if crossed {
			c.logger.Info("chaos level changed", "chaos", ChaosMild, "score", c.score)
		}
		if crossed || now.Sub(c.lastChaosAt) >= c.mildCooldown {
			c.lastChaosAt = now
			c.playLocked(CategoryMildChaos, VolumeEffectMedium, false, false)
		}
	}
}

// ============================================================================
// Playback
// ============================================================================

// playLocked picks a sample from category and starts it.
//
// Candidates are shuffled so no sample is favored, then the first one that
// is not already sounding in this category is chosen; with force, the first
// candidate is chosen regardless. If every sample is busy and force is false
// nothing plays and false is returned.
func (c *Controller) playLocked(category Category, volume Volume, loop, force bool) bool {
	candidates := append([]Sample(nil), c.samples[category]...)
	c.rand.Shuffle(len(candidates), func(i, j int) {
		candidates[i], candidates[j] = candidates[j], candidates[i]
	})

	var chosen *Sample
	for i := range candidates {
		if force || !c.isPlayingLocked(category, candidates[i]) {
			chosen = &candidates[i]
			break
		}
	}
	if chosen == nil {
		c.counters.Skipped++
		c.logger.Info("already playing all samples in category", "category", category)
		return false
	}

	gain := toGain(volume, c.rand)
	h, err := c.engine.Play(*chosen, gain, loop, c.finished)
	if err != nil {
		c.counters.Failed++
		c.logger.Error("playback request failed", "category", category, "sample", chosen.Name, "error", err)
		return false
	}

	c.active[h] = activePlayback{
		category: category,
		sample:   *chosen,
		loop:     loop,
		started:  c.now(),
	}
	c.counters.Plays++
	c.logger.Debug("playing cue",
		"category", category,
		"sample", chosen.Name,
		"gain", gain,
		"loop", loop,
		"force", force,
		"handle", h)
	return true
}

func (c *Controller) isPlayingLocked(category Category, s Sample) bool {
	for _, p := range c.active {
		if p.category == category && p.sample.Path == s.Path {
			return true
		}
	}
	return false
}

func (c *Controller) stopAllLocked() {
	for h := range c.active {
		c.engine.Stop(h)
		delete(c.active, h)
	}
}

// finished is the engine completion callback. Handles already removed by
// stopAllLocked are expected here and ignored.
func (c *Controller) finished(h Handle) {
	c.mu.Lock()
	defer c.mu.Unlock()

	p, ok := c.active[h]
	if !ok {
		c.logger.Debug("completion for unknown playback ignored", "handle", h)
		return
	}
	delete(c.active, h)
	c.logger.Debug("cue finished", "category", p.category, "sample", p.sample.Name, "played", c.now().Sub(p.started))
}

// ============================================================================
// Introspection
// ============================================================================

// Snapshot returns a consistent copy of the controller state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	return Snapshot{
		Phase:        c.phase,
		Monster:      c.monster,
		Score:        c.score,
		Chaos:        c.points.Level(c.score),
		IntroPlayed:  c.introPlayed,
		Cameras:      append([]flow.Severity(nil), c.tiers...),
		Active:       len(c.active),
		Points:       c.points,
		RecentPoints: c.recentPoints.Sum(),
		Counters:     c.counters,
	}
}

// ActiveSamples returns the paths of every sample currently sounding.
func (c *Controller) ActiveSamples() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]string, 0, len(c.active))
	for _, p := range c.active {
		out = append(out, p.sample.Path)
	}
	return out
}
