package main

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"rampage/internal/cue"
	"rampage/internal/flow"
	"rampage/internal/settings"
)

// Settings keys for live-tunable values.
const (
	keySmallDamagePoints  = "sampler.smallDamagePoints"
	keyMediumDamagePoints = "sampler.mediumDamagePoints"
	keyLargeDamagePoints  = "sampler.largeDamagePoints"
	keyMildChaosPoints    = "sampler.mildChaosPoints"
	keyHeavyChaosPoints   = "sampler.heavyChaosPoints"

	keySmallTriggerSlope  = "flowTracker.smallTriggerSlope"
	keyMediumTriggerSlope = "flowTracker.mediumTriggerSlope"
	keyLargeTriggerSlope  = "flowTracker.largeTriggerSlope"

	// Older settings files only stored the small slope, under this key.
	keyLegacyTriggerSlope = "flowTracker.triggerSlope"
)

// Trigger slopes are edited in tenths.
const (
	minTriggerSlope = 0.1
	maxTriggerSlope = 10.0
)

var (
	ErrUnknownParam = errors.New("unknown parameter")
	ErrOutOfRange   = errors.New("value out of range")
)

type paramKind int

const (
	paramInt paramKind = iota
	paramFloat
)

// param is one named, ranged, live-tunable value. get and set read and
// write the owning component directly.
type param struct {
	key      string
	kind     paramKind
	min, max float64
	get      func() float64
	set      func(float64) error
}

// ParamTable binds settings keys to the controller's points and the
// trackers' thresholds. All trackers share one set of thresholds.
type ParamTable struct {
	params map[string]*param
}

// pointsTarget and thresholdsTarget are the parts of the controller and
// trackers the table drives.
type pointsTarget interface {
	Points() cue.Points
	SetPoints(cue.Points) error
}

type thresholdsTarget interface {
	Thresholds() flow.Thresholds
	SetThresholds(flow.Thresholds) error
}

func NewParamTable(points pointsTarget, trackers []thresholdsTarget) *ParamTable {
	t := &ParamTable{params: make(map[string]*param)}

	pointParam := func(key string, lo, hi int, field func(*cue.Points) *int) {
		t.add(&param{
			key:  key,
			kind: paramInt,
			min:  float64(lo),
			max:  float64(hi),
			get: func() float64 {
				p := points.Points()
				return float64(*field(&p))
			},
			set: func(v float64) error {
				p := points.Points()
				*field(&p) = int(v)
				return points.SetPoints(p)
			},
		})
	}
	pointParam(keySmallDamagePoints, cue.MinDamagePoints, cue.MaxDamagePoints, func(p *cue.Points) *int { return &p.SmallDamage })
	pointParam(keyMediumDamagePoints, cue.MinDamagePoints, cue.MaxDamagePoints, func(p *cue.Points) *int { return &p.MediumDamage })
	pointParam(keyLargeDamagePoints, cue.MinDamagePoints, cue.MaxDamagePoints, func(p *cue.Points) *int { return &p.LargeDamage })
	pointParam(keyMildChaosPoints, cue.MinChaosPoints, cue.MaxChaosPoints, func(p *cue.Points) *int { return &p.MildChaos })
	pointParam(keyHeavyChaosPoints, cue.MinChaosPoints, cue.MaxChaosPoints, func(p *cue.Points) *int { return &p.HeavyChaos })

	slopeParam := func(key string, field func(*flow.Thresholds) *float64) {
		t.add(&param{
			key:  key,
			kind: paramFloat,
			min:  minTriggerSlope,
			max:  maxTriggerSlope,
			get: func() float64 {
				if len(trackers) == 0 {
					th := flow.DefaultThresholds()
					return *field(&th)
				}
				th := trackers[0].Thresholds()
				return *field(&th)
			},
			set: func(v float64) error {
				for _, tr := range trackers {
					th := tr.Thresholds()
					*field(&th) = v
					if err := tr.SetThresholds(th); err != nil {
						return err
					}
				}
				return nil
			},
		})
	}
	slopeParam(keySmallTriggerSlope, func(th *flow.Thresholds) *float64 { return &th.Small })
	slopeParam(keyMediumTriggerSlope, func(th *flow.Thresholds) *float64 { return &th.Medium })
	slopeParam(keyLargeTriggerSlope, func(th *flow.Thresholds) *float64 { return &th.Large })

	return t
}

func (t *ParamTable) add(p *param) { t.params[p.key] = p }

// Keys returns every parameter name, sorted.
func (t *ParamTable) Keys() []string {
	keys := make([]string, 0, len(t.params))
	for k := range t.params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Get returns the current value of key.
func (t *ParamTable) Get(key string) (float64, error) {
	p, ok := t.params[key]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownParam, key)
	}
	return p.get(), nil
}

// Set validates and applies value. Integer parameters reject fractions;
// slopes are rounded to tenths.
func (t *ParamTable) Set(key string, value float64) error {
	p, ok := t.params[key]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownParam, key)
	}
	if math.IsNaN(value) || value < p.min || value > p.max {
		return fmt.Errorf("%w: %s=%v not in [%v, %v]", ErrOutOfRange, key, value, p.min, p.max)
	}
	switch p.kind {
	case paramInt:
		if value != math.Trunc(value) {
			return fmt.Errorf("%w: %s must be a whole number", ErrOutOfRange, key)
		}
	case paramFloat:
		value = math.Round(value*10) / 10
	}
	return p.set(value)
}

// Values returns every parameter's current value.
func (t *ParamTable) Values() map[string]float64 {
	out := make(map[string]float64, len(t.params))
	for k, p := range t.params {
		out[k] = p.get()
	}
	return out
}

// LoadFrom applies stored values. Missing keys keep their current value; a
// stored value that fails validation is reported and skipped so one bad key
// does not discard the rest.
func (t *ParamTable) LoadFrom(s *settings.Store) []error {
	var errs []error

	if !s.Has(keySmallTriggerSlope) && s.Has(keyLegacyTriggerSlope) {
		v := s.GetFloat(keyLegacyTriggerSlope, 0)
		if err := t.Set(keySmallTriggerSlope, v); err != nil {
			errs = append(errs, err)
		}
	}

	for _, key := range t.Keys() {
		if !s.Has(key) {
			continue
		}
		p := t.params[key]
		v := s.GetFloat(key, p.get())
		if err := t.Set(key, v); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}

// SaveTo writes every parameter into s. The caller saves the store.
func (t *ParamTable) SaveTo(s *settings.Store) error {
	for _, key := range t.Keys() {
		p := t.params[key]
		v := p.get()
		var err error
		if p.kind == paramInt {
			err = s.Set(key, int(v))
		} else {
			err = s.Set(key, v)
		}
		if err != nil {
			return err
		}
	}
	s.Delete(keyLegacyTriggerSlope)
	return nil
}
