package cue

import (
	"fmt"
	"strings"
)

// Phase is the installation's narrative state. Exactly one phase is active
// at a time and only the operator changes it.
type Phase int

const (
	PhaseStopped Phase = iota
	PhaseReconstructing
	PhaseAction
)

func (p Phase) String() string {
	switch p {
	case PhaseStopped:
		return "stopped"
	case PhaseReconstructing:
		return "reconstructing"
	case PhaseAction:
		return "action"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// ParsePhase accepts the String form plus the short control-panel names.
func ParsePhase(s string) (Phase, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "stopped", "stop":
		return PhaseStopped, nil
	case "reconstructing", "reconstruct":
		return PhaseReconstructing, nil
	case "action":
		return PhaseAction, nil
	default:
		return PhaseStopped, fmt.Errorf("unknown phase %q", s)
	}
}

func (p Phase) MarshalText() ([]byte, error) { return []byte(p.String()), nil }

func (p *Phase) UnmarshalText(b []byte) error {
	v, err := ParsePhase(string(b))
	if err != nil {
		return err
	}
	*p = v
	return nil
}

// Monster selects which intro cue plays when the monster arrives.
type Monster int

const (
	MonsterRobot Monster = iota
	MonsterLizard
	MonsterOther
)

func (m Monster) String() string {
	switch m {
	case MonsterRobot:
		return "robot"
	case MonsterLizard:
		return "lizard"
	case MonsterOther:
		return "other"
	default:
		return fmt.Sprintf("monster(%d)", int(m))
	}
}

func ParseMonster(s string) (Monster, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "robot":
		return MonsterRobot, nil
	case "lizard":
		return MonsterLizard, nil
	case "other":
		return MonsterOther, nil
	default:
		return MonsterLizard, fmt.Errorf("unknown monster %q", s)
	}
}

func (m Monster) MarshalText() ([]byte, error) { return []byte(m.String()), nil }

func (m *Monster) UnmarshalText(b []byte) error {
	v, err := ParseMonster(string(b))
	if err != nil {
		return err
	}
	*m = v
	return nil
}

// introCategory maps a monster to its intro cue.
func (m Monster) introCategory() Category {
	switch m {
	case MonsterRobot:
		return CategoryRobotIntro
	case MonsterLizard:
		return CategoryLizardIntro
	case MonsterOther:
		return CategoryOtherIntro
	default:
		panic(fmt.Sprintf("cue: no intro category for %v", m))
	}
}

// Category is a named group of interchangeable samples. Its String form is
// also the name of the directory the samples are loaded from.
type Category int

const (
	// Ambient, looped.
	CategoryReconstruction Category = iota
	CategoryCity

	// Played once at the start of the action.
	CategoryRobotIntro
	CategoryLizardIntro
	CategoryOtherIntro

	// Ambient one-shots driven by the chaos level.
	CategoryMildChaos
	CategoryHeavyChaos

	// Damage activity.
	CategorySmallDamage
	CategoryMediumDamage
	CategoryLargeDamage

	// Follows small and medium damage.
	CategoryCrumble

	// Manual.
	CategoryScream
	CategoryCircus

	numCategories
)

// Categories lists every category in declaration order.
func Categories() []Category {
	out := make([]Category, 0, numCategories)
	for c := Category(0); c < numCategories; c++ {
		out = append(out, c)
	}
	return out
}

func (c Category) String() string {
	switch c {
	case CategoryReconstruction:
		return "reconstruction"
	case CategoryCity:
		return "city"
	case CategoryRobotIntro:
		return "robot_intro"
	case CategoryLizardIntro:
		return "lizard_intro"
	case CategoryOtherIntro:
		return "other_intro"
	case CategoryMildChaos:
		return "mild_chaos"
	case CategoryHeavyChaos:
		return "heavy_chaos"
	case CategorySmallDamage:
		return "small_damage"
	case CategoryMediumDamage:
		return "medium_damage"
	case CategoryLargeDamage:
		return "large_damage"
	case CategoryCrumble:
		return "crumble"
	case CategoryScream:
		return "scream"
	case CategoryCircus:
		return "circus"
	default:
		return fmt.Sprintf("category(%d)", int(c))
	}
}

func ParseCategory(s string) (Category, error) {
	name := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_")
	for _, c := range Categories() {
		if c.String() == name {
			return c, nil
		}
	}
	return 0, fmt.Errorf("unknown category %q", s)
}

func (c Category) MarshalText() ([]byte, error) { return []byte(c.String()), nil }

func (c *Category) UnmarshalText(b []byte) error {
	v, err := ParseCategory(string(b))
	if err != nil {
		return err
	}
	*c = v
	return nil
}

// Volume is a loudness class. It maps to a gain via toGain; effect classes
// are randomized within a band on every trigger.
type Volume int

const (
	VolumeAmbient Volume = iota
	VolumeIntro
	VolumeFull
	VolumeEffectLow
	VolumeEffectMedium
	VolumeEffectHigh
)

func (v Volume) String() string {
	switch v {
	case VolumeAmbient:
		return "ambient"
	case VolumeIntro:
		return "intro"
	case VolumeFull:
		return "full"
	case VolumeEffectLow:
		return "effect_low"
	case VolumeEffectMedium:
		return "effect_medium"
	case VolumeEffectHigh:
		return "effect_high"
	default:
		return fmt.Sprintf("volume(%d)", int(v))
	}
}

func ParseVolume(s string) (Volume, error) {
	switch strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_") {
	case "ambient":
		return VolumeAmbient, nil
	case "intro":
		return VolumeIntro, nil
	case "full":
		return VolumeFull, nil
	case "effect_low":
		return VolumeEffectLow, nil
	case "effect_medium":
		return VolumeEffectMedium, nil
	case "effect_high":
		return VolumeEffectHigh, nil
	default:
		return VolumeFull, fmt.Errorf("unknown volume %q", s)
	}
}

func (v Volume) MarshalText() ([]byte, error) { return []byte(v.String()), nil }

func (v *Volume) UnmarshalText(b []byte) error {
	p, err := ParseVolume(string(b))
	if err != nil {
		return err
	}
	*v = p
	return nil
}

// ChaosLevel is derived from the score; it is never stored.
type ChaosLevel int

const (
	ChaosPeaceful ChaosLevel = iota
	ChaosMild
	ChaosHeavy
)

func (l ChaosLevel) String() string {
	switch l {
	case ChaosPeaceful:
		return "peaceful"
	case ChaosMild:
		return "mild"
	case ChaosHeavy:
		return "heavy"
	default:
		return fmt.Sprintf("chaos(%d)", int(l))
	}
}

func (l ChaosLevel) MarshalText() ([]byte, error) { return []byte(l.String()), nil }

// ManualCue is a one-shot the operator can fire from the control surface.
type ManualCue int

const (
	ManualLargeDamage ManualCue = iota
	ManualScream
	ManualCircus
)

func (m ManualCue) String() string {
	switch m {
	case ManualLargeDamage:
		return "large_damage"
	case ManualScream:
		return "scream"
	case ManualCircus:
		return "circus"
	default:
		return fmt.Sprintf("manual(%d)", int(m))
	}
}

func ParseManualCue(s string) (ManualCue, error) {
	switch strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_") {
	case "large_damage":
		return ManualLargeDamage, nil
	case "scream":
		return ManualScream, nil
	case "circus":
		return ManualCircus, nil
	default:
		return 0, fmt.Errorf("unknown manual cue %q", s)
	}
}

func (m ManualCue) MarshalText() ([]byte, error) { return []byte(m.String()), nil }

func (m *ManualCue) UnmarshalText(b []byte) error {
	v, err := ParseManualCue(string(b))
	if err != nil {
		return err
	}
	*m = v
	return nil
}
