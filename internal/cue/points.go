package cue

import "fmt"

// Ranges accepted for live-tuned scoring parameters.
const (
	MinDamagePoints = 1
	MaxDamagePoints = 20
	MinChaosPoints  = 1
	MaxChaosPoints  = 10000
)

// Points holds the scoring parameters: how much each damage tier is worth and
// the score thresholds for the chaos levels.
type Points struct {
	SmallDamage  int `json:"small_damage"`
	MediumDamage int `json:"medium_damage"`
	LargeDamage  int `json:"large_damage"`
	MildChaos    int `json:"mild_chaos"`
	HeavyChaos   int `json:"heavy_chaos"`
}

// DefaultPoints returns the stock scoring.
func DefaultPoints() Points {
	return Points{
		SmallDamage:  2,
		MediumDamage: 5,
		LargeDamage:  10,
		MildChaos:    500,
		HeavyChaos:   1500,
	}
}

// Validate checks every field against its allowed range.
func (p Points) Validate() error {
	damage := []struct {
		name string
		v    int
	}{
		{"small damage", p.SmallDamage},
		{"medium damage", p.MediumDamage},
		{"large damage", p.LargeDamage},
	}
	for _, d := range damage {
		if d.v < MinDamagePoints || d.v > MaxDamagePoints {
			return fmt.Errorf("%s points %d out of range [%d, %d]", d.name, d.v, MinDamagePoints, MaxDamagePoints)
		}
	}
	if p.MildChaos < MinChaosPoints || p.MildChaos > MaxChaosPoints {
		return fmt.Errorf("mild chaos points %d out of range [%d, %d]", p.MildChaos, MinChaosPoints, MaxChaosPoints)
	}
	if p.HeavyChaos < MinChaosPoints || p.HeavyChaos > MaxChaosPoints {
		return fmt.Errorf("heavy chaos points %d out of range [%d, %d]", p.HeavyChaos, MinChaosPoints, MaxChaosPoints)
	}
	return nil
}

// Level derives the chaos level for score.
func (p Points) Level(score int) ChaosLevel {
	switch {
	case score >= p.HeavyChaos:
		return ChaosHeavy
	case score >= p.MildChaos:
		return ChaosMild
	default:
		return ChaosPeaceful
	}
}
