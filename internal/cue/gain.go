package cue

import "math/rand/v2"

// toGain converts a volume class to a linear gain. Effect classes are
// randomized within their band so repeated triggers do not sound identical.
func toGain(v Volume, r *rand.Rand) float64 {
	switch v {
	case VolumeAmbient:
		return 0.3
	case VolumeIntro:
		return 0.7
	case VolumeFull:
		return 1.0
	case VolumeEffectLow:
		return 0.2 + r.Float64()*0.2
	case VolumeEffectMedium:
		return 0.4 + r.Float64()*0.3
	case VolumeEffectHigh:
		return 0.7 + r.Float64()*0.3
	default:
		panic("cue: unknown volume " + v.String())
	}
}
