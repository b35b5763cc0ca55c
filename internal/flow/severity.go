package flow

import "fmt"

// Severity is the classification of a camera's current flow anomaly relative
// to its own recent history. Values are ordered from smallest to largest.
type Severity int

const (
	SeverityNone Severity = iota
	SeveritySmall
	SeverityMedium
	SeverityLarge
)

func (s Severity) String() string {
	switch s {
	case SeverityNone:
		return "none"
	case SeveritySmall:
		return "small"
	case SeverityMedium:
		return "medium"
	case SeverityLarge:
		return "large"
	default:
		return fmt.Sprintf("severity(%d)", int(s))
	}
}

// ParseSeverity is the inverse of Severity.String.
func ParseSeverity(s string) (Severity, error) {
	switch s {
	case "none":
		return SeverityNone, nil
	case "small":
		return SeveritySmall, nil
	case "medium":
		return SeverityMedium, nil
	case "large":
		return SeverityLarge, nil
	default:
		return SeverityNone, fmt.Errorf("unknown severity %q", s)
	}
}

// Max returns the highest tier in tiers, or SeverityNone if tiers is empty.
func Max(tiers []Severity) Severity {
	max := SeverityNone
	for _, t := range tiers {
		if t > max {
			max = t
		}
	}
	return max
}

// MarshalText encodes the tier by name so JSON payloads stay readable.
func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText accepts the names produced by MarshalText.
func (s *Severity) UnmarshalText(b []byte) error {
	v, err := ParseSeverity(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}
