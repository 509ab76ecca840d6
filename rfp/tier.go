package rfp

import "fmt"

// Tier is the recommendation bucket derived from a percentage score.
type Tier string

const (
	TierHigh   Tier = "HIGH"
	TierMedium Tier = "MEDIUM"
	TierLow    Tier = "LOW"
	TierSkip   Tier = "SKIP"
)

// Thresholds are the percentage boundaries of each tier, inclusive.
type Thresholds struct {
	High   int `json:"high" yaml:"high"`
	Medium int `json:"medium" yaml:"medium"`
	Low    int `json:"low" yaml:"low"`
}

// DefaultThresholds returns high=75, medium=50, low=25.
func DefaultThresholds() Thresholds {
	return Thresholds{High: 75, Medium: 50, Low: 25}
}

// Validate checks that thresholds are strictly ordered high > medium > low.
func (t Thresholds) Validate() error {
	if !(t.High > t.Medium && t.Medium > t.Low) {
		return fmt.Errorf("rfp: thresholds must satisfy high > medium > low, got %d/%d/%d",
			t.High, t.Medium, t.Low)
	}
	return nil
}

// Tier maps a percentage to its tier.
func (t Thresholds) Tier(percentage int) Tier {
	switch {
	case percentage >= t.High:
		return TierHigh
	case percentage >= t.Medium:
		return TierMedium
	case percentage >= t.Low:
		return TierLow
	default:
		return TierSkip
	}
}
