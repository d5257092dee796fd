package types

import "fmt"

// PenaltyConfig holds the selection weights shared by every video of a run
type PenaltyConfig struct {
	Representativeness float64 `json:"l1"`
	Length             float64 `json:"l2"`
	Downsampling       int     `json:"dsf"`
}

// DefaultPenalty mirrors the command line defaults
func DefaultPenalty() PenaltyConfig {
	return PenaltyConfig{Representativeness: 1, Length: 5, Downsampling: 1}
}

func (p PenaltyConfig) Validate() error {
	if p.Downsampling < 1 {
		return fmt.Errorf("downsampling factor must be >= 1, got %d", p.Downsampling)
	}
	if p.Representativeness < 0 {
		return fmt.Errorf("representativeness weight must be >= 0, got %g", p.Representativeness)
	}
	if p.Length < 0 {
		return fmt.Errorf("length weight must be >= 0, got %g", p.Length)
	}
	return nil
}

// KeyframeSet is an ordered list of frame indices in original index space
type KeyframeSet []int

// Validate checks that indices are strictly increasing and below frameCount
func (k KeyframeSet) Validate(frameCount int) error {
	for i, idx := range k {
		if idx < 0 || idx >= frameCount {
			return fmt.Errorf("keyframe %d out of range [0, %d)", idx, frameCount)
		}
		if i > 0 && idx <= k[i-1] {
			return fmt.Errorf("keyframes not strictly increasing at position %d (%d after %d)", i, idx, k[i-1])
		}
	}
	return nil
}
