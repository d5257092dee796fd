package keyframe

import (
	"errors"
	"fmt"
	"sort"
)

// ErrZeroFrames is returned when the resampled video has no frames to map from
var ErrZeroFrames = errors.New("resampled video reports zero frames")

// Rescale maps indices selected on a resampled copy back onto the original
// video with floor(original*r/resampled). This assumes both encodings are
// uniformly aligned in time; it is not an exact frame correspondence.
// Indices that collapse onto the same original frame are merged.
func Rescale(indices []int, original, resampled int) ([]int, error) {
	if resampled <= 0 {
		return nil, ErrZeroFrames
	}
	if original <= 0 {
		return nil, fmt.Errorf("original video reports %d frames", original)
	}

	sorted := append([]int(nil), indices...)
	sort.Ints(sorted)

	out := make([]int, 0, len(sorted))
	for _, r := range sorted {
		if r < 0 || r >= resampled {
			return nil, fmt.Errorf("index %d out of range [0, %d)", r, resampled)
		}
		o := int(int64(original) * int64(r) / int64(resampled))
		if len(out) > 0 && out[len(out)-1] == o {
			continue
		}
		out = append(out, o)
	}
	return out, nil
}
