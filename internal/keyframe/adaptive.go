package keyframe

import (
	"context"
	"errors"
	"fmt"
	"image"
	"math"

	"github.com/melody-ding/go-vidsumm/internal/types"
)

// DefaultBins is the number of histogram bins per colour channel
const DefaultBins = 16

// errorScale converts mean reconstruction distance into the same units as
// the per-frame length penalty
const errorScale = 100.0

// FrameStreamer reads every frame of a video in decode order
type FrameStreamer interface {
	Probe(ctx context.Context, path string) (types.StreamInfo, error)
	Frames(ctx context.Context, path string, width, height int, fn func(index int, img *image.RGBA) error) error
}

// Adaptive selects keyframes by greedily trading reconstruction error of the
// sampled frames against redundancy among the picks (weighted by λ1) and the
// number of picks (weighted by λ2).
type Adaptive struct {
	src  FrameStreamer
	bins int
}

func NewAdaptive(src FrameStreamer) *Adaptive {
	return &Adaptive{src: src, bins: DefaultBins}
}

func (a *Adaptive) Select(ctx context.Context, path string, penalty types.PenaltyConfig) ([]int, error) {
	if err := penalty.Validate(); err != nil {
		return nil, err
	}
	info, err := a.src.Probe(ctx, path)
	if err != nil {
		return nil, err
	}

	var (
		features [][]float64
		indices  []int
	)
	err = a.src.Frames(ctx, path, info.Width, info.Height, func(index int, img *image.RGBA) error {
		if index%penalty.Downsampling != 0 {
			return nil
		}
		features = append(features, histogram(img, a.bins))
		indices = append(indices, index)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("read frames: %w", err)
	}
	if len(features) == 0 {
		return nil, errors.New("no frames decoded")
	}

	picks := greedySelect(features, penalty.Representativeness, penalty.Length)
	out := make([]int, len(picks))
	for i, p := range picks {
		out[i] = indices[p]
	}
	return out, nil
}

// histogram returns per channel RGB histograms, each normalized to sum to 1
func histogram(img *image.RGBA, bins int) []float64 {
	h := make([]float64, 3*bins)
	b := img.Bounds()
	var n float64
	for y := b.Min.Y; y < b.Max.Y; y++ {
		row := img.Pix[img.PixOffset(b.Min.X, y):img.PixOffset(b.Max.X, y)]
		for i := 0; i+3 < len(row); i += 4 {
			h[int(row[i])*bins/256]++
			h[bins+int(row[i+1])*bins/256]++
			h[2*bins+int(row[i+2])*bins/256]++
			n++
		}
	}
	if n > 0 {
		for i := range h {
			h[i] /= n
		}
	}
	return h
}

// distance is the mean over channels of half the L1 histogram distance, in [0, 1]
func distance(a, b []float64) float64 {
	var d float64
	for i := range a {
		d += math.Abs(a[i] - b[i])
	}
	return d / 6
}

// greedySelect returns sorted positions into features minimizing
//
//	errorScale*mean_i min_s d(i,s) + l1*sum_{s<t} (1-d(s,t)) + l2*|S|
//
// The first frame is always picked.
func greedySelect(features [][]float64, l1, l2 float64) []int {
	n := len(features)
	if n == 0 {
		return nil
	}

	selected := []int{0}
	picked := make([]bool, n)
	picked[0] = true
	nearest := make([]float64, n)
	for i := range features {
		nearest[i] = distance(features[i], features[0])
	}

	for len(selected) < n {
		best, bestDelta := -1, 0.0
		for c := 0; c < n; c++ {
			if picked[c] {
				continue
			}
			var gain float64
			for i := range features {
				if d := distance(features[i], features[c]); d < nearest[i] {
					gain += nearest[i] - d
				}
			}
			var redundancy float64
			for _, s := range selected {
				redundancy += 1 - distance(features[c], features[s])
			}
			delta := -errorScale*gain/float64(n) + l1*redundancy + l2
			if delta < bestDelta {
				best, bestDelta = c, delta
			}
		}
		if best < 0 {
			break
		}

		picked[best] = true
		selected = append(selected, best)
		for i := range features {
			nearest[i] = math.Min(nearest[i], distance(features[i], features[best]))
		}
	}

	out := make([]int, 0, len(selected))
	for i := 0; i < n; i++ {
		if picked[i] {
			out = append(out, i)
		}
	}
	return out
}
