package keyframe

import (
	"context"
	"fmt"
	"image"
	"math"
)

// DefaultLumaThreshold is the minimum luma standard deviation (0-255 scale)
// a frame needs to be kept
const DefaultLumaThreshold = 10.0

// Perceptual channel weights
const (
	weightR = 0.299
	weightG = 0.587
	weightB = 0.114
)

// FrameDecoder decodes a single frame of a video
type FrameDecoder interface {
	FrameAt(ctx context.Context, path string, index, width, height int) (*image.RGBA, error)
}

// Frame is a decoded keyframe
type Frame struct {
	Index int
	Image *image.RGBA
}

// LumaFilter rejects near monochromatic frames such as black leaders or slates
type LumaFilter struct {
	Threshold float64
}

func NewLumaFilter(threshold float64) LumaFilter {
	return LumaFilter{Threshold: threshold}
}

// Accept reports whether img has enough luma variation to be kept
func (f LumaFilter) Accept(img image.Image) bool {
	return LumaStdDev(img) >= f.Threshold
}

// Apply decodes every index from the video at path and returns the accepted
// frames in their original order, along with the number rejected.
func (f LumaFilter) Apply(ctx context.Context, dec FrameDecoder, path string, width, height int, indices []int) ([]Frame, int, error) {
	var (
		kept    []Frame
		dropped int
	)
	for _, idx := range indices {
		img, err := dec.FrameAt(ctx, path, idx, width, height)
		if err != nil {
			return nil, 0, fmt.Errorf("frame %d: %w", idx, err)
		}
		if !f.Accept(img) {
			dropped++
			continue
		}
		kept = append(kept, Frame{Index: idx, Image: img})
	}
	return kept, dropped, nil
}

// LumaStdDev returns the population standard deviation of per pixel luma
func LumaStdDev(img image.Image) float64 {
	var sum, sumSq float64
	var n int

	add := func(r, g, b float64) {
		y := weightB*b + weightG*g + weightR*r
		sum += y
		sumSq += y * y
		n++
	}

	b := img.Bounds()
	if rgba, ok := img.(*image.RGBA); ok {
		for y := b.Min.Y; y < b.Max.Y; y++ {
			row := rgba.Pix[rgba.PixOffset(b.Min.X, y):rgba.PixOffset(b.Max.X, y)]
			for i := 0; i+3 < len(row); i += 4 {
				add(float64(row[i]), float64(row[i+1]), float64(row[i+2]))
			}
		}
	} else {
		for y := b.Min.Y; y < b.Max.Y; y++ {
			for x := b.Min.X; x < b.Max.X; x++ {
				r, g, bl, _ := img.At(x, y).RGBA()
				add(float64(r>>8), float64(g>>8), float64(bl>>8))
			}
		}
	}

	if n == 0 {
		return 0
	}
	mean := sum / float64(n)
	variance := sumSq/float64(n) - mean*mean
	if variance < 0 {
		variance = 0
	}
	return math.Sqrt(variance)
}
