package video

import (
	"context"
	"fmt"

	ffmpeg "github.com/u2takey/ffmpeg-go"
)

// Resampler re-encodes videos at a fixed resolution
type Resampler struct {
	Width    int
	Height   int
	binary   string
	logLevel string
}

func NewResampler(width, height int, logLevel string) *Resampler {
	if logLevel == "" {
		logLevel = "error"
	}
	return &Resampler{Width: width, Height: height, binary: defaultBinary, logLevel: logLevel}
}

// Resample writes a copy of src scaled to Width x Height at dst, replacing any existing file
func (r *Resampler) Resample(ctx context.Context, src, dst string) error {
	if r.Width <= 0 || r.Height <= 0 {
		return fmt.Errorf("invalid target resolution %dx%d", r.Width, r.Height)
	}
	stream := ComposeTransforms(ffmpeg.Input(src), ScaleTransform{Width: r.Width, Height: r.Height}).
		Output(dst, ffmpeg.KwArgs{"loglevel": r.logLevel}).
		OverWriteOutput()
	if err := run(ctx, r.binary, stream, nil); err != nil {
		return fmt.Errorf("resample %s: %w", src, err)
	}
	return nil
}
