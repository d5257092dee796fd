package video

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"io"

	ffmpeg "github.com/u2takey/ffmpeg-go"

	"github.com/melody-ding/go-vidsumm/internal/types"
)

// Source decodes frames from video files through ffmpeg
type Source struct {
	binary   string
	logLevel string
}

// NewSource creates a Source. logLevel is passed to ffmpeg's -loglevel.
func NewSource(logLevel string) *Source {
	if logLevel == "" {
		logLevel = "error"
	}
	return &Source{binary: defaultBinary, logLevel: logLevel}
}

// Probe reports frame count, frame rate and dimensions of the first video stream
func (s *Source) Probe(ctx context.Context, path string) (types.StreamInfo, error) {
	if err := ctx.Err(); err != nil {
		return types.StreamInfo{}, err
	}
	data, err := ffmpeg.Probe(path)
	if err != nil {
		return types.StreamInfo{}, fmt.Errorf("ffprobe %s: %w", path, err)
	}
	return parseProbe(data)
}

// FrameAt decodes the frame at index from a video of the given dimensions
func (s *Source) FrameAt(ctx context.Context, path string, index, width, height int) (*image.RGBA, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid frame size %dx%d", width, height)
	}

	stream := s.frameAtStream(path, index)
	var buf bytes.Buffer
	if err := run(ctx, s.binary, stream, &buf); err != nil {
		return nil, fmt.Errorf("decode frame %d of %s: %w", index, path, err)
	}

	frameSize := width * height * 3
	if buf.Len() < frameSize {
		return nil, fmt.Errorf("decode frame %d of %s: got %d bytes, want %d", index, path, buf.Len(), frameSize)
	}
	return rgbToImage(buf.Bytes()[:frameSize], width, height), nil
}

// Frames streams every frame of the video in decode order.
// fn receives a reused buffer and must not retain the image.
func (s *Source) Frames(ctx context.Context, path string, width, height int, fn func(index int, img *image.RGBA) error) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("invalid frame size %dx%d", width, height)
	}

	cmd := command(ctx, s.binary, s.framesStream(path))
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return err
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start ffmpeg: %w", err)
	}

	raw := make([]byte, width*height*3)
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	var fnErr error
	for index := 0; ; index++ {
		if _, err := io.ReadFull(stdout, raw); err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
				fnErr = fmt.Errorf("read frame %d: %w", index, err)
			}
			break
		}
		fillRGBA(img, raw)
		if fnErr = fn(index, img); fnErr != nil {
			break
		}
	}

	// Drain so ffmpeg is not blocked on a full pipe when fn stopped early
	if fnErr != nil {
		_, _ = io.Copy(io.Discard, stdout)
	}
	waitErr := cmd.Wait()
	if fnErr != nil {
		return fnErr
	}
	if waitErr != nil {
		return fmt.Errorf("ffmpeg failed: %w: %s", waitErr, bytes.TrimSpace(stderr.Bytes()))
	}
	return nil
}

func (s *Source) frameAtStream(path string, index int) *ffmpeg.Stream {
	return ComposeTransforms(ffmpeg.Input(path), SelectFrameTransform{Index: index}).
		Output("pipe:", s.rawArgs(ffmpeg.KwArgs{"vframes": 1}))
}

func (s *Source) framesStream(path string) *ffmpeg.Stream {
	return ffmpeg.Input(path).Output("pipe:", s.rawArgs(nil))
}

// rawArgs keeps one output frame per decoded frame so pipe indices match the
// container's frame numbering even for variable frame rate input
func (s *Source) rawArgs(extra ffmpeg.KwArgs) ffmpeg.KwArgs {
	args := ffmpeg.KwArgs{
		"format":   "rawvideo",
		"pix_fmt":  "rgb24",
		"fps_mode": "passthrough",
		"loglevel": s.logLevel,
	}
	for k, v := range extra {
		args[k] = v
	}
	return args
}

func rgbToImage(raw []byte, width, height int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	fillRGBA(img, raw)
	return img
}

func fillRGBA(img *image.RGBA, raw []byte) {
	for i, j := 0, 0; i+2 < len(raw) && j+3 < len(img.Pix); i, j = i+3, j+4 {
		img.Pix[j] = raw[i]
		img.Pix[j+1] = raw[i+1]
		img.Pix[j+2] = raw[i+2]
		img.Pix[j+3] = 0xff
	}
}
