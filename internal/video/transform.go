package video

import (
	"fmt"

	ffmpeg "github.com/u2takey/ffmpeg-go"
)

// Transform is a video filter that can be attached to an ffmpeg-go stream
type Transform interface {
	Apply(s *ffmpeg.Stream) *ffmpeg.Stream
}

// ScaleTransform resizes the video to a fixed resolution
type ScaleTransform struct {
	Width  int
	Height int
}

func (t ScaleTransform) Apply(s *ffmpeg.Stream) *ffmpeg.Stream {
	return s.Filter("scale", ffmpeg.Args{fmt.Sprintf("%d:%d", t.Width, t.Height)})
}

// SelectFrameTransform keeps frames starting at Index
type SelectFrameTransform struct {
	Index int
}

func (t SelectFrameTransform) Apply(s *ffmpeg.Stream) *ffmpeg.Stream {
	return s.Filter("select", ffmpeg.Args{fmt.Sprintf("gte(n,%d)", t.Index)})
}

// ComposeTransforms applies transforms in order
func ComposeTransforms(s *ffmpeg.Stream, transforms ...Transform) *ffmpeg.Stream {
	for _, t := range transforms {
		s = t.Apply(s)
	}
	return s
}
