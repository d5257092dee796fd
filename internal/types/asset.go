package types

import (
	"path/filepath"
	"strings"
)

// VideoAsset represents a discovered source video and its probed metadata
type VideoAsset struct {
	RelPath    string  `json:"rel_path"`
	Path       string  `json:"path"`
	FrameCount int     `json:"frame_count"`
	FPS        float64 `json:"fps"`
	Width      int     `json:"width"`
	Height     int     `json:"height"`
}

// Key returns the relative path with its extension stripped
func (v VideoAsset) Key() string {
	return strings.TrimSuffix(v.RelPath, filepath.Ext(v.RelPath))
}

// ResampledAsset is the transient low resolution copy of a VideoAsset
type ResampledAsset struct {
	Path       string `json:"path"`
	FrameCount int    `json:"frame_count"`
	Width      int    `json:"width"`
	Height     int    `json:"height"`
}

// StreamInfo is what a probe reports about the first video stream of a file
type StreamInfo struct {
	FrameCount int
	FPS        float64
	Width      int
	Height     int
}
