package video

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/melody-ding/go-vidsumm/internal/types"
)

// ErrNoVideoStream is returned when a probed file has no video stream
var ErrNoVideoStream = errors.New("no video stream")

type probeOutput struct {
	Streams []probeStream `json:"streams"`
	Format  struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

type probeStream struct {
	CodecType    string `json:"codec_type"`
	Width        int    `json:"width"`
	Height       int    `json:"height"`
	NbFrames     string `json:"nb_frames"`
	AvgFrameRate string `json:"avg_frame_rate"`
	RFrameRate   string `json:"r_frame_rate"`
	Duration     string `json:"duration"`
}

// parseProbe extracts stream info from ffprobe's JSON output.
// Containers like wmv often omit nb_frames, in which case the count is
// derived from duration and frame rate.
func parseProbe(data string) (types.StreamInfo, error) {
	var out probeOutput
	if err := json.Unmarshal([]byte(data), &out); err != nil {
		return types.StreamInfo{}, fmt.Errorf("decode ffprobe output: %w", err)
	}

	var stream *probeStream
	for i := range out.Streams {
		if out.Streams[i].CodecType == "video" {
			stream = &out.Streams[i]
			break
		}
	}
	if stream == nil {
		return types.StreamInfo{}, ErrNoVideoStream
	}

	fps := parseRate(stream.AvgFrameRate)
	if fps == 0 {
		fps = parseRate(stream.RFrameRate)
	}

	info := types.StreamInfo{FPS: fps, Width: stream.Width, Height: stream.Height}
	if n, err := strconv.Atoi(stream.NbFrames); err == nil && n > 0 {
		info.FrameCount = n
		return info, nil
	}

	duration := parseFloat(stream.Duration)
	if duration == 0 {
		duration = parseFloat(out.Format.Duration)
	}
	info.FrameCount = int(math.Round(duration * fps))
	return info, nil
}

// parseRate parses ffprobe rationals like "30000/1001"
func parseRate(s string) float64 {
	num, den, ok := strings.Cut(s, "/")
	if !ok {
		return parseFloat(s)
	}
	n, d := parseFloat(num), parseFloat(den)
	if d == 0 {
		return 0
	}
	return n / d
}

func parseFloat(s string) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0
	}
	return f
}
