package summarize

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/melody-ding/go-vidsumm/internal/keyframe"
	"github.com/melody-ding/go-vidsumm/internal/output"
	"github.com/melody-ding/go-vidsumm/internal/types"
)

type fakeVideo struct {
	frames      int
	resampled   int
	picks       []int
	dark        map[int]bool
	corrupt     map[int]bool
	resampleErr error
	selectErr   error
}

// fakePipeline stands in for ffmpeg and the selector. The resampled copy is
// tracked by remembering which source was last resampled.
type fakePipeline struct {
	t       *testing.T
	videos  map[string]fakeVideo
	current string
	decoded []int
}

func (p *fakePipeline) Resample(_ context.Context, src, dst string) error {
	v := p.videos[src]
	if v.resampleErr != nil {
		return v.resampleErr
	}
	require.NoError(p.t, os.WriteFile(dst, []byte(src), 0644))
	p.current = src
	return nil
}

func (p *fakePipeline) Probe(_ context.Context, path string) (types.StreamInfo, error) {
	if filepath.Base(path) == resampledName {
		data, err := os.ReadFile(path)
		if err != nil {
			return types.StreamInfo{}, err
		}
		require.Equal(p.t, p.current, string(data), "resampled copy is from another video")
		return types.StreamInfo{FrameCount: p.videos[p.current].resampled, Width: 32, Height: 24}, nil
	}
	v, ok := p.videos[path]
	if !ok {
		return types.StreamInfo{}, fmt.Errorf("unknown video %s", path)
	}
	return types.StreamInfo{FrameCount: v.frames, FPS: 30, Width: 8, Height: 6}, nil
}

func (p *fakePipeline) Select(_ context.Context, path string, penalty types.PenaltyConfig) ([]int, error) {
	require.Equal(p.t, resampledName, filepath.Base(path))
	require.Equal(p.t, types.DefaultPenalty(), penalty)
	v := p.videos[p.current]
	if v.selectErr != nil {
		return nil, v.selectErr
	}
	return v.picks, nil
}

func (p *fakePipeline) FrameAt(_ context.Context, path string, index, width, height int) (*image.RGBA, error) {
	require.NotEqual(p.t, resampledName, filepath.Base(path), "frames must come from the original video")
	v := p.videos[path]
	if index >= v.frames || v.corrupt[index] {
		return nil, fmt.Errorf("cannot decode frame %d", index)
	}
	p.decoded = append(p.decoded, index)

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		c := uint8(60)
		if y%2 == 1 && !v.dark[index] {
			c = 140
		}
		for x := 0; x < width; x++ {
			img.SetRGBA(x, y, color.RGBA{R: c, G: c, B: c, A: 255})
		}
	}
	return img, nil
}

type recordingProgress struct {
	begins []string
	ends   []error
}

func (p *recordingProgress) Begin(i, n int, name string) {
	p.begins = append(p.begins, fmt.Sprintf("%d/%d %s", i, n, name))
}

func (p *recordingProgress) End(err error) { p.ends = append(p.ends, err) }

type harness struct {
	input    string
	outRoot  string
	tempRoot string
	pipeline *fakePipeline
	progress *recordingProgress
}

func newHarness(t *testing.T, videos map[string]fakeVideo) *harness {
	base := t.TempDir()
	h := &harness{
		input:    filepath.Join(base, "videos"),
		tempRoot: filepath.Join(base, "tmp"),
		pipeline: &fakePipeline{t: t, videos: map[string]fakeVideo{}},
		progress: &recordingProgress{},
	}
	h.outRoot = output.DefaultRoot(h.input)
	require.NoError(t, os.MkdirAll(h.tempRoot, 0755))
	require.NoError(t, os.MkdirAll(h.input, 0755))
	for rel, v := range videos {
		touch(t, h.input, rel)
		h.pipeline.videos[filepath.Join(h.input, rel)] = v
	}
	return h
}

func (h *harness) summarizer(opts Options) *Summarizer {
	opts.Penalty = types.DefaultPenalty()
	opts.LumaThreshold = keyframe.DefaultLumaThreshold
	opts.TempDir = h.tempRoot
	return New(h.pipeline, h.pipeline, h.pipeline, output.NewTree(h.outRoot, nil), h.progress,
		slog.New(slog.NewTextHandler(io.Discard, nil)), opts)
}

func (h *harness) manifest(t *testing.T, key ...string) []int {
	t.Helper()
	got, err := output.ReadManifest(filepath.Join(append([]string{h.outRoot}, append(key, output.ManifestName)...)...))
	require.NoError(t, err)
	return got
}

func TestRunIdentityRescale(t *testing.T) {
	h := newHarness(t, map[string]fakeVideo{
		"ad.mp4": {frames: 300, resampled: 300, picks: []int{0, 150, 299}},
	})

	report, err := h.summarizer(Options{}).Run(context.Background(), h.input)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Succeeded)
	assert.Equal(t, []int{0, 150, 299}, h.manifest(t, "ad"))
}

func TestRunRescalesToOriginalIndexSpace(t *testing.T) {
	h := newHarness(t, map[string]fakeVideo{
		"ad.mp4": {frames: 300, resampled: 150, picks: []int{0, 75, 149}},
	})

	_, err := h.summarizer(Options{}).Run(context.Background(), h.input)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 150, 298}, h.manifest(t, "ad"))
	assert.Equal(t, []int{0, 150, 298}, h.pipeline.decoded)
}

func TestRunFiltersMonochromeFrames(t *testing.T) {
	h := newHarness(t, map[string]fakeVideo{
		"ad.mp4": {frames: 300, resampled: 300, picks: []int{0, 75, 200}, dark: map[int]bool{0: true}},
	})

	report, err := h.summarizer(Options{}).Run(context.Background(), h.input)
	require.NoError(t, err)
	assert.Equal(t, []int{75, 200}, h.manifest(t, "ad"))
	assert.Equal(t, 2, report.Kept)
	assert.Equal(t, 1, report.Dropped)
}

func TestRunSnapshots(t *testing.T) {
	videos := map[string]fakeVideo{
		"ad.mp4": {frames: 300, resampled: 300, picks: []int{0, 75}, dark: map[int]bool{0: true}},
	}

	t.Run("disabled", func(t *testing.T) {
		h := newHarness(t, videos)
		_, err := h.summarizer(Options{}).Run(context.Background(), h.input)
		require.NoError(t, err)

		entries, err := os.ReadDir(filepath.Join(h.outRoot, "ad"))
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, output.ManifestName, entries[0].Name())
	})

	t.Run("enabled", func(t *testing.T) {
		h := newHarness(t, videos)
		_, err := h.summarizer(Options{WriteFrames: true}).Run(context.Background(), h.input)
		require.NoError(t, err)

		dir := filepath.Join(h.outRoot, "ad")
		assert.FileExists(t, filepath.Join(dir, "frame_0075.png"))
		assert.NoFileExists(t, filepath.Join(dir, "frame_0000.png"))
		entries, err := os.ReadDir(dir)
		require.NoError(t, err)
		assert.Len(t, entries, 2)
	})
}

func TestRunWritesNPY(t *testing.T) {
	h := newHarness(t, map[string]fakeVideo{
		"ad.mp4": {frames: 10, resampled: 10, picks: []int{1, 2}},
	})
	_, err := h.summarizer(Options{WriteNPY: true}).Run(context.Background(), h.input)
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(h.outRoot, "ad", NPYName))
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("\x93NUMPY")))
	assert.Contains(t, string(data), "'shape': (2, 6, 8, 3)")
}

func TestRunMirrorsInputTree(t *testing.T) {
	h := newHarness(t, map[string]fakeVideo{
		filepath.Join("a", "b", "c.mp4"): {frames: 100, resampled: 50, picks: []int{10}},
		filepath.Join("a", "d.wmv"):      {frames: 100, resampled: 100, picks: []int{5}},
	})

	report, err := h.summarizer(Options{}).Run(context.Background(), h.input)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Succeeded)
	assert.Equal(t, []int{20}, h.manifest(t, "a", "b", "c"))
	assert.Equal(t, []int{5}, h.manifest(t, "a", "d"))
	assert.Equal(t, []string{
		"1/2 " + filepath.Join("a", "b", "c.mp4"),
		"2/2 " + filepath.Join("a", "d.wmv"),
	}, h.progress.begins)
	assert.Equal(t, []error{nil, nil}, h.progress.ends)
}

func TestRunIsolatesVideoFailures(t *testing.T) {
	h := newHarness(t, map[string]fakeVideo{
		"a.mp4": {frames: 100, resampled: 100, picks: []int{1}, resampleErr: errors.New("cannot transcode")},
		"b.mp4": {frames: 100, resampled: 0, picks: []int{1}},
		"c.mp4": {frames: 100, resampled: 100, picks: []int{1}, selectErr: errors.New("selector crashed")},
		"d.mp4": {frames: 100, resampled: 100, picks: []int{3}},
	})

	report, err := h.summarizer(Options{}).Run(context.Background(), h.input)
	require.NoError(t, err)
	assert.Equal(t, 4, report.Total)
	assert.Equal(t, 1, report.Succeeded)
	require.Len(t, report.Failures, 3)

	stages := make([]Stage, len(report.Failures))
	for i, f := range report.Failures {
		var se *StageError
		require.ErrorAs(t, f, &se)
		stages[i] = se.Stage
	}
	assert.Equal(t, []Stage{StageResample, StageRescale, StageSelect}, stages)
	assert.ErrorIs(t, report.Failures[1], keyframe.ErrZeroFrames)

	assert.Equal(t, []int{3}, h.manifest(t, "d"))
	assert.NoDirExists(t, filepath.Join(h.outRoot, "a"))
	assert.Len(t, h.progress.ends, 4)
	assert.Error(t, h.progress.ends[0])
}

func TestRunFailFast(t *testing.T) {
	h := newHarness(t, map[string]fakeVideo{
		"a.mp4": {frames: 100, resampled: 100, picks: []int{1}, resampleErr: errors.New("cannot transcode")},
		"b.mp4": {frames: 100, resampled: 100, picks: []int{3}},
	})

	report, err := h.summarizer(Options{FailFast: true}).Run(context.Background(), h.input)
	require.Error(t, err)
	assert.Equal(t, 0, report.Succeeded)
	assert.NoDirExists(t, filepath.Join(h.outRoot, "b"))
}

func TestRunFilterDecodeFailure(t *testing.T) {
	h := newHarness(t, map[string]fakeVideo{
		"a.mp4": {frames: 100, resampled: 100, picks: []int{1, 50}, corrupt: map[int]bool{50: true}},
		"b.mp4": {frames: 100, resampled: 100, picks: []int{2}},
	})

	report, err := h.summarizer(Options{}).Run(context.Background(), h.input)
	require.NoError(t, err)
	require.Len(t, report.Failures, 1)

	var se *StageError
	require.ErrorAs(t, report.Failures[0], &se)
	assert.Equal(t, StageFilter, se.Stage)
	assert.Equal(t, "a.mp4", se.Video)
	assert.NoFileExists(t, filepath.Join(h.outRoot, "a", output.ManifestName))
	assert.Equal(t, []int{2}, h.manifest(t, "b"))
}

func TestRunDiscoveryErrorLeavesOutputRoot(t *testing.T) {
	h := newHarness(t, nil)
	touch(t, h.input, "readme.txt")
	touch(t, h.outRoot, "previous.txt")

	report, err := h.summarizer(Options{}).Run(context.Background(), h.input)
	assert.Nil(t, report)
	assert.ErrorIs(t, err, ErrNoVideos)
	assert.FileExists(t, filepath.Join(h.outRoot, "previous.txt"))

	_, err = h.summarizer(Options{}).Run(context.Background(), filepath.Join(h.input, "missing"))
	assert.ErrorIs(t, err, ErrInputMissing)
}

func TestRunRegeneratesOutputRoot(t *testing.T) {
	h := newHarness(t, map[string]fakeVideo{
		"ad.mp4": {frames: 300, resampled: 300, picks: []int{10, 20}},
	})
	touch(t, h.outRoot, filepath.Join("stale", output.ManifestName), filepath.Join("ad", "frame_0001.png"))

	_, err := h.summarizer(Options{}).Run(context.Background(), h.input)
	require.NoError(t, err)
	first := h.manifest(t, "ad")

	_, err = h.summarizer(Options{}).Run(context.Background(), h.input)
	require.NoError(t, err)

	assert.Equal(t, first, h.manifest(t, "ad"))
	assert.NoDirExists(t, filepath.Join(h.outRoot, "stale"))
	assert.NoFileExists(t, filepath.Join(h.outRoot, "ad", "frame_0001.png"))
}

func TestRunRemovesTempDir(t *testing.T) {
	h := newHarness(t, map[string]fakeVideo{
		"a.mp4": {frames: 10, resampled: 10, picks: []int{1}},
		"b.mp4": {frames: 10, resampled: 10, picks: []int{1}, selectErr: errors.New("boom")},
	})

	_, err := h.summarizer(Options{}).Run(context.Background(), h.input)
	require.NoError(t, err)

	entries, err := os.ReadDir(h.tempRoot)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestRunCancelled(t *testing.T) {
	h := newHarness(t, map[string]fakeVideo{
		"a.mp4": {frames: 10, resampled: 10, picks: []int{1}},
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := h.summarizer(Options{}).Run(ctx, h.input)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, report.Succeeded)
}

func TestRunInvalidPenalty(t *testing.T) {
	h := newHarness(t, map[string]fakeVideo{"a.mp4": {frames: 10, resampled: 10}})
	s := h.summarizer(Options{})
	s.opts.Penalty.Downsampling = 0

	_, err := s.Run(context.Background(), h.input)
	assert.Error(t, err)
	assert.NoDirExists(t, h.outRoot)
}

func TestManifestIndicesWithinFrameCount(t *testing.T) {
	h := newHarness(t, map[string]fakeVideo{
		"short.mp4": {frames: 7, resampled: 1000, picks: []int{0, 1, 500, 998, 999}},
		"long.mp4":  {frames: 1000, resampled: 7, picks: []int{0, 3, 6}},
	})

	_, err := h.summarizer(Options{}).Run(context.Background(), h.input)
	require.NoError(t, err)

	for key, frames := range map[string]int{"short": 7, "long": 1000} {
		got := h.manifest(t, key)
		require.NotEmpty(t, got)
		assert.NoError(t, types.KeyframeSet(got).Validate(frames))
	}
}

func TestRunRefusesOutputRootContainingInput(t *testing.T) {
	tests := []struct {
		name string
		root func(h *harness) string
	}{
		{name: "same as input", root: func(h *harness) string { return h.input }},
		{name: "parent of input", root: func(h *harness) string { return filepath.Dir(h.input) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, map[string]fakeVideo{
				filepath.Join("a", "ad.mp4"): {frames: 10, resampled: 10, picks: []int{0}},
			})
			h.outRoot = tt.root(h)

			report, err := h.summarizer(Options{}).Run(context.Background(), h.input)
			assert.ErrorIs(t, err, output.ErrContainsInput)
			assert.Nil(t, report)
			assert.FileExists(t, filepath.Join(h.input, "a", "ad.mp4"))
			assert.Empty(t, h.progress.begins)
		})
	}
}

func TestRunAllowsOutputRootInsideInput(t *testing.T) {
	h := newHarness(t, map[string]fakeVideo{
		"ad.mp4": {frames: 10, resampled: 10, picks: []int{0, 5}},
	})
	h.outRoot = filepath.Join(h.input, "summaries")

	_, err := h.summarizer(Options{}).Run(context.Background(), h.input)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 5}, h.manifest(t, "ad"))
	assert.FileExists(t, filepath.Join(h.input, "ad.mp4"))
}

func TestRunWarnsOnSharedOutputDirectory(t *testing.T) {
	h := newHarness(t, map[string]fakeVideo{
		"a.mp4": {frames: 10, resampled: 10, picks: []int{1}},
		"a.wmv": {frames: 10, resampled: 10, picks: []int{2}},
		"b.mp4": {frames: 10, resampled: 10, picks: []int{3}},
	})
	var logs bytes.Buffer
	s := h.summarizer(Options{})
	s.logger = slog.New(slog.NewTextHandler(&logs, nil))

	report, err := s.Run(context.Background(), h.input)
	require.NoError(t, err)
	assert.Equal(t, 3, report.Succeeded)
	assert.Equal(t, 1, strings.Count(logs.String(), "videos share an output directory"))
	assert.Contains(t, logs.String(), "first=a.mp4 second=a.wmv")
	// discovery is sorted, so a.wmv is written last
	assert.Equal(t, []int{2}, h.manifest(t, "a"))
}
