// Package summarize drives keyframe summarization over a tree of videos.
package summarize

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/melody-ding/go-vidsumm/internal/keyframe"
	"github.com/melody-ding/go-vidsumm/internal/numpy"
	"github.com/melody-ding/go-vidsumm/internal/output"
	"github.com/melody-ding/go-vidsumm/internal/types"
)

// resampledName is the single temp file reused by every video of a run.
// Reuse is only safe because videos are processed one at a time.
const resampledName = "resized.mp4"

// NPYName is the optional array export of the accepted frames
const NPYName = "keyframes.npy"

// Media probes videos and decodes single frames
type Media interface {
	Probe(ctx context.Context, path string) (types.StreamInfo, error)
	keyframe.FrameDecoder
}

// Resampler writes a reduced resolution copy of src to dst
type Resampler interface {
	Resample(ctx context.Context, src, dst string) error
}

// Options configure a run
type Options struct {
	Penalty       types.PenaltyConfig
	Extensions    []string
	LumaThreshold float64
	WriteFrames   bool
	WriteNPY      bool
	FailFast      bool
	// TempDir is the parent of the run's scratch directory; empty means os.TempDir
	TempDir string
}

// Report summarizes a finished run
type Report struct {
	Total     int
	Succeeded int
	Kept      int
	Dropped   int
	Failures  []error
}

// Summarizer runs the per video pipeline: resample, select, rescale, filter, write
type Summarizer struct {
	media     Media
	resampler Resampler
	selector  keyframe.Selector
	filter    keyframe.LumaFilter
	tree      *output.Tree
	progress  Progress
	logger    *slog.Logger
	opts      Options
}

func New(media Media, resampler Resampler, selector keyframe.Selector, tree *output.Tree, progress Progress, logger *slog.Logger, opts Options) *Summarizer {
	if len(opts.Extensions) == 0 {
		opts.Extensions = DefaultExtensions
	}
	return &Summarizer{
		media:     media,
		resampler: resampler,
		selector:  selector,
		filter:    keyframe.NewLumaFilter(opts.LumaThreshold),
		tree:      tree,
		progress:  progress,
		logger:    logger,
		opts:      opts,
	}
}

// Run summarizes every video under inputRoot. Discovery errors are returned
// before the output root is reset. Per video failures are logged and
// collected in the report unless FailFast is set.
func (s *Summarizer) Run(ctx context.Context, inputRoot string) (*Report, error) {
	if err := s.opts.Penalty.Validate(); err != nil {
		return nil, err
	}

	assets, err := Discover(inputRoot, s.opts.Extensions)
	if err != nil {
		return nil, err
	}
	s.logger.Info("discovered videos", "count", len(assets), "input", inputRoot)
	s.warnSharedKeys(assets)

	if err := s.tree.Guard(inputRoot); err != nil {
		return nil, err
	}
	if err := s.tree.Reset(); err != nil {
		return nil, fmt.Errorf("reset output root: %w", err)
	}

	tmp, err := os.MkdirTemp(s.opts.TempDir, "govidsumm-*")
	if err != nil {
		return nil, fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(tmp)
	resampled := filepath.Join(tmp, resampledName)

	report := &Report{Total: len(assets)}
	for i, asset := range assets {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		s.progress.Begin(i+1, len(assets), asset.RelPath)
		kept, dropped, err := s.summarize(ctx, asset, resampled)
		s.progress.End(err)

		if err != nil {
			s.logger.Error("video failed", "video", asset.RelPath, "error", err)
			report.Failures = append(report.Failures, err)
			if s.opts.FailFast {
				return report, err
			}
			continue
		}
		report.Succeeded++
		report.Kept += kept
		report.Dropped += dropped
	}
	return report, nil
}

// warnSharedKeys logs videos that map to the same output subdirectory, such
// as a.mp4 and a.wmv. The later one overwrites the earlier summary.
func (s *Summarizer) warnSharedKeys(assets []types.VideoAsset) {
	seen := make(map[string]string, len(assets))
	for _, a := range assets {
		key := a.Key()
		if prev, ok := seen[key]; ok {
			s.logger.Warn("videos share an output directory, later summary overwrites earlier",
				"output", key, "first", prev, "second", a.RelPath)
			continue
		}
		seen[key] = a.RelPath
	}
}

func (s *Summarizer) summarize(ctx context.Context, asset types.VideoAsset, resampledPath string) (int, int, error) {
	log := s.logger.With("video", asset.RelPath)

	info, err := s.media.Probe(ctx, asset.Path)
	if err != nil {
		return 0, 0, stageErr(StageProbe, asset.RelPath, err)
	}
	asset.FrameCount, asset.FPS = info.FrameCount, info.FPS
	asset.Width, asset.Height = info.Width, info.Height

	if err := s.resampler.Resample(ctx, asset.Path, resampledPath); err != nil {
		return 0, 0, stageErr(StageResample, asset.RelPath, err)
	}
	rinfo, err := s.media.Probe(ctx, resampledPath)
	if err != nil {
		return 0, 0, stageErr(StageResample, asset.RelPath, err)
	}
	resampled := types.ResampledAsset{
		Path:       resampledPath,
		FrameCount: rinfo.FrameCount,
		Width:      rinfo.Width,
		Height:     rinfo.Height,
	}
	log.Debug("resampled", "frames", asset.FrameCount, "resampled_frames", resampled.FrameCount, "fps", asset.FPS)

	picks, err := s.selector.Select(ctx, resampled.Path, s.opts.Penalty)
	if err != nil {
		return 0, 0, stageErr(StageSelect, asset.RelPath, err)
	}

	rescaled, err := keyframe.Rescale(picks, asset.FrameCount, resampled.FrameCount)
	if err != nil {
		return 0, 0, stageErr(StageRescale, asset.RelPath, err)
	}
	if err := types.KeyframeSet(rescaled).Validate(asset.FrameCount); err != nil {
		return 0, 0, stageErr(StageRescale, asset.RelPath, err)
	}

	frames, dropped, err := s.filter.Apply(ctx, s.media, asset.Path, asset.Width, asset.Height, rescaled)
	if err != nil {
		return 0, 0, stageErr(StageFilter, asset.RelPath, err)
	}

	if err := s.write(asset, frames); err != nil {
		return 0, 0, stageErr(StageWrite, asset.RelPath, err)
	}
	log.Debug("summarized", "selected", len(picks), "kept", len(frames), "dropped", dropped)
	return len(frames), dropped, nil
}

func (s *Summarizer) write(asset types.VideoAsset, frames []keyframe.Frame) error {
	dir, err := s.tree.Dir(asset.Key())
	if err != nil {
		return err
	}

	indices := make([]int, len(frames))
	images := make([]*image.RGBA, len(frames))
	for i, f := range frames {
		indices[i] = f.Index
		images[i] = f.Image
	}
	if err := output.WriteManifest(dir, indices); err != nil {
		return err
	}

	if s.opts.WriteFrames {
		for _, f := range frames {
			if err := output.WriteSnapshot(dir, f.Index, f.Image); err != nil {
				return err
			}
		}
	}
	if s.opts.WriteNPY {
		if err := numpy.WriteFrames(filepath.Join(dir, NPYName), images); err != nil {
			return err
		}
	}
	return nil
}
