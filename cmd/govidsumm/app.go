package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
	"github.com/urfave/cli/v3"

	"github.com/melody-ding/go-vidsumm/internal/config"
	"github.com/melody-ding/go-vidsumm/internal/keyframe"
	"github.com/melody-ding/go-vidsumm/internal/output"
	"github.com/melody-ding/go-vidsumm/internal/summarize"
	"github.com/melody-ding/go-vidsumm/internal/types"
	"github.com/melody-ding/go-vidsumm/internal/video"
)

func newCommand(stdin io.Reader, stdout, stderr io.Writer) *cli.Command {
	return &cli.Command{
		Name:      "govidsumm",
		Usage:     "Summarize every video in a directory tree as a set of keyframes",
		ArgsUsage: "<input_dir>",
		Writer:    stdout,
		ErrWriter: stderr,
		Flags: []cli.Flag{
			&cli.FloatFlag{Name: "l1", Value: 1, Usage: "penalty for representativeness"},
			&cli.FloatFlag{Name: "l2", Value: 5, Usage: "penalty for summary length"},
			&cli.IntFlag{Name: "dsf", Value: 1, Usage: "temporal downsampling factor"},
			&cli.BoolFlag{Name: "write-frames", Aliases: []string{"wf"}, Usage: "also write keyframes as .png"},
			&cli.BoolFlag{Name: "write-npy", Usage: "also write keyframes as a uint8 keyframes.npy array"},
			&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "output root (default <input_dir>_summaries)"},
			&cli.BoolFlag{Name: "force", Aliases: []string{"y"}, Usage: "replace an existing output root without asking"},
			&cli.BoolFlag{Name: "fail-fast", Usage: "stop at the first video that fails"},
			&cli.BoolFlag{Name: "progress-bar", Usage: "show a progress bar instead of progress lines"},
			&cli.StringFlag{Name: "log-level", Usage: "debug, info, warn or error (overrides GOVIDSUMM_LOG_LEVEL)"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return run(ctx, cmd, stdin, stdout, stderr)
		},
	}
}

func run(ctx context.Context, cmd *cli.Command, stdin io.Reader, stdout, stderr io.Writer) error {
	if cmd.NArg() != 1 {
		return errors.New("exactly one input directory is required")
	}
	input := cmd.Args().First()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	levelName := cfg.LogLevel
	if cmd.IsSet("log-level") {
		levelName = cmd.String("log-level")
	}
	level, err := config.ParseLevel(levelName)
	if err != nil {
		return err
	}
	logger := newLogger(stderr, level).With("run_id", uuid.NewString())

	penalty := types.PenaltyConfig{
		Representativeness: cmd.Float("l1"),
		Length:             cmd.Float("l2"),
		Downsampling:       int(cmd.Int("dsf")),
	}
	if err := penalty.Validate(); err != nil {
		return err
	}

	outRoot := cmd.String("output")
	if outRoot == "" {
		outRoot = output.DefaultRoot(input)
	}
	var confirm output.ConfirmFunc
	if !cmd.Bool("force") && isTerminal(stdin) {
		confirm = promptConfirm(stdin, stderr)
	}

	var progress summarize.Progress = summarize.NewLineProgress(stdout)
	if cmd.Bool("progress-bar") {
		progress = summarize.NewBarProgress(stderr)
	}

	source := video.NewSource(cfg.FFmpegLogLevel)
	s := summarize.New(
		source,
		video.NewResampler(cfg.TargetWidth, cfg.TargetHeight, cfg.FFmpegLogLevel),
		keyframe.NewAdaptive(source),
		output.NewTree(outRoot, confirm),
		progress,
		logger,
		summarize.Options{
			Penalty:       penalty,
			Extensions:    cfg.Extensions,
			LumaThreshold: cfg.LumaThreshold,
			WriteFrames:   cmd.Bool("write-frames"),
			WriteNPY:      cmd.Bool("write-npy"),
			FailFast:      cmd.Bool("fail-fast"),
			TempDir:       cfg.TempDir,
		},
	)

	logger.Info("starting summarization", "input", input, "output", outRoot,
		"l1", penalty.Representativeness, "l2", penalty.Length, "dsf", penalty.Downsampling)

	report, err := s.Run(ctx, input)
	switch {
	case summarize.IsDiscoveryError(err):
		logger.Warn("nothing to summarize", "error", err)
		return nil
	case errors.Is(err, output.ErrResetDeclined):
		logger.Warn("output root left unchanged", "output", outRoot)
		return nil
	case err != nil && report == nil:
		return err
	}

	logger.Info("summarization finished",
		"videos", report.Total,
		"succeeded", report.Succeeded,
		"failed", len(report.Failures),
		"kept", report.Kept,
		"dropped", report.Dropped,
	)
	if err != nil {
		return err
	}
	if len(report.Failures) > 0 {
		return fmt.Errorf("%d of %d videos failed", len(report.Failures), report.Total)
	}
	return nil
}

func newLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(
		tint.NewHandler(w, &tint.Options{
			Level:      level,
			TimeFormat: "15:04:05",
			NoColor:    !isTerminal(w),
		}),
	)
}

func isTerminal(v any) bool {
	f, ok := v.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func promptConfirm(stdin io.Reader, w io.Writer) output.ConfirmFunc {
	reader := bufio.NewReader(stdin)
	return func(root string) bool {
		fmt.Fprintf(w, "Output directory %s exists and will be deleted. Continue? [y/N] ", root)
		answer, err := reader.ReadString('\n')
		if err != nil && answer == "" {
			return false
		}
		switch strings.ToLower(strings.TrimSpace(answer)) {
		case "y", "yes":
			return true
		}
		return false
	}
}
