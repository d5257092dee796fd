package video

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"

	ffmpeg "github.com/u2takey/ffmpeg-go"
)

const defaultBinary = "ffmpeg"

// command compiles an ffmpeg-go stream into a cancellable process
func command(ctx context.Context, binary string, s *ffmpeg.Stream) *exec.Cmd {
	if binary == "" {
		binary = defaultBinary
	}
	return exec.CommandContext(ctx, binary, s.GetArgs()...)
}

// run executes the stream, sending stdout to out and folding stderr into the error
func run(ctx context.Context, binary string, s *ffmpeg.Stream, out io.Writer) error {
	cmd := command(ctx, binary, s)
	var stderr bytes.Buffer
	cmd.Stdout = out
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("ffmpeg failed: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return nil
}
