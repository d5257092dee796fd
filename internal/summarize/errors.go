package summarize

import (
	"errors"
	"fmt"
)

var (
	// ErrInputMissing means the input root does not exist or is not a directory
	ErrInputMissing = errors.New("input directory not found")
	// ErrNoVideos means the input root holds no recognized video files
	ErrNoVideos = errors.New("no videos found")
)

// IsDiscoveryError reports whether err came from scanning the input root.
// Such runs end before the output root is touched.
func IsDiscoveryError(err error) bool {
	return errors.Is(err, ErrInputMissing) || errors.Is(err, ErrNoVideos)
}

// Stage names a step of the per-video pipeline
type Stage string

const (
	StageProbe    Stage = "probe"
	StageResample Stage = "resample"
	StageSelect   Stage = "select"
	StageRescale  Stage = "rescale"
	StageFilter   Stage = "filter"
	StageWrite    Stage = "write"
)

// StageError is a failure of one video at one stage
type StageError struct {
	Stage Stage
	Video string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Video, e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

func stageErr(stage Stage, video string, err error) error {
	return &StageError{Stage: stage, Video: video, Err: err}
}
