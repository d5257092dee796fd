// Package keyframe selects, rescales and filters summary keyframes.
package keyframe

import (
	"context"

	"github.com/melody-ding/go-vidsumm/internal/types"
)

// Selector picks keyframes from a video. Returned indices refer to the
// frames of the video at path and must be distinct.
type Selector interface {
	Select(ctx context.Context, path string, penalty types.PenaltyConfig) ([]int, error)
}
