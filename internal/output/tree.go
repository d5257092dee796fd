// Package output manages the summary tree that mirrors an input video directory.
package output

import (
	"errors"
	"fmt"
	"image"
	"image/png"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

const (
	// ManifestName is the file holding the accepted keyframe indices of one video
	ManifestName = "keyframes.txt"
	// Suffix is appended to the input directory to form the default output root
	Suffix = "_summaries"
)

var (
	// ErrResetDeclined is returned by Reset when the confirmation callback refuses
	ErrResetDeclined = errors.New("output root reset declined")
	// ErrContainsInput is returned by Guard when resetting the output root would delete the input
	ErrContainsInput = errors.New("output root contains the input directory")
)

// ConfirmFunc is asked before an existing output root is deleted
type ConfirmFunc func(root string) bool

// Tree is an output root whose subdirectories mirror an input root
type Tree struct {
	Root    string
	confirm ConfirmFunc
}

// NewTree creates a Tree rooted at root. confirm may be nil, in which case an
// existing root is replaced without asking.
func NewTree(root string, confirm ConfirmFunc) *Tree {
	return &Tree{Root: root, confirm: confirm}
}

// DefaultRoot returns "<input>_summaries"
func DefaultRoot(input string) string {
	return strings.TrimRight(filepath.Clean(input), string(filepath.Separator)) + Suffix
}

// Guard refuses an output root that is the input directory or one of its
// ancestors. An output root nested inside the input is allowed.
func (t *Tree) Guard(input string) error {
	out, err := filepath.Abs(t.Root)
	if err != nil {
		return err
	}
	in, err := filepath.Abs(input)
	if err != nil {
		return err
	}
	rel, err := filepath.Rel(out, in)
	if err != nil {
		// different volumes
		return nil
	}
	if rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return fmt.Errorf("%w: %s contains %s", ErrContainsInput, t.Root, input)
	}
	return nil
}

// Reset deletes the output root if it exists, clearing read-only permissions
// first, and recreates it empty. There is no rollback.
func (t *Tree) Reset() error {
	if _, err := os.Lstat(t.Root); err == nil {
		if t.confirm != nil && !t.confirm(t.Root) {
			return ErrResetDeclined
		}
		if err := makeWritable(t.Root); err != nil {
			return fmt.Errorf("grant write permission on %s: %w", t.Root, err)
		}
		if err := os.RemoveAll(t.Root); err != nil {
			return fmt.Errorf("remove %s: %w", t.Root, err)
		}
	} else if !errors.Is(err, fs.ErrNotExist) {
		return err
	}

	if err := os.MkdirAll(t.Root, 0755); err != nil {
		return fmt.Errorf("create output root %s: %w", t.Root, err)
	}
	return nil
}

// makeWritable adds owner write and execute permission to every directory
// under root so RemoveAll can unlink their entries
func makeWritable(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || !d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		if mode := info.Mode().Perm(); mode&0700 != 0700 {
			return os.Chmod(path, mode|0700)
		}
		return nil
	})
}

// Dir creates and returns the subdirectory for a video key, its path
// relative to the input root without extension
func (t *Tree) Dir(key string) (string, error) {
	key = filepath.Clean(key)
	if filepath.IsAbs(key) || key == ".." || strings.HasPrefix(key, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path %q is not inside the input root", key)
	}
	dir := filepath.Join(t.Root, key)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create %s: %w", dir, err)
	}
	return dir, nil
}

// WriteManifest writes the indices to keyframes.txt in dir, each followed by a comma
func WriteManifest(dir string, indices []int) error {
	var b strings.Builder
	for _, idx := range indices {
		b.WriteString(strconv.Itoa(idx))
		b.WriteByte(',')
	}
	if err := os.WriteFile(filepath.Join(dir, ManifestName), []byte(b.String()), 0644); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	return nil
}

// ReadManifest parses a keyframes.txt file
func ReadManifest(path string) ([]int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var out []int
	for _, field := range strings.Split(strings.TrimSpace(string(data)), ",") {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		idx, err := strconv.Atoi(field)
		if err != nil {
			return nil, fmt.Errorf("parse manifest %s: %w", path, err)
		}
		out = append(out, idx)
	}
	return out, nil
}

// SnapshotName returns the image file name for a keyframe index
func SnapshotName(index int) string {
	return fmt.Sprintf("frame_%04d.png", index)
}

// WriteSnapshot saves img as a PNG named after index in dir
func WriteSnapshot(dir string, index int, img image.Image) error {
	path := filepath.Join(dir, SnapshotName(index))
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create snapshot: %w", err)
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return fmt.Errorf("encode snapshot %s: %w", path, err)
	}
	return f.Close()
}
