package summarize

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/melody-ding/go-vidsumm/internal/types"
)

// DefaultExtensions are the container suffixes treated as videos
var DefaultExtensions = []string{".mp4", ".wmv"}

// Discover walks root and returns every file whose name ends in one of exts,
// sorted by relative path. Matching is by suffix only.
func Discover(root string, exts []string) ([]types.VideoAsset, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInputMissing, root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", ErrInputMissing, root)
	}

	var assets []types.VideoAsset
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !hasSuffix(d.Name(), exts) {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		assets = append(assets, types.VideoAsset{RelPath: rel, Path: path})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", root, err)
	}
	if len(assets) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoVideos, root)
	}

	sort.Slice(assets, func(i, j int) bool { return assets[i].RelPath < assets[j].RelPath })
	return assets, nil
}

func hasSuffix(name string, exts []string) bool {
	for _, ext := range exts {
		if strings.HasSuffix(name, ext) {
			return true
		}
	}
	return false
}
