// Package dataset supplies (style, content) training pairs: it lists image
// files, decodes and crops them, shuffles and batches pairs, and prefetches
// batches on a background goroutine.
package dataset

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
)

// DefaultExtensions are the image file extensions List accepts.
var DefaultExtensions = []string{".jpg", ".jpeg", ".png", ".bmp", ".webp", ".tif", ".tiff"}

// List returns every file under root whose extension (case-insensitive)
// is in exts, sorted by path.
func List(root string, exts []string) ([]string, error) {
	want := make(map[string]bool, len(exts))
	for _, e := range exts {
		want[strings.ToLower(e)] = true
	}

	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && want[strings.ToLower(filepath.Ext(path))] {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("dataset: list %s: %w", root, err)
	}
	sort.Strings(files)
	return files, nil
}

// Pair is one training example.
type Pair struct {
	Style   string
	Content string
}

// NewPairs zips style and content by position, truncating to the shorter
// list.
func NewPairs(style, content []string) []Pair {
	n := min(len(style), len(content))
	pairs := make([]Pair, n)
	for i := range pairs {
		pairs[i] = Pair{Style: style[i], Content: content[i]}
	}
	return pairs
}
