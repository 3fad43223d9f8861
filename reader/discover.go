package reader

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Discover expands paths into the list of input files. Directories are
// walked, recursively when asked; names starting with '_' or '.' are
// ignored, matching the usual batch output markers such as _SUCCESS.
func Discover(paths []string, recursive bool) ([]string, error) {
	var files []string
	seen := make(map[string]struct{})
	add := func(p string) {
		if _, ok := seen[p]; ok {
			return
		}
		seen[p] = struct{}{}
		files = append(files, p)
	}

	for _, root := range paths {
		info, err := os.Stat(root)
		if err != nil {
			return nil, fmt.Errorf("failed to stat input path: %w", err)
		}
		if !info.IsDir() {
			add(root)
			continue
		}
		err = filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if p != root && hidden(d.Name()) {
				if d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
			if d.IsDir() {
				if p != root && !recursive {
					return filepath.SkipDir
				}
				return nil
			}
			add(p)
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to walk input directory %s: %w", root, err)
		}
	}

	sort.Strings(files)
	return files, nil
}

func hidden(name string) bool {
	return strings.HasPrefix(name, "_") || strings.HasPrefix(name, ".")
}

// PlanSplits packs whole files into splits. A split is closed once it holds
// at least minBytes and the next file would push it past maxBytes. Files are
// never divided, so all records of one file stay with one worker.
func PlanSplits(files []string, minBytes, maxBytes int64) ([]Split, error) {
	var (
		splits []Split
		cur    Split
	)
	flush := func() {
		if len(cur.Files) == 0 {
			return
		}
		cur.ID = len(splits)
		splits = append(splits, cur)
		cur = Split{}
	}

	for _, f := range files {
		info, err := os.Stat(f)
		if err != nil {
			return nil, fmt.Errorf("failed to stat input file: %w", err)
		}
		size := info.Size()
		if len(cur.Files) > 0 && cur.Bytes >= minBytes && (maxBytes <= 0 || cur.Bytes+size > maxBytes) {
			flush()
		}
		cur.Files = append(cur.Files, f)
		cur.Bytes += size
	}
	flush()
	return splits, nil
}

// SplitsFromGroups turns an explicit file grouping into splits.
func SplitsFromGroups(groups [][]string) ([]Split, error) {
	splits := make([]Split, 0, len(groups))
	for _, g := range groups {
		if len(g) == 0 {
			continue
		}
		s := Split{ID: len(splits)}
		for _, f := range g {
			info, err := os.Stat(f)
			if err != nil {
				return nil, fmt.Errorf("failed to stat split file: %w", err)
			}
			s.Files = append(s.Files, f)
			s.Bytes += info.Size()
		}
		splits = append(splits, s)
	}
	return splits, nil
}
