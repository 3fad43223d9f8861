package writer

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	ManifestFile = "_manifest.json"
	SuccessFile  = "_SUCCESS"
)

// DataFile describes a single day file written by a run.
type DataFile struct {
	Path        string `json:"path"`
	Day         string `json:"day"`
	FileSize    int64  `json:"file_size_in_bytes"`
	RecordCount int64  `json:"record_count"`
}

// Manifest lists the output of one run.
type Manifest struct {
	JobID     string     `json:"job_id"`
	JobName   string     `json:"job_name"`
	Version   string     `json:"version"`
	Format    string     `json:"format"`
	CreatedAt time.Time  `json:"created_at"`
	Files     []DataFile `json:"files"`
}

// NewDataFiles stats each written path and attaches its row count.
func NewDataFiles(paths []string, rows func(path string) int64) ([]DataFile, error) {
	files := make([]DataFile, 0, len(paths))
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, fmt.Errorf("failed to stat day file: %w", err)
		}
		base := filepath.Base(p)
		files = append(files, DataFile{
			Path:        p,
			Day:         strings.TrimSuffix(base, filepath.Ext(base)),
			FileSize:    info.Size(),
			RecordCount: rows(p),
		})
	}
	return files, nil
}

// WriteManifest writes the manifest and the success marker into dir. Both
// names start with an underscore so input discovery skips them.
func WriteManifest(dir string, m Manifest) (string, error) {
	b, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return "", err
	}
	path := filepath.Join(dir, ManifestFile)
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return "", fmt.Errorf("failed to write manifest: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, SuccessFile), nil, 0o644); err != nil {
		return "", fmt.Errorf("failed to write success marker: %w", err)
	}
	return path, nil
}

// ReadManifest loads a manifest written by WriteManifest.
func ReadManifest(dir string) (*Manifest, error) {
	b, err := os.ReadFile(filepath.Join(dir, ManifestFile))
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}
	var m Manifest
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}
	return &m, nil
}
