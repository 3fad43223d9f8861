package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// SplitAssignment pins a list of input files to a single worker. Files of
// one assignment are processed in the listed order.
type SplitAssignment struct {
	Name  string   `yaml:"name"`
	Files []string `yaml:"files"`
}

// SplitManifest is the full explicit split layout.
type SplitManifest struct {
	Splits []SplitAssignment `yaml:"splits"`
}

// LoadSplitManifest loads a split manifest from the given path.
func LoadSplitManifest(path string) (*SplitManifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read split manifest: %w", err)
	}
	var m SplitManifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse split manifest: %w", err)
	}

	seen := make(map[string]string)
	for i, s := range m.Splits {
		if len(s.Files) == 0 {
			return nil, fmt.Errorf("splits[%d] has no files", i)
		}
		for _, f := range s.Files {
			if prev, ok := seen[f]; ok {
				return nil, fmt.Errorf("file %s assigned to both %q and %q", f, prev, s.Name)
			}
			seen[f] = s.Name
		}
	}
	return &m, nil
}

// Groups returns the file lists of every split in manifest order.
func (m *SplitManifest) Groups() [][]string {
	groups := make([][]string, 0, len(m.Splits))
	for _, s := range m.Splits {
		groups = append(groups, s.Files)
	}
	return groups
}
