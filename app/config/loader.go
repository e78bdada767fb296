// Package config loads the YAML source definitions that tell the aggregator
// which upstream feeds and headline queries exist, per category.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

const defaultUpdateIntervalMinutes = 60

// Loader reads source configuration files from a directory.
type Loader struct {
	sourcesDir string
}

func NewLoader(sourcesDir string) *Loader {
	return &Loader{sourcesDir: sourcesDir}
}

// LoadAll loads every .yaml/.yml file in the sources directory. A missing
// directory yields an empty list, not an error; invalid files fail the load.
func (l *Loader) LoadAll() ([]SourceConfig, error) {
	if _, err := os.Stat(l.sourcesDir); os.IsNotExist(err) {
		return nil, nil
	}

	files, err := filepath.Glob(filepath.Join(l.sourcesDir, "*.yaml"))
	if err != nil {
		return nil, fmt.Errorf("failed to find YAML files: %w", err)
	}

	ymlFiles, err := filepath.Glob(filepath.Join(l.sourcesDir, "*.yml"))
	if err != nil {
		return nil, fmt.Errorf("failed to find YML files: %w", err)
	}
	files = append(files, ymlFiles...)

	seen := make(map[string]string)
	var all []SourceConfig

	for _, file := range files {
		sources, err := l.loadFile(file)
		if err != nil {
			return nil, fmt.Errorf("error loading %s: %w", file, err)
		}

		for _, src := range sources {
			if err := l.validate(src); err != nil {
				return nil, fmt.Errorf("invalid source in %s: %w", file, err)
			}
			if prev, ok := seen[src.ID]; ok {
				return nil, fmt.Errorf("duplicate source id %q in %s (first declared in %s)", src.ID, file, prev)
			}
			seen[src.ID] = file
			all = append(all, src)
		}
	}

	return all, nil
}

func (l *Loader) loadFile(path string) ([]SourceConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	var file SourcesFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	for i := range file.Sources {
		l.setDefaults(&file.Sources[i])
	}

	return file.Sources, nil
}

func (l *Loader) setDefaults(src *SourceConfig) {
	if src.UpdateIntervalMinutes == 0 {
		src.UpdateIntervalMinutes = defaultUpdateIntervalMinutes
	}
	if src.Name == "" {
		src.Name = src.ID
	}
}

func (l *Loader) validate(src SourceConfig) error {
	if src.ID == "" {
		return fmt.Errorf("source id is required")
	}
	if src.Category == "" {
		return fmt.Errorf("source category is required (id: %s)", src.ID)
	}

	switch src.Kind {
	case "rss":
		if src.URL == "" {
			return fmt.Errorf("url is required for rss sources (id: %s)", src.ID)
		}
	case "headline_api":
		// URL is optional; the adapter derives the query from the category.
	default:
		return fmt.Errorf("unknown source kind %q (id: %s)", src.Kind, src.ID)
	}

	if src.UpdateIntervalMinutes < 0 {
		return fmt.Errorf("update interval must be non-negative (id: %s)", src.ID)
	}

	return nil
}
