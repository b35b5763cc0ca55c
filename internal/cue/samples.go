package cue

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

var (
	ErrMissingCategory = errors.New("sample directory does not exist")
	ErrEmptyCategory   = errors.New("no samples in category")
)

// ConfigError is a fatal startup problem with the sample library.
type ConfigError struct {
	Category Category
	Path     string
	Err      error
}

func (e *ConfigError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("category %s: %v", e.Category, e.Err)
	}
	return fmt.Sprintf("category %s (%s): %v", e.Category, e.Path, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// Sample is one playable file. Path is its identity.
type Sample struct {
	Category Category `json:"category"`
	Name     string   `json:"name"`
	Path     string   `json:"path"`
}

// SampleStore holds the candidate samples for every category.
type SampleStore map[Category][]Sample

// SampleExtensions are the file types LoadSamples picks up.
var SampleExtensions = []string{".wav", ".mp3"}

// LoadSamples reads <dir>/<category>/ for every category. A missing directory
// or a category without any samples is a *ConfigError.
func LoadSamples(dir string) (SampleStore, error) {
	store := make(SampleStore, numCategories)

	for _, cat := range Categories() {
		catDir := filepath.Join(dir, cat.String())

		entries, err := os.ReadDir(catDir)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return nil, &ConfigError{Category: cat, Path: catDir, Err: ErrMissingCategory}
			}
			return nil, &ConfigError{Category: cat, Path: catDir, Err: err}
		}

		var samples []Sample
		for _, e := range entries {
			if e.IsDir() || !hasSampleExt(e.Name()) {
				continue
			}
			samples = append(samples, Sample{
				Category: cat,
				Name:     e.Name(),
				Path:     filepath.Join(catDir, e.Name()),
			})
		}
		sort.Slice(samples, func(i, j int) bool { return samples[i].Name < samples[j].Name })

		store[cat] = samples
	}

	if err := store.Validate(); err != nil {
		return nil, err
	}
	return store, nil
}

// Validate checks that every category has at least one sample.
func (s SampleStore) Validate() error {
	for _, cat := range Categories() {
		if len(s[cat]) == 0 {
			return &ConfigError{Category: cat, Err: ErrEmptyCategory}
		}
	}
	return nil
}

// All returns every sample, ordered by category.
func (s SampleStore) All() []Sample {
	var out []Sample
	for _, cat := range Categories() {
		out = append(out, s[cat]...)
	}
	return out
}

func hasSampleExt(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, e := range SampleExtensions {
		if ext == e {
			return true
		}
	}
	return false
}
