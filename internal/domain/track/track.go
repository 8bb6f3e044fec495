// Package track provides the Track domain entity.
package track

import (
	"path/filepath"
	"strings"
)

// Track describes one entry of the local track list.
// Tracks are created when the media index is loaded and never mutated.
type Track struct {
	Locator string `yaml:"locator" json:"locator"` // Source locator (file path or URI)
	Title   string `yaml:"title" json:"title"`
	Album   string `yaml:"album" json:"album"`
	Artist  string `yaml:"artist" json:"artist"`
}

// Same reports whether both tracks refer to the same source.
// Identity is the locator alone.
func (t Track) Same(other Track) bool {
	return t.Locator == other.Locator
}

// DisplayTitle returns the title, falling back to the locator's base name.
func (t Track) DisplayTitle() string {
	if strings.TrimSpace(t.Title) != "" {
		return t.Title
	}
	if t.Locator == "" {
		return ""
	}
	base := filepath.Base(t.Locator)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// Ext returns the lower-cased extension of the locator, including the dot.
func (t Track) Ext() string {
	return strings.ToLower(filepath.Ext(t.Locator))
}
