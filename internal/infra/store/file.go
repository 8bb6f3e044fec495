package store

import (
	"context"
	"os"
	"path/filepath"
	"sync"

	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"

	"github.com/osa030/bgplayer/internal/domain/track"
)

// FileConfig represents the file backend settings.
type FileConfig struct {
	Path string `mapstructure:"path" default:"./data/state.yaml" validate:"required"`
}

// document is the persisted YAML layout.
type document struct {
	Playlist []track.Track `yaml:"playlist"`
	Index    *int          `yaml:"index,omitempty"`
}

// File stores state in a single YAML document. Every write replaces the
// file atomically.
type File struct {
	path string
	mu   sync.Mutex
}

// NewFile creates a file store at path.
func NewFile(path string) *File {
	return &File{path: path}
}

func (f *File) StorePlaylist(_ context.Context, tracks []track.Track) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, err := f.read()
	if err != nil {
		return err
	}
	doc.Playlist = copyTracks(tracks)
	return f.write(doc)
}

func (f *File) LoadPlaylist(context.Context) ([]track.Track, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, err := f.read()
	if err != nil {
		return nil, err
	}
	return doc.Playlist, nil
}

func (f *File) StoreIndex(_ context.Context, index int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, err := f.read()
	if err != nil {
		return err
	}
	doc.Index = &index
	return f.write(doc)
}

func (f *File) LoadIndex(context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, err := f.read()
	if err != nil {
		return NoIndex, err
	}
	if doc.Index == nil {
		return NoIndex, nil
	}
	return *doc.Index, nil
}

func (f *File) Clear(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := os.Remove(f.path); err != nil && !os.IsNotExist(err) {
		return errors.Wrapf(err, "failed to remove %s", f.path)
	}
	return nil
}

func (f *File) Close() error {
	return nil
}

func (f *File) read() (document, error) {
	var doc document
	data, err := os.ReadFile(f.path)
	if os.IsNotExist(err) {
		return doc, nil
	}
	if err != nil {
		return doc, errors.Wrapf(err, "failed to read %s", f.path)
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return doc, errors.Wrapf(err, "failed to parse %s", f.path)
	}
	return doc, nil
}

func (f *File) write(doc document) error {
	data, err := yaml.Marshal(doc)
	if err != nil {
		return errors.Wrap(err, "failed to encode state")
	}

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrapf(err, "failed to create %s", dir)
	}
	tmp, err := os.CreateTemp(dir, ".state-*.yaml")
	if err != nil {
		return errors.Wrap(err, "failed to create temp file")
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return errors.Wrap(err, "failed to write temp file")
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return errors.Wrap(err, "failed to sync temp file")
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "failed to close temp file")
	}
	if err := os.Rename(tmp.Name(), f.path); err != nil {
		return errors.Wrapf(err, "failed to replace %s", f.path)
	}
	return nil
}
