package store

import (
	"context"
	"sync"

	"github.com/osa030/bgplayer/internal/domain/track"
)

// Memory keeps state in process memory.
type Memory struct {
	mu       sync.Mutex
	playlist []track.Track
	index    int
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{index: NoIndex}
}

func (m *Memory) StorePlaylist(_ context.Context, tracks []track.Track) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.playlist = copyTracks(tracks)
	return nil
}

func (m *Memory) LoadPlaylist(context.Context) ([]track.Track, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return copyTracks(m.playlist), nil
}

func (m *Memory) StoreIndex(_ context.Context, index int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.index = index
	return nil
}

func (m *Memory) LoadIndex(context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.index, nil
}

func (m *Memory) Clear(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.playlist = nil
	m.index = NoIndex
	return nil
}

func (m *Memory) Close() error {
	return nil
}
