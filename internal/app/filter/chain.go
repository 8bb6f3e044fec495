package filter

import (
	"context"

	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/bgplayer/internal/domain/track"
)

// Rejection records a track refused by a filter.
type Rejection struct {
	Track  track.Track
	Filter string
	Code   string
}

// Chain executes filters in sequence.
type Chain struct {
	filters []Filter
}

// NewChain creates a new filter chain.
func NewChain() *Chain {
	return &Chain{
		filters: make([]Filter, 0),
	}
}

// Add adds a filter to the chain.
func (c *Chain) Add(f Filter) {
	c.filters = append(c.filters, f)
}

// Execute runs all filters in sequence.
// Returns immediately if any filter rejects the track.
func (c *Chain) Execute(ctx context.Context, t track.Track, admitted []track.Track) (Result, string) {
	for _, f := range c.filters {
		result := f.Check(ctx, t, admitted)
		if !result.Accepted {
			return result, f.Name()
		}
	}
	return Accept(), ""
}

// Apply admits tracks in order and returns the admitted tracks along with
// the rejections. Playlist order is preserved.
func (c *Chain) Apply(ctx context.Context, tracks []track.Track) ([]track.Track, []Rejection) {
	admitted := make([]track.Track, 0, len(tracks))
	var rejected []Rejection
	for _, t := range tracks {
		result, name := c.Execute(ctx, t, admitted)
		if !result.Accepted {
			zlog.Info().Msgf("track rejected by filter: locator=%s filter=%s reason=%s", t.Locator, name, result.Code)
			rejected = append(rejected, Rejection{Track: t, Filter: name, Code: result.Code})
			continue
		}
		admitted = append(admitted, t)
	}
	return admitted, rejected
}

// Filters returns all filters in the chain.
func (c *Chain) Filters() []Filter {
	return c.filters
}
