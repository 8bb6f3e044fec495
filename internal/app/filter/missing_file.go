package filter

import (
	"context"
	"net/url"
	"os"

	"github.com/osa030/bgplayer/internal/domain/track"
)

// MissingFileFilter rejects local tracks whose file no longer exists.
// Locators with a URL scheme are not checked.
type MissingFileFilter struct {
	stat func(name string) (os.FileInfo, error)
}

func (f *MissingFileFilter) Name() string {
	return "missing_file_filter"
}

func (f *MissingFileFilter) Description() string {
	return "Rejects local tracks whose file is missing or is a directory"
}

func (f *MissingFileFilter) ReturnCodes() []string {
	return []string{"missing_file"}
}

func (f *MissingFileFilter) ValidateConfig(map[string]any) error {
	// No configuration needed
	return nil
}

func (f *MissingFileFilter) Check(_ context.Context, t track.Track, _ []track.Track) Result {
	if u, err := url.Parse(t.Locator); err == nil && len(u.Scheme) > 1 {
		return Accept()
	}
	stat := f.stat
	if stat == nil {
		stat = os.Stat
	}
	info, err := stat(t.Locator)
	if err != nil || info.IsDir() {
		return Reject("missing_file")
	}
	return Accept()
}

func init() {
	Register("missing_file_filter", func() Filter {
		return &MissingFileFilter{}
	})
}
