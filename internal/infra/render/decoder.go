// Package render plays tracks through the audio output using beep.
package render

import (
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/faiface/beep"
	"github.com/faiface/beep/flac"
	"github.com/faiface/beep/mp3"
	"github.com/faiface/beep/wav"
)

// Errors
var (
	ErrUnsupportedFormat  = errors.New("unsupported audio format")
	ErrUnsupportedLocator = errors.New("unsupported locator")
)

// SupportedFormats returns list of supported audio formats
func SupportedFormats() []string {
	return []string{".mp3", ".wav", ".flac"}
}

// IsSupported checks if a file format is supported
func IsSupported(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, format := range SupportedFormats() {
		if ext == format {
			return true
		}
	}
	return false
}

// Decode decodes an audio stream based on the extension of path.
func Decode(r io.ReadSeekCloser, path string) (beep.StreamSeekCloser, beep.Format, error) {
	ext := strings.ToLower(filepath.Ext(path))

	switch ext {
	case ".mp3":
		return mp3.Decode(r)
	case ".wav":
		return wav.Decode(r)
	case ".flac":
		return flac.Decode(r)
	default:
		return nil, beep.Format{}, errors.Wrapf(ErrUnsupportedFormat, "%q", ext)
	}
}

// LocalPath maps a locator to a file path. Plain paths and file:// URIs
// are accepted.
func LocalPath(locator string) (string, error) {
	u, err := url.Parse(locator)
	if err != nil || len(u.Scheme) <= 1 {
		// Plain path (a one-letter scheme is a Windows drive)
		return locator, nil
	}
	if u.Scheme != "file" {
		return "", errors.Wrapf(ErrUnsupportedLocator, "%s", locator)
	}
	return u.Path, nil
}

func openLocator(locator string) (beep.StreamSeekCloser, beep.Format, error) {
	path, err := LocalPath(locator)
	if err != nil {
		return nil, beep.Format{}, err
	}
	if !IsSupported(path) {
		return nil, beep.Format{}, errors.Wrapf(ErrUnsupportedFormat, "%s", locator)
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, beep.Format{}, errors.Wrapf(err, "open %s", path)
	}
	streamer, format, err := Decode(file, path)
	if err != nil {
		file.Close()
		return nil, beep.Format{}, errors.Wrapf(err, "decode %s", path)
	}
	return streamer, format, nil
}
