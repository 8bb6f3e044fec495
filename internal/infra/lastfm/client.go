// Package lastfm provides a client for the Last.fm API, used to look up
// cover artwork for the now-playing surface.
package lastfm

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/bgplayer/internal/domain/track"
)

// ErrNoArtwork is returned when Last.fm has no image for the track.
var ErrNoArtwork = errors.New("no artwork found")

// Image sizes in order of preference.
var preferredSizes = []string{"mega", "extralarge", "large", "medium", "small"}

// Client is a Last.fm API client.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client

	// Artwork URL per "artist\x00title" key; empty string caches a miss.
	artworkCache map[string]string
	cacheMu      sync.RWMutex
}

// Config represents Last.fm client configuration.
type Config struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
}

type image struct {
	URL  string `json:"#text"`
	Size string `json:"size"`
}

// getTrackInfoResponse represents the response from track.getInfo API.
type getTrackInfoResponse struct {
	Track struct {
		Name  string `json:"name"`
		Album struct {
			Title string  `json:"title"`
			Image []image `json:"image"`
		} `json:"album"`
	} `json:"track"`
}

// getAlbumInfoResponse represents the response from album.getInfo API.
type getAlbumInfoResponse struct {
	Album struct {
		Name  string  `json:"name"`
		Image []image `json:"image"`
	} `json:"album"`
}

// apiError represents an error response from Last.fm API.
type apiError struct {
	Error   int    `json:"error"`
	Message string `json:"message"`
}

// New creates a new Last.fm client.
func New(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("last.fm API key is required")
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://ws.audioscrobbler.com/2.0/"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &Client{
		apiKey:       cfg.APIKey,
		baseURL:      baseURL,
		httpClient:   &http.Client{Timeout: timeout},
		artworkCache: make(map[string]string),
	}, nil
}

// Artwork returns the cover image URL for t. It tries track.getInfo first
// and falls back to album.getInfo when the track carries an album title.
// Results, including misses, are cached per artist and title.
func (c *Client) Artwork(ctx context.Context, t track.Track) (string, error) {
	if t.Artist == "" || t.Title == "" {
		return "", errors.Wrapf(ErrNoArtwork, "track %s has no artist/title", t.Locator)
	}

	cacheKey := strings.ToLower(t.Artist + "\x00" + t.Title)
	c.cacheMu.RLock()
	if u, ok := c.artworkCache[cacheKey]; ok {
		c.cacheMu.RUnlock()
		zlog.Debug().Msgf("using cached artwork for track: %s - %s", t.Artist, t.Title)
		if u == "" {
			return "", ErrNoArtwork
		}
		return u, nil
	}
	c.cacheMu.RUnlock()

	u, err := c.TrackArtwork(ctx, t.Artist, t.Title)
	if errors.Is(err, ErrNoArtwork) && t.Album != "" {
		u, err = c.AlbumArtwork(ctx, t.Artist, t.Album)
	}
	switch {
	case err == nil:
	case errors.Is(err, ErrNoArtwork):
		// Remember the miss
	default:
		return "", err
	}

	c.cacheMu.Lock()
	c.artworkCache[cacheKey] = u
	c.cacheMu.Unlock()
	zlog.Debug().Msgf("cached artwork for track: %s - %s (%q)", t.Artist, t.Title, u)

	if u == "" {
		return "", ErrNoArtwork
	}
	return u, nil
}

// TrackArtwork retrieves the album image of a track.
// Reference: https://www.last.fm/api/show/track.getInfo
func (c *Client) TrackArtwork(ctx context.Context, artistName, trackName string) (string, error) {
	if trackName == "" || artistName == "" {
		return "", errors.New("track name and artist name are required")
	}

	params := url.Values{}
	params.Set("method", "track.getInfo")
	params.Set("artist", artistName)
	params.Set("track", trackName)
	params.Set("autocorrect", "1")

	var response getTrackInfoResponse
	if err := c.get(ctx, params, &response); err != nil {
		return "", err
	}
	return pickImage(response.Track.Album.Image)
}

// AlbumArtwork retrieves the image of an album.
// Reference: https://www.last.fm/api/show/album.getInfo
func (c *Client) AlbumArtwork(ctx context.Context, artistName, albumName string) (string, error) {
	if albumName == "" || artistName == "" {
		return "", errors.New("album name and artist name are required")
	}

	params := url.Values{}
	params.Set("method", "album.getInfo")
	params.Set("artist", artistName)
	params.Set("album", albumName)
	params.Set("autocorrect", "1")

	var response getAlbumInfoResponse
	if err := c.get(ctx, params, &response); err != nil {
		return "", err
	}
	return pickImage(response.Album.Image)
}

func (c *Client) get(ctx context.Context, params url.Values, out any) error {
	params.Set("api_key", c.apiKey)
	params.Set("format", "json")
	reqURL := c.baseURL + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return errors.Wrap(err, "failed to create request")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrap(err, "failed to send request")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrap(err, "failed to read response body")
	}

	// Check for Last.fm API errors
	var apiErr apiError
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Error != 0 {
		// 6: track/album not found
		if apiErr.Error == 6 {
			return errors.Wrap(ErrNoArtwork, apiErr.Message)
		}
		return errors.Errorf("last.fm API error %d: %s", apiErr.Error, apiErr.Message)
	}
	if resp.StatusCode != http.StatusOK {
		return errors.Errorf("last.fm API status %s", resp.Status)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return errors.Wrap(err, "failed to parse response")
	}
	return nil
}

func pickImage(images []image) (string, error) {
	bySize := make(map[string]string, len(images))
	for _, img := range images {
		if img.URL != "" {
			bySize[img.Size] = img.URL
		}
	}
	for _, size := range preferredSizes {
		if u, ok := bySize[size]; ok {
			return u, nil
		}
	}
	for _, img := range images {
		if img.URL != "" {
			return img.URL, nil
		}
	}
	return "", ErrNoArtwork
}

