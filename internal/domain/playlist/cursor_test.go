package playlist

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCursor_NextCyclesBackToStart(t *testing.T) {
	for n := 1; n <= 6; n++ {
		locators := make([]string, n)
		for i := range locators {
			locators[i] = string(rune('a'+i)) + ".mp3"
		}
		p := New("test", testTracks(locators...))

		for start := 0; start < n; start++ {
			c := NewCursor(p)
			require.NoError(t, c.SetIndex(start))

			for i := 0; i < n; i++ {
				_, err := c.Next()
				require.NoError(t, err)
			}
			assert.Equal(t, start, c.Index(), "n=%d start=%d", n, start)
		}
	}
}

func TestCursor_PreviousFromFirstWrapsToLast(t *testing.T) {
	for n := 1; n <= 5; n++ {
		locators := make([]string, n)
		for i := range locators {
			locators[i] = string(rune('a'+i)) + ".mp3"
		}
		c := NewCursor(New("test", testTracks(locators...)))
		require.NoError(t, c.SetIndex(0))

		tr, err := c.Previous()
		require.NoError(t, err)
		assert.Equal(t, n-1, c.Index())
		assert.Equal(t, locators[n-1], tr.Locator)
	}
}

func TestCursor_NextSequence(t *testing.T) {
	c := NewCursor(New("test", testTracks("A", "B", "C")))
	require.NoError(t, c.SetIndex(0))

	var got []string
	for i := 0; i < 4; i++ {
		tr, err := c.Next()
		require.NoError(t, err)
		got = append(got, tr.Locator)
	}
	assert.Equal(t, []string{"B", "C", "A", "B"}, got)
}

func TestCursor_UnsetMoves(t *testing.T) {
	p := New("test", testTracks("A", "B", "C"))

	c := NewCursor(p)
	tr, err := c.Next()
	require.NoError(t, err)
	assert.Equal(t, "A", tr.Locator)

	c = NewCursor(p)
	tr, err = c.Previous()
	require.NoError(t, err)
	assert.Equal(t, "C", tr.Locator)
}

func TestCursor_SetIndex(t *testing.T) {
	tests := []struct {
		name    string
		index   int
		wantErr error
	}{
		{name: "first", index: 0},
		{name: "last", index: 2},
		{name: "negative", index: -1, wantErr: ErrIndexOutOfRange},
		{name: "past end", index: 3, wantErr: ErrIndexOutOfRange},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewCursor(New("test", testTracks("A", "B", "C")))
			err := c.SetIndex(tt.index)
			if tt.wantErr != nil {
				assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
				assert.Equal(t, Unset, c.Index(), "failed SetIndex must not move the cursor")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.index, c.Index())
		})
	}
}

func TestCursor_Current(t *testing.T) {
	c := NewCursor(New("test", testTracks("A", "B")))

	_, ok := c.Current()
	assert.False(t, ok, "unset cursor has no current track")

	require.NoError(t, c.SetIndex(1))
	tr, ok := c.Current()
	assert.True(t, ok)
	assert.Equal(t, "B", tr.Locator)

	c.Reset()
	_, ok = c.Current()
	assert.False(t, ok)
}

func TestCursor_EmptyPlaylist(t *testing.T) {
	c := NewCursor(New("empty", nil))

	_, err := c.Next()
	assert.True(t, errors.Is(err, ErrEmptyPlaylist))

	_, err = c.Previous()
	assert.True(t, errors.Is(err, ErrEmptyPlaylist))

	assert.True(t, errors.Is(c.SetIndex(0), ErrEmptyPlaylist))

	_, ok := c.Current()
	assert.False(t, ok)
	assert.Equal(t, Unset, c.Index())
}
