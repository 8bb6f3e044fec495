package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apiconnect "github.com/osa030/bgplayer/internal/api/connect"
)

func TestPrintCommand(t *testing.T) {
	var buf bytes.Buffer
	err := printCommand(&buf, &apiconnect.CommandResponse{
		Success: true,
		Message: "Paused",
		Status: &apiconnect.StatusMessage{
			State:          "paused",
			Index:          1,
			Length:         3,
			PausedBy:       "user",
			ResumePosition: 61500,
			Track:          &apiconnect.TrackMessage{Locator: "/m/b.mp3", Title: "B", Artist: "X"},
		},
	})
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "Paused")
	assert.Contains(t, out, "Paused by: user (at 1m1s)")
	assert.Contains(t, out, "Track 2/3: B - X")

	err = printCommand(&buf, &apiconnect.CommandResponse{Message: "index out of range"})
	assert.EqualError(t, err, "index out of range")
}

func TestPrintNowPlaying(t *testing.T) {
	var buf bytes.Buffer
	printNowPlaying(&buf, &apiconnect.NowPlayingMessage{
		Title:        "A",
		Artist:       "X",
		State:        "playing",
		Capabilities: []string{"pause", "next"},
		SequenceNo:   7,
	})
	out := buf.String()
	assert.Contains(t, out, "[Sequence: 7]")
	assert.Contains(t, out, "Playing")
	assert.Contains(t, out, "Actions: pause, next")

	buf.Reset()
	printNowPlaying(&buf, &apiconnect.NowPlayingMessage{Cleared: true, SequenceNo: 8})
	assert.Contains(t, buf.String(), "CLEARED")
}

func TestDescribe(t *testing.T) {
	assert.Equal(t, "/m/a.mp3", describe(&apiconnect.TrackMessage{Locator: "/m/a.mp3"}))
	assert.Equal(t, "A", describe(&apiconnect.TrackMessage{Locator: "/m/a.mp3", Title: "A"}))
	assert.Equal(t, "A - X", describe(&apiconnect.TrackMessage{Title: "A", Artist: "X"}))
}

func TestFormatState(t *testing.T) {
	assert.Contains(t, formatState("stopped"), "Stopped")
	assert.Contains(t, formatState("weird"), "weird")
}
