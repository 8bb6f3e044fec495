// Package main provides the remote control CLI entry point.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/cockroachdb/errors"
	"github.com/joho/godotenv"

	apiconnect "github.com/osa030/bgplayer/internal/api/connect"
)

var (
	app     = kingpin.New("bgplayer-remotecli", "Background audio player remote control")
	server  = app.Flag("server", "Server address").Default("http://localhost:8080").Envar("BGPLAYER_SERVER").String()
	timeout = app.Flag("timeout", "Request timeout").Default("5s").Duration()

	playCmd     = app.Command("play", "Start or resume playback")
	pauseCmd    = app.Command("pause", "Pause playback")
	nextCmd     = app.Command("next", "Skip to the next track").Alias("skip")
	previousCmd = app.Command("previous", "Go back one track").Alias("prev")
	stopCmd     = app.Command("stop", "Stop playback")

	startCmd   = app.Command("start", "Play the track at an index")
	startIndex = startCmd.Arg("index", "Playlist index (0-based)").Required().Int()

	statusCmd = app.Command("status", "Show player status")
	tracksCmd = app.Command("tracks", "List the playlist").Alias("list")
	watchCmd  = app.Command("watch", "Follow the now-playing surface")
)

func main() {
	// Load .env file if it exists (errors are ignored)
	_ = godotenv.Load()

	command := kingpin.MustParse(app.Parse(os.Args[1:]))
	client := apiconnect.NewRemoteControlClient(apiconnect.DefaultHTTPClient, *server)

	if command == watchCmd.FullCommand() {
		watch(client)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	var err error
	switch command {
	case playCmd.FullCommand(), pauseCmd.FullCommand(), nextCmd.FullCommand(),
		previousCmd.FullCommand(), stopCmd.FullCommand():
		err = runCommand(ctx, client, command)
	case startCmd.FullCommand():
		err = startAt(ctx, client, *startIndex)
	case statusCmd.FullCommand():
		err = status(ctx, client)
	case tracksCmd.FullCommand():
		err = tracks(ctx, client)
	}
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
}

func runCommand(ctx context.Context, client *apiconnect.RemoteControlClient, name string) error {
	resp, err := client.Command(ctx, name)
	if err != nil {
		return err
	}
	return printCommand(os.Stdout, resp)
}

func startAt(ctx context.Context, client *apiconnect.RemoteControlClient, index int) error {
	resp, err := client.StartAt(ctx, index)
	if err != nil {
		return err
	}
	return printCommand(os.Stdout, resp)
}

func printCommand(w io.Writer, resp *apiconnect.CommandResponse) error {
	if !resp.Success {
		return errors.New(resp.Message)
	}
	fmt.Fprintf(w, "✅ %s\n", resp.Message)
	if resp.Status != nil {
		printStatus(w, resp.Status)
	}
	return nil
}

func status(ctx context.Context, client *apiconnect.RemoteControlClient) error {
	st, err := client.GetStatus(ctx)
	if err != nil {
		return err
	}
	fmt.Println("\n=== PLAYER STATUS ===")
	printStatus(os.Stdout, st)
	fmt.Printf("Session: %s (%s)\n", st.SessionID, st.Phase)
	if st.Rejected > 0 {
		fmt.Printf("Rejected at load: %d\n", st.Rejected)
	}
	return nil
}

func printStatus(w io.Writer, st *apiconnect.StatusMessage) {
	fmt.Fprintf(w, "State: %s\n", formatState(st.State))
	if st.PausedBy != "" {
		fmt.Fprintf(w, "Paused by: %s (at %s)\n", st.PausedBy, formatPosition(st.ResumePosition))
	}
	if st.Ducked {
		fmt.Fprintln(w, "Output: ducked")
	}
	if st.Track != nil {
		fmt.Fprintf(w, "Track %d/%d: %s\n", st.Index+1, st.Length, describe(st.Track))
	} else {
		fmt.Fprintf(w, "Playlist: %s (%d tracks)\n", st.Playlist, st.Length)
	}
}

func tracks(ctx context.Context, client *apiconnect.RemoteControlClient) error {
	resp, err := client.ListTracks(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("Playlist: %s\n", resp.Name)
	for _, t := range resp.Tracks {
		fmt.Printf("  %3d. %s\n", t.Index, describe(t))
	}
	return nil
}

func watch(client *apiconnect.RemoteControlClient) {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	stream, err := client.WatchNowPlaying(ctx)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	defer stream.Close()

	fmt.Println("Watching now playing. Press Ctrl+C to exit.")
	for stream.Receive() {
		printNowPlaying(os.Stdout, stream.Msg())
	}
	if err := stream.Err(); err != nil && ctx.Err() == nil {
		fmt.Printf("Stream error: %v\n", err)
	}
}

func printNowPlaying(w io.Writer, n *apiconnect.NowPlayingMessage) {
	fmt.Fprintf(w, "\n[Sequence: %d] ", n.SequenceNo)
	if n.Cleared {
		fmt.Fprintln(w, "=== CLEARED ===")
		return
	}
	fmt.Fprintf(w, "=== %s ===\n", formatState(n.State))
	fmt.Fprintf(w, "  Title: %s\n", n.Title)
	if n.Artist != "" {
		fmt.Fprintf(w, "  Artist: %s\n", n.Artist)
	}
	if n.Album != "" {
		fmt.Fprintf(w, "  Album: %s\n", n.Album)
	}
	if n.ArtworkRef != "" {
		fmt.Fprintf(w, "  Artwork: %s\n", n.ArtworkRef)
	}
	fmt.Fprintf(w, "  Actions: %s\n", strings.Join(n.Capabilities, ", "))
}

func describe(t *apiconnect.TrackMessage) string {
	title := t.Title
	if title == "" {
		title = t.Locator
	}
	if t.Artist != "" {
		return title + " - " + t.Artist
	}
	return title
}

func formatState(s string) string {
	switch s {
	case "playing":
		return "▶️  Playing"
	case "paused":
		return "⏸  Paused"
	case "preparing":
		return "⏳ Preparing"
	case "stopped":
		return "⏹  Stopped"
	case "idle":
		return "💤 Idle"
	default:
		return "❓ " + s
	}
}

func formatPosition(ms int) string {
	return (time.Duration(ms) * time.Millisecond).Truncate(time.Second).String()
}
