// Package main provides the platform bridge CLI entry point. It lets an
// operator or a platform script report telephony, audio route and focus
// signals to the server.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/joho/godotenv"

	apiconnect "github.com/osa030/bgplayer/internal/api/connect"
)

var (
	app     = kingpin.New("bgplayer-bridgecli", "Background audio player platform bridge client")
	server  = app.Flag("server", "Server address").Default("http://localhost:8080").Envar("BGPLAYER_SERVER").String()
	token   = app.Flag("token", "Bridge token (or set BRIDGE_TOKEN env)").Envar("BRIDGE_TOKEN").String()
	timeout = app.Flag("timeout", "Request timeout").Default("5s").Duration()

	callCmd   = app.Command("call", "Report a telephony state")
	callState = callCmd.Arg("state", "idle, ringing or offhook").Required().Enum("idle", "ringing", "offhook", "off_hook")

	routeCmd    = app.Command("route", "Report an audio route change")
	routeChange = routeCmd.Arg("change", "unavailable (noisy) or available").Required().Enum("unavailable", "noisy", "available", "connected")

	focusCmd   = app.Command("focus", "Report an audio focus change")
	focusState = focusCmd.Arg("state", "gain, loss_transient, duck or loss").Required().String()

	denyCmd  = app.Command("deny-focus", "Refuse future focus requests")
	allowCmd = app.Command("allow-focus", "Grant future focus requests")
)

func main() {
	// Load .env file if it exists (errors are ignored)
	_ = godotenv.Load()

	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	if *token == "" {
		fmt.Println("Error: bridge token is required (use --token or BRIDGE_TOKEN env)")
		os.Exit(1)
	}

	client := apiconnect.NewPlatformBridgeClient(apiconnect.DefaultHTTPClient, *server, *token)
	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	var (
		resp *apiconnect.AckResponse
		err  error
	)
	switch command {
	case callCmd.FullCommand():
		resp, err = client.ReportCallState(ctx, *callState)
	case routeCmd.FullCommand():
		resp, err = client.ReportRouteChange(ctx, *routeChange)
	case focusCmd.FullCommand():
		resp, err = client.ReportFocusChange(ctx, *focusState)
	case denyCmd.FullCommand():
		resp, err = client.SetFocusPolicy(ctx, true)
	case allowCmd.FullCommand():
		resp, err = client.SetFocusPolicy(ctx, false)
	}
	os.Exit(report(command, resp, err))
}

// report prints the outcome and returns the exit code.
func report(command string, resp *apiconnect.AckResponse, err error) int {
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return 1
	}
	if !resp.Accepted {
		fmt.Printf("⚠️  %s not applied: %s\n", command, resp.Message)
		return 2
	}
	fmt.Printf("✅ %s delivered at %s\n", command, time.Now().Format(time.TimeOnly))
	return 0
}
