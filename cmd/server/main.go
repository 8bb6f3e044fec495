// Package main provides the server entry point.
package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/cockroachdb/errors"
	"github.com/joho/godotenv"
	zlog "github.com/rs/zerolog/log"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	apiconnect "github.com/osa030/bgplayer/internal/api/connect"
	"github.com/osa030/bgplayer/internal/api/ws"
	"github.com/osa030/bgplayer/internal/app/filter"
	"github.com/osa030/bgplayer/internal/app/session"
	"github.com/osa030/bgplayer/internal/infra/config"
	"github.com/osa030/bgplayer/internal/infra/lastfm"
	"github.com/osa030/bgplayer/internal/infra/logger"
	"github.com/osa030/bgplayer/internal/infra/render"
	"github.com/osa030/bgplayer/internal/infra/store"
)

var (
	app        = kingpin.New("bgplayer-server", "Background audio playback server")
	configPath = app.Flag("config", "Path to config file").Default("config/server.yaml").String()
	verbose    = app.Flag("verbose", "Enable verbose (DEBUG) logging").Short('v').Bool()
	logfile    = app.Flag("logfile", "Path to log file (default: stdout)").String()
	ephemeral  = app.Flag("ephemeral", "Keep state in memory only").Bool()

	// list-filters command
	listFiltersCmd = app.Command("list-filters", "List available filters and exit")
)

func init() {
	// start command (default)
	app.Command("start", "Start the server (default)").Default()
}

func main() {
	// Load .env file if it exists (errors are ignored)
	_ = godotenv.Load()

	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	if command == listFiltersCmd.FullCommand() {
		printFilters()
		return
	}

	loggerConfig := logger.Config{Output: "stdout", Level: "info"}
	if *verbose {
		loggerConfig.Level = "debug"
	}
	if *logfile != "" {
		loggerConfig.Output = "file"
		loggerConfig.File = *logfile
	}
	logCloser, err := logger.Init(loggerConfig)
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}

	zlog.Info().Msgf("Loading config from %s", *configPath)
	cfg, err := config.Load(*configPath)
	if err != nil {
		zlog.Fatal().Msgf("Failed to load config: %v", err)
	}
	if *ephemeral {
		cfg.Store = config.StoreConfig{Type: store.TypeMemory}
	}

	// run keeps deferred cleanup on every exit path.
	err = run(cfg)
	if err != nil {
		zlog.Error().Msgf("Server error: %v", err)
	}
	_ = logCloser.Close()
	if err != nil {
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	ctx := context.Background()

	st, err := store.Open(ctx, store.Config{Type: cfg.Store.Type, Settings: cfg.Store.Settings})
	if err != nil {
		return errors.Wrap(err, "failed to open store")
	}

	engine, err := render.NewEngine(render.Config{
		SampleRate: cfg.Render.SampleRate,
		Buffer:     cfg.RenderBuffer(),
	})
	if err != nil {
		_ = st.Close()
		return errors.Wrap(err, "failed to initialise renderer")
	}

	deps := session.Dependencies{Store: st, Renderer: engine}
	if cfg.Notification.LastFM.APIKey != "" {
		client, err := lastfm.New(lastfm.Config{
			APIKey:  cfg.Notification.LastFM.APIKey,
			Timeout: cfg.LastFMTimeout(),
		})
		if err != nil {
			_ = st.Close()
			return errors.Wrap(err, "failed to create Last.fm client")
		}
		deps.Resolver = client
	} else {
		zlog.Info().Msg("Last.fm API key not configured, artwork lookup disabled")
	}

	sessionMgr, err := session.NewManager(ctx, cfg, deps)
	if err != nil {
		return errors.Wrap(err, "failed to create session manager")
	}
	defer sessionMgr.Close()

	hub := ws.NewHub()
	defer hub.Close()
	hubID := sessionMgr.Subscribe(hub)
	defer sessionMgr.Unsubscribe(hubID)

	remoteService := apiconnect.NewRemoteControlService(sessionMgr)
	bridgeService := apiconnect.NewPlatformBridgeService(sessionMgr)

	router := ws.NewServer(hub, sessionMgr, cfg.Server.WebSocketPath).Router()
	router.Mount(remoteService.Handler())
	router.Mount(bridgeService.Handler(cfg.Bridge.Token))

	server := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           h2c.NewHandler(router, &http2.Server{}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErrCh := make(chan error, 1)
	go func() {
		zlog.Info().Msgf("Starting server: addr=%s", cfg.Server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrCh <- err
		}
	}()

	if err := sessionMgr.Start(ctx); err != nil {
		return errors.Wrap(err, "failed to start session")
	}

	executeHooks(cfg.Server.Hooks.OnStarted, "on_started")
	defer executeHooks(cfg.Server.Hooks.OnStopped, "on_stopped")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	var runErr error
	select {
	case sig := <-sigCh:
		zlog.Info().Msgf("Received %s, shutting down...", sig)
	case <-sessionMgr.Done():
		if err := sessionMgr.Err(); err != nil {
			zlog.Error().Err(err).Msg("Session ended with an error, shutting down...")
			runErr = err
		} else {
			zlog.Info().Msg("Session ended, shutting down...")
		}
	case err := <-serverErrCh:
		runErr = errors.Wrap(err, "server error")
	}

	// Close the session first so open streams end.
	sessionMgr.Close()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		zlog.Error().Msgf("Failed to shutdown server: %v", err)
	}

	zlog.Info().Msg("Server stopped")
	return runErr
}

// printFilters prints available filters.
func printFilters() {
	printFiltersTo(os.Stdout)
}

func printFiltersTo(w io.Writer) {
	fmt.Fprintln(w, "Available Filters:")
	for _, f := range registeredFilters() {
		codes := strings.Join(f.ReturnCodes(), ", ")
		fmt.Fprintf(w, "  %-26s - %s [codes: %s]\n", f.Name(), f.Description(), codes)
	}
}

func registeredFilters() []filter.Filter {
	registry := filter.GetRegistered()
	out := make([]filter.Filter, 0, len(registry))
	for _, factory := range registry {
		out = append(out, factory())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

// executeHooks runs a list of shell commands.
func executeHooks(hooks []string, stage string) {
	if len(hooks) == 0 {
		return
	}

	zlog.Info().Msgf("Executing %s hooks (%d commands)", stage, len(hooks))
	for _, hook := range hooks {
		zlog.Info().Msgf("Executing hook: %s", hook)
		// sh -c allows redirection and pipes
		cmd := exec.Command("sh", "-c", hook)
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr
		if err := cmd.Run(); err != nil {
			zlog.Error().Err(err).Msgf("Failed to execute hook: %s", hook)
		}
	}
}
