package commands

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/opencode-ai/opencode-remote/internal/config"
	"github.com/opencode-ai/opencode-remote/internal/event"
	"github.com/opencode-ai/opencode-remote/internal/logging"
	"github.com/opencode-ai/opencode-remote/internal/notify"
	"github.com/opencode-ai/opencode-remote/internal/registry"
	"github.com/opencode-ai/opencode-remote/internal/server"
	"github.com/opencode-ai/opencode-remote/internal/state"
	"github.com/opencode-ai/opencode-remote/internal/stream"
	"github.com/opencode-ai/opencode-remote/internal/supervisor"
)

var (
	servePort    int
	serveAuto    bool
	serveServers []string
	exitOnIdle   bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the connection engine with its local control API",
	Long: `Start the connection engine. It connects to the configured OpenCode
servers, keeps their session lists in sync and exposes a local HTTP API
plus an SSE feed for frontends.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 7654, "Control API port")
	serveCmd.Flags().BoolVar(&serveAuto, "auto-connect", true, "Connect servers marked autoConnect at startup")
	serveCmd.Flags().StringSliceVar(&serveServers, "server", nil, "Additionally connect these servers (id, name or URL)")
	serveCmd.Flags().BoolVar(&exitOnIdle, "exit-on-idle", false, "Exit once the last server is disconnected")
}

func runServe(cmd *cobra.Command, args []string) error {
	paths := config.GetPaths()
	if err := paths.EnsurePaths(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	settings := config.NewFileSettings(paths.SettingsPath())
	if err := settings.Watch(ctx); err != nil {
		logging.Warn().Err(err).Msg("settings file watch unavailable")
	}

	bus := event.NewBus()
	defer bus.Close()

	store := state.NewStore(bus)
	reg := registry.New(bus)
	servers := config.NewStore(paths.ServersPath())

	sup := supervisor.New(supervisor.Options{
		Dialer:   func(cfg config.ServerConfig) supervisor.Conn { return stream.Dial(cfg) },
		Settings: settings,
		Store:    store,
		Registry: reg,
		Notifier: notify.Multi{notify.LogNotifier{}, notify.BusNotifier{Bus: bus}},
	})
	defer sup.Close()

	serverConfig := server.DefaultConfig()
	serverConfig.Port = servePort
	srv := server.New(serverConfig, sup, store, reg, bus, servers)

	serveErr := make(chan error, 1)
	go func() {
		logging.Info().Int("port", servePort).Msg("control API listening")
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	connectStartupServers(sup, servers)

	// A nil channel never fires, so without --exit-on-idle only signals or
	// a server error end the select.
	var idle <-chan struct{}
	if exitOnIdle {
		idle = sup.Done()
	}

	select {
	case <-ctx.Done():
		logging.Info().Msg("shutting down")
	case err := <-serveErr:
		return err
	case <-idle:
		logging.Info().Msg("last server disconnected, exiting")
	}

	sup.DisconnectAll()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logging.Warn().Err(err).Msg("control API shutdown")
	}
	return nil
}

// connectStartupServers connects the autoConnect servers plus any passed
// via --server. Failures are logged; serve keeps running so the control
// API can retry them later.
func connectStartupServers(sup *supervisor.Supervisor, servers *config.Store) {
	configs, err := servers.List()
	if err != nil {
		logging.Warn().Err(err).Msg("cannot read server list")
		configs = nil
	}

	seen := make(map[string]bool)
	var startup []config.ServerConfig
	if serveAuto {
		for _, cfg := range configs {
			if cfg.AutoConnect {
				startup = append(startup, cfg)
				seen[cfg.ID] = true
			}
		}
	}
	for _, ref := range serveServers {
		cfg, err := servers.Resolve(ref)
		if err != nil {
			logging.Warn().Str("server", ref).Err(err).Msg("unknown server, skipping")
			continue
		}
		if !seen[cfg.ID] {
			startup = append(startup, cfg)
			seen[cfg.ID] = true
		}
	}

	for _, cfg := range startup {
		if err := sup.Connect(cfg); err != nil {
			logging.Warn().Str("server", cfg.DisplayName()).Err(err).Msg("startup connect failed")
		}
	}
}
