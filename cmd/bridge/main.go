// Command bridge runs the chat-to-coding-agent bridge as a long-lived
// HTTP daemon: a webhook endpoint for inbound chat-platform updates,
// an operator observability stream, and the background session_gc /
// format_health maintenance jobs. Flag and shutdown handling are
// grounded on the teacher's cmd/agent runMaster: parse flags, start
// the listener in a goroutine, defer a bounded Shutdown.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/lijiaxing1997/agentbridge/internal/agentsdk"
	"github.com/lijiaxing1997/agentbridge/internal/appinfo"
	"github.com/lijiaxing1997/agentbridge/internal/bridgeconfig"
	"github.com/lijiaxing1997/agentbridge/internal/chatplatform"
	"github.com/lijiaxing1997/agentbridge/internal/clientmanager"
	"github.com/lijiaxing1997/agentbridge/internal/gateway"
	"github.com/lijiaxing1997/agentbridge/internal/observability"
	"github.com/lijiaxing1997/agentbridge/internal/optionsbuilder"
	"github.com/lijiaxing1997/agentbridge/internal/orchestrator"
	"github.com/lijiaxing1997/agentbridge/internal/scheduler"
	"github.com/lijiaxing1997/agentbridge/internal/sessionindex"
	"github.com/lijiaxing1997/agentbridge/internal/sessionrepo"
	"github.com/lijiaxing1997/agentbridge/internal/webhook"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	fs := flag.NewFlagSet("bridge", flag.ExitOnError)
	configPath := fs.String("config", "agentbridge.json", "path to the bridge config file")
	showVersion := fs.Bool("version", false, "print version and exit")
	fs.Parse(args)

	if *showVersion {
		fmt.Println(appinfo.Display())
		return nil
	}

	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	cfg, err := bridgeconfig.LoadConfig(*configPath)
	if err != nil {
		// Configuration errors are fatal at process start (spec.md §7).
		return fmt.Errorf("bridge: load config: %w", err)
	}

	repo, err := sessionrepo.Open(expandHome(cfg.DBPath))
	if err != nil {
		return fmt.Errorf("bridge: open session repo: %w", err)
	}
	defer repo.Close()

	index := sessionindex.New(cfg.ClaudeConfigDir)

	builder := optionsbuilder.New(
		settingsPath(cfg.AgentConfigDir),
		optionsbuilder.PathSandboxValidator{},
		cfg.MCPConfigPath,
		logger,
	)

	var presence clientmanager.PresenceStore
	if strings.TrimSpace(cfg.RedisURL) != "" {
		store, err := clientmanager.NewRedisPresenceStore(cfg.RedisURL, cfg.IdleTimeout())
		if err != nil {
			return fmt.Errorf("bridge: connect redis presence store: %w", err)
		}
		defer store.Close()
		presence = store
	}

	manager := clientmanager.New(agentFactory(cfg), builder, index, repo, presence, logger)
	defer manager.DisconnectAll()

	platform := buildPlatform(cfg, logger)

	orch := orchestrator.New(platform, manager, repo, index, orchestrator.Config{
		ApprovedDirectories: cfg.ApprovedDirectories,
		SkillsDir:           cfg.SkillsDir,
		BotCommands:         []string{"/start", "/help", "/cancel"},
		EditInterval:        cfg.EditInterval(),
		MaxMessageLength:    cfg.MaxMessageLength,
		MediaGroupTimeout:   cfg.MediaGroupTimeout(),
		Logger:              logger,
	})

	hub := observability.NewHub(logger)

	var emailGateway *gateway.EmailGateway
	if gwCfg, err := gateway.LoadGatewayConfig(*configPath); err == nil && gwCfg.Enabled {
		emailGateway = gateway.NewEmailGateway(gwCfg.Email)
	}

	sched, err := scheduler.New(scheduler.Options{
		Repo:           repo,
		Index:          index,
		EmailGateway:   emailGateway,
		OperatorEmails: cfg.OperatorEmails,
		GCHorizonHours: cfg.GCHorizonHours,
		Logger:         logger,
	})
	if err != nil {
		return fmt.Errorf("bridge: build scheduler: %w", err)
	}
	sched.Start()
	defer sched.Stop(context.Background())

	mux := chi.NewRouter()
	mux.Mount("/", webhookRouter(orch, cfg.WebhookSecretToken, logger))
	mux.Get("/observability/stream", hub.Handler())

	srv := &http.Server{Addr: cfg.ListenAddr, Handler: mux}
	ln, err := net.Listen("tcp", srv.Addr)
	if err != nil {
		return fmt.Errorf("bridge: listen on %s: %w", srv.Addr, err)
	}

	serverErr := make(chan error, 1)
	go func() { serverErr <- srv.Serve(ln) }()
	logger.Info("bridge: listening", "addr", srv.Addr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case <-ctx.Done():
		logger.Info("bridge: shutting down")
	case err := <-serverErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("bridge: server failed: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// agentFactory builds the clientmanager.ClientFactory: every Actor
// gets its own agentsdk.SubprocessClient driving a fresh instance of
// the configured coding-agent CLI binary.
func agentFactory(cfg bridgeconfig.Config) clientmanager.ClientFactory {
	return func() agentsdk.Client {
		return agentsdk.NewSubprocessClient(agentsdk.SubprocessConfig{
			Command: cfg.AgentCommand,
			Args:    cfg.AgentArgs,
		})
	}
}

// webhookRouter builds the chi router mounting the inbound webhook
// endpoint; the caller mounts the observability handler alongside it.
func webhookRouter(handler webhook.Handler, secretToken string, logger *slog.Logger) http.Handler {
	return webhook.New(handler, secretToken, logger).Router()
}

func expandHome(path string) string {
	if !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return home + strings.TrimPrefix(path, "~")
}

func settingsPath(agentConfigDir string) string {
	if strings.TrimSpace(agentConfigDir) == "" {
		return "settings.json"
	}
	return filepath.Join(agentConfigDir, "settings.json")
}

// buildPlatform wires the outbound chat-platform transport. No
// concrete Telegram/Discord/Slack client ships in this repository
// (spec.md's explicit scoping); an operator who hasn't stood up an
// adapter behind PlatformBaseURL gets an in-memory fake instead of a
// process that can't possibly work, logged loudly so it's never
// mistaken for production readiness.
func buildPlatform(cfg bridgeconfig.Config, logger *slog.Logger) chatplatform.Platform {
	if strings.TrimSpace(cfg.PlatformBaseURL) == "" {
		logger.Warn("bridge: no platform_base_url configured, using an in-memory fake chat platform (dev mode only)")
		return chatplatform.NewFake()
	}
	return chatplatform.NewHTTPClient(cfg.PlatformBaseURL, cfg.BotToken)
}
