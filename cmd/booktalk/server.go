package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/kalambet/booktalk/internal/api"
	"github.com/kalambet/booktalk/internal/catalog"
	"github.com/kalambet/booktalk/internal/config"
	"github.com/kalambet/booktalk/internal/dialogue"
	"github.com/kalambet/booktalk/internal/gemini"
	"github.com/kalambet/booktalk/internal/metrics"
	"github.com/kalambet/booktalk/internal/ollama"
	"github.com/kalambet/booktalk/internal/proxy"
)

const shutdownTimeout = 5 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Load the catalog and start the HTTP server (foreground)",
	RunE: func(cmd *cobra.Command, args []string) error {
		withMCP, _ := cmd.Flags().GetBool("mcp-stdio")
		return runServer(cmd.Context(), withMCP)
	},
}

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the catalog and book chat as MCP tools over stdio",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMCP(cmd.Context())
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show booktalk server and backend status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return showStatus(cmd.Context())
	},
}

func init() {
	serveCmd.Flags().Bool("mcp-stdio", false, "also serve MCP tools on stdin/stdout")
}

// app is everything a serving process builds before accepting requests.
type app struct {
	cfg     config.Config
	store   *catalog.Store
	query   *catalog.Query
	chat    *dialogue.Orchestrator
	metrics *metrics.Metrics
}

func setupLogging(level string) {
	logLevel := slog.LevelInfo
	if strings.EqualFold(level, "debug") {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))
}

// buildApp loads configuration and the catalog and constructs the backend.
// A catalog that cannot be loaded is fatal.
func buildApp(ctx context.Context, progress io.Writer) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	setupLogging(cfg.Log.Level)

	store, err := catalog.Load(cfg.Catalog.Path, cfg.Catalog.Table)
	if err != nil {
		return nil, err
	}
	slog.Info("catalog loaded", "source", store.Source(), "books", store.Len())

	backend, err := buildBackend(ctx, cfg.Backend, progress)
	if err != nil {
		return nil, err
	}
	timeout, err := cfg.Backend.TimeoutDuration()
	if err != nil {
		return nil, err
	}

	m := metrics.New()
	m.SetBooks(store.Len())

	return &app{
		cfg:     cfg,
		store:   store,
		query:   catalog.NewQuery(store),
		chat:    dialogue.New(store, dialogue.WithTimeout(backend, timeout), m),
		metrics: m,
	}, nil
}

// buildBackend picks the completion backend named by cfg.Provider.
func buildBackend(ctx context.Context, cfg config.BackendConfig, progress io.Writer) (dialogue.Backend, error) {
	switch cfg.Provider {
	case config.ProviderOpenAI:
		c := proxy.NewClientWithBaseURL(cfg.APIKey, cfg.BaseURL).
			WithModel(cfg.Model).
			WithTemperature(cfg.Temperature)
		slog.Info("using OpenAI-compatible backend", "model", modelOr(cfg.Model, proxy.DefaultModel))
		return c, nil

	case config.ProviderOllama:
		model := modelOr(cfg.Model, ollama.DefaultModel)
		c := ollama.New(cfg.BaseURL)
		if err := ollama.EnsureReady(ctx, c, model, progress); err != nil {
			return nil, err
		}
		slog.Info("using Ollama backend", "model", model)
		return ollama.NewBackend(c, model, cfg.Temperature), nil

	case config.ProviderGemini:
		b, err := gemini.New(ctx, cfg.APIKey, cfg.BaseURL, cfg.Model, cfg.Temperature)
		if err != nil {
			return nil, err
		}
		slog.Info("using Gemini backend", "model", modelOr(cfg.Model, gemini.DefaultModel))
		return b, nil
	}
	return nil, fmt.Errorf("unknown backend provider %q", cfg.Provider)
}

func modelOr(model, fallback string) string {
	if model == "" {
		return fallback
	}
	return model
}

func (a *app) mcpServer() *server.MCPServer {
	return api.NewMCPServer(api.MCPDeps{
		Query:    a.query,
		Chat:     a.chat,
		Metrics:  a.metrics,
		TopLimit: a.cfg.Catalog.TopLimit,
		Version:  version,
	})
}

func runServer(parent context.Context, withMCP bool) error {
	fmt.Fprintf(os.Stderr, "booktalk version %s\n", version)

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := buildApp(ctx, os.Stderr)
	if err != nil {
		return err
	}

	handler := api.NewHandler(api.Deps{
		Store:          a.store,
		Query:          a.query,
		Chat:           a.chat,
		Metrics:        a.metrics,
		AllowedOrigins: a.cfg.Server.Origins(),
		TopLimit:       a.cfg.Catalog.TopLimit,
	})

	addr := fmt.Sprintf("0.0.0.0:%d", a.cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("booktalk listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		fmt.Fprintln(os.Stderr, "shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if withMCP {
		stdio := server.NewStdioServer(a.mcpServer())
		g.Go(func() error {
			slog.Info("MCP server started (stdio transport)")
			if err := stdio.Listen(gctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("MCP stdio server: %w", err)
			}
			return nil
		})
	}

	return g.Wait()
}

func runMCP(parent context.Context) error {
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// stdout carries the MCP protocol, so progress goes to stderr.
	a, err := buildApp(ctx, os.Stderr)
	if err != nil {
		return err
	}

	stdio := server.NewStdioServer(a.mcpServer())
	if err := stdio.Listen(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("MCP stdio server: %w", err)
	}
	return nil
}

func showStatus(ctx context.Context) error {
	cfg, err := config.LoadClient()
	if err != nil {
		printError("config error: %v", err)
		return nil
	}

	client := &apiClient{
		baseURL:    serverURL(cfg),
		httpClient: &http.Client{Timeout: 2 * time.Second},
	}
	var health struct {
		Status string `json:"status"`
		Books  int    `json:"books"`
	}
	resp, err := client.get(ctx, "/health")
	if err != nil {
		printStatus("Server", "stopped")
	} else if err := decodeJSON(resp, &health); err != nil {
		printStatus("Server", "error (%v)", err)
	} else {
		printStatus("Server", "running on port %d", cfg.Server.Port)
		printStatus("Books", "%d", health.Books)
	}

	printStatus("Catalog", "%s", cfg.Catalog.Path)
	printStatus("Provider", "%s", cfg.Backend.Provider)

	switch cfg.Backend.Provider {
	case config.ProviderOllama:
		model := modelOr(cfg.Backend.Model, ollama.DefaultModel)
		oc := ollama.New(cfg.Backend.BaseURL)
		switch {
		case !oc.IsRunning(ctx):
			printStatus("Ollama", "not running")
		case oc.HasModel(ctx, model):
			printStatus("Ollama", "running, model %s available", model)
		default:
			printStatus("Ollama", "running, model %s not pulled", model)
		}
	case config.ProviderGemini:
		printStatus("Model", "%s", modelOr(cfg.Backend.Model, gemini.DefaultModel))
	default:
		printStatus("Model", "%s", modelOr(cfg.Backend.Model, proxy.DefaultModel))
	}
	return nil
}
