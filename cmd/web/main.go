package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"ecommerce-dashboard/internal/cache"
	"ecommerce-dashboard/internal/config"
	"ecommerce-dashboard/internal/export"
	"ecommerce-dashboard/internal/format"
	"ecommerce-dashboard/internal/middleware"
	"ecommerce-dashboard/internal/observability"
	"ecommerce-dashboard/internal/server"
	"ecommerce-dashboard/internal/services"
	"ecommerce-dashboard/internal/ui/templates"
)

const (
	renderTimeout = 10 * time.Second
	cacheMaxAge   = "public, max-age=300"
)

var (
	cfgPath string
	csvPath string

	exportStart string
	exportEnd   string
	exportOut   string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "web",
		Short: "E-commerce sales dashboard",
	}
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "Path to a YAML config file")
	rootCmd.PersistentFlags().StringVar(&csvPath, "csv", "", "Override the dataset CSV path")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the dashboard web server",
		RunE:  runServer,
	}

	exportCmd := &cobra.Command{
		Use:   "export",
		Short: "Write the dashboard for a date range to an xlsx workbook",
		RunE:  runExport,
	}
	exportCmd.Flags().StringVar(&exportStart, "start", "", "First day of the range (YYYY-MM-DD)")
	exportCmd.Flags().StringVar(&exportEnd, "end", "", "Last day of the range (YYYY-MM-DD)")
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "", "Output file (default dashboard_<start>_<end>.xlsx)")

	rootCmd.AddCommand(serveCmd, exportCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "Error loading .env file: %v\n", err)
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}
	if csvPath != "" {
		cfg.Dataset.File = csvPath
	}
	return cfg, nil
}

// newAnalytics builds the analytics service and loads the configured CSV.
func newAnalytics(ctx context.Context, cfg *config.Config, logger *slog.Logger, manager *cache.Manager) (*services.Analytics, error) {
	analytics := services.NewAnalytics(
		services.WithCache(manager),
		services.WithLogger(logger),
		services.WithSnapshotDir(cfg.Dataset.SnapshotDir),
		services.WithCurrency(format.ParseUnit(cfg.Dashboard.Currency)),
	)

	ctx, cancel := context.WithTimeout(ctx, cfg.Dataset.LoadTimeout)
	defer cancel()

	start := time.Now()
	if err := analytics.LoadFromCSV(ctx, cfg.Dataset.File); err != nil {
		return nil, fmt.Errorf("failed to load CSV data: %w", err)
	}
	logger.Info("CSV data loaded successfully", "file", cfg.Dataset.File, "duration", time.Since(start))

	return analytics, nil
}

func newCacheManager(ctx context.Context, cfg config.CacheConfig, logger *slog.Logger) *cache.Manager {
	if cfg.RedisAddr == "" {
		return cache.NewManager(nil, cfg.TTL, logger)
	}

	client, err := cache.NewRedisClient(ctx, cache.RedisOptions{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err != nil {
		logger.Warn("redis unavailable, using in-process cache only", "error", err)
		return cache.NewManager(nil, cfg.TTL, logger)
	}
	logger.Info("redis cache connected", "addr", cfg.RedisAddr)
	return cache.NewManager(client, cfg.TTL, logger)
}

// dashboardPage renders the full document for the whole dataset span.
func dashboardPage(analytics *services.Analytics, title string, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), renderTimeout)
		defer cancel()

		page := templates.Page{Title: title}
		if bounds, err := analytics.Bounds(); err == nil {
			page.Bounds = bounds
			if dash, err := analytics.Dashboard(ctx, bounds); err == nil {
				page.Dashboard = dash
			} else {
				logger.Error("failed to build dashboard", "error", err)
			}
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Cache-Control", cacheMaxAge)
		if err := templates.Dashboard(page).Render(ctx, w); err != nil {
			http.Error(w, "render error", http.StatusInternalServerError)
		}
	}
}

func runServer(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger := observability.NewLogger(cfg.Logger)
	slog.SetDefault(logger)

	logger.Info("starting application",
		"version", observability.ServiceVersion,
		"addr", cfg.Address(),
		"dataset", cfg.Dataset.File,
	)

	shutdownTracing, err := observability.InitTracing(cfg.Tracing)
	if err != nil {
		return fmt.Errorf("failed to initialise tracing: %w", err)
	}

	ctx := cmd.Context()
	manager := newCacheManager(ctx, cfg.Cache, logger)

	analytics, err := newAnalytics(ctx, cfg, logger, manager)
	if err != nil {
		manager.Close()
		shutdownTracing(context.Background())
		return err
	}

	templateHandlers := &server.TemplateHandlers{
		Dashboard: dashboardPage(analytics, cfg.Dashboard.Title, logger),
	}
	srv := server.NewServer(analytics, logger, templateHandlers)

	rateLimiter := middleware.NewRateLimiter(cfg.Security)

	middlewareChain := middleware.Chain(
		middleware.Recovery(logger),
		middleware.RequestID(),
		middleware.Logger(logger),
		middleware.SecurityHeaders(),
		middleware.CORS(cfg.Security),
		middleware.TrustedProxy(cfg.Security),
		middleware.RateLimit(rateLimiter, logger),
	)

	httpServer := &http.Server{
		Addr:         cfg.Address(),
		Handler:      middlewareChain(srv),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	gracefulServer := server.NewGracefulServer(httpServer, logger, cfg.Server)
	gracefulServer.RegisterShutdownHook("cache", func(ctx context.Context) error {
		return manager.Close()
	})
	gracefulServer.RegisterShutdownHook("tracing", shutdownTracing)

	if err := gracefulServer.ListenAndServe(ctx); err != nil {
		return err
	}

	logger.Info("application stopped gracefully")
	return nil
}

func runExport(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger := observability.NewLogger(cfg.Logger)
	ctx := cmd.Context()

	manager := cache.NewManager(nil, cfg.Cache.TTL, logger)
	defer manager.Close()

	analytics, err := newAnalytics(ctx, cfg, logger, manager)
	if err != nil {
		return err
	}

	rng, err := analytics.Range(exportStart, exportEnd)
	if err != nil {
		return err
	}

	dash, err := analytics.Dashboard(ctx, rng)
	if err != nil {
		return fmt.Errorf("failed to build dashboard: %w", err)
	}

	out := exportOut
	if out == "" {
		out = export.Filename(rng)
	}

	f, err := os.Create(out)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", out, err)
	}
	if err := export.Write(f, dash); err != nil {
		f.Close()
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	if err := f.Close(); err != nil {
		return err
	}

	logger.Info("workbook written", "file", out, "range", rng.Key())
	return nil
}
