// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/tally/internal/api"
	"github.com/starford/tally/internal/export"
	"github.com/starford/tally/internal/finance"
	"github.com/starford/tally/internal/mcpserver"
	"github.com/starford/tally/internal/models"
	"github.com/starford/tally/internal/sse"
	"github.com/starford/tally/internal/storage"
)

// Export formats.
const (
	FormatCSV  = "csv"
	FormatXLSX = "xlsx"
)

// rolloverInterval is how often a running server checks for a new month.
const rolloverInterval = time.Hour

func newApplication(opts []Option) (*application, error) {
	app := &application{out: os.Stdout, logOut: os.Stdout}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	return app, nil
}

// Initialize structured JSON logger.
func (a *application) logger() *slog.Logger {
	logger := slog.New(slog.NewJSONHandler(a.logOut, &slog.HandlerOptions{
		Level: a.config.App.LogLevel,
	}))
	slog.SetDefault(logger)
	return logger
}

// Run starts the HTTP server with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config
	logger := app.logger()

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("storage_driver", cfg.Storage.Driver),
		slog.String("storage_path", cfg.Storage.Path),
		slog.String("log_level", cfg.App.LogLevel.String()))

	ws, err := openWorkspace(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer ws.close()
	ws.rollover(ctx, time.Now())

	// SSE broker fed by every ledger.
	broker := sse.NewBroker(cfg.Events.SummaryThrottle)
	defer broker.Close()
	defer sse.ForwardFinance(broker, ws.finance)()
	defer sse.ForwardLedger(broker, "note", ws.notes.Ledger)()
	defer sse.ForwardLedger(broker, "task", ws.tasks.Ledger)()

	// Build API service and router.
	svc := ws.service()
	apiRouter := api.NewRouter(svc, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker)

	// Build chi router.
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		writeStatus(w, http.StatusOK, "ok")
	})
	r.Get("/health/ready", func(w http.ResponseWriter, _ *http.Request) {
		if err := svc.Ready(); err != nil {
			writeStatus(w, http.StatusServiceUnavailable, err.Error())
			return
		}
		writeStatus(w, http.StatusOK, "ok")
	})

	// Mount API routes under /api.
	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:    cfg.App.HTTP.Address(),
		Handler: r,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	// Reload ledgers edited outside the process.
	if ws.fs != nil && cfg.Storage.Watch {
		g.Go(func() error {
			if err := storage.Watch(gCtx, ws.fs, logger, func(key string) { ws.reload(gCtx, key) }); err != nil {
				logger.Error("watcher failed", slog.String("error", err.Error()))
			}
			return nil
		})
	}

	// Start a new month while running.
	g.Go(func() error {
		ticker := time.NewTicker(rolloverInterval)
		defer ticker.Stop()
		for {
			select {
			case <-gCtx.Done():
				return nil
			case now := <-ticker.C:
				if _, err := ws.finance.CheckNewMonth(gCtx, now); err != nil {
					logger.Error("month rollover check failed", slog.String("error", err.Error()))
				}
			}
		}
	})

	// Start HTTP server.
	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	// Handle shutdown signals.
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}

		return errShutdown
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errShutdown) {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// errShutdown cancels the group once the server has been asked to stop.
var errShutdown = errors.New("shutdown")

func writeStatus(w http.ResponseWriter, code int, status string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": status})
}

// RunMCP serves the MCP tools over stdin/stdout. Logs go to stderr unless
// WithLogOutput says otherwise.
func RunMCP(ctx context.Context, opts ...Option) error {
	app, err := newApplication(append([]Option{WithLogOutput(os.Stderr)}, opts...))
	if err != nil {
		return err
	}
	logger := app.logger()

	ws, err := openWorkspace(ctx, app.config, logger)
	if err != nil {
		return err
	}
	defer ws.close()
	ws.rollover(ctx, time.Now())

	srv := mcpserver.New(ws.finance, ws.notes, ws.tasks, app.config.Finance.Currency)
	logger.Info("MCP server starting on stdio")
	return srv.ServeStdio()
}

// Export writes every transaction, newest first, in format to the output.
func Export(ctx context.Context, format string, opts ...Option) error {
	app, err := newApplication(append([]Option{WithLogOutput(os.Stderr)}, opts...))
	if err != nil {
		return err
	}
	ws, err := openWorkspace(ctx, app.config, app.logger())
	if err != nil {
		return err
	}
	defer ws.close()

	txs, err := ws.finance.List(finance.Query{})
	if err != nil {
		return err
	}
	switch format {
	case FormatCSV:
		_, err = io.WriteString(app.out, export.ToCSV(txs))
		return err
	case FormatXLSX:
		return export.WriteXLSX(app.out, txs)
	default:
		return fmt.Errorf("unknown export format %q", format)
	}
}

// PrintSummary writes the month's finance summary as text to the output.
func PrintSummary(ctx context.Context, opts ...Option) error {
	app, err := newApplication(append([]Option{WithLogOutput(os.Stderr)}, opts...))
	if err != nil {
		return err
	}
	ws, err := openWorkspace(ctx, app.config, app.logger())
	if err != nil {
		return err
	}
	defer ws.close()

	writeSummary(app.out, ws.finance.Summary(), app.config.Finance.Currency)
	return nil
}

func writeSummary(w io.Writer, s finance.Summary, currency string) {
	fmt.Fprintf(w, "Balance:   %s\n", models.FormatMoney(s.Total, currency))
	fmt.Fprintf(w, "Income:    %s (%s%%, %s)\n", models.FormatMoney(s.Income, currency), s.IncomeTrend.Pct, s.IncomeTrend.Direction)
	fmt.Fprintf(w, "Expenses:  %s (%s%%, %s)\n", models.FormatMoney(s.Expense, currency), s.ExpenseTrend.Pct, s.ExpenseTrend.Direction)
	fmt.Fprintf(w, "Savings:   %s%% (%s)\n", s.SavingsPct, s.SavingsTrend)
	if s.Budget.Limit.IsPositive() {
		fmt.Fprintf(w, "Budget:    %s of %s (%s%%, %s)\n",
			models.FormatMoney(s.Budget.Spent, currency), models.FormatMoney(s.Budget.Limit, currency), s.Budget.UsedPct, s.Budget.Status)
	}
}
