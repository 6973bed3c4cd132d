package cli

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/dukerupert/tvtime/internal/app"
	"github.com/dukerupert/tvtime/internal/config"
	"github.com/dukerupert/tvtime/internal/database"
	"github.com/dukerupert/tvtime/internal/gateway"
	"github.com/dukerupert/tvtime/internal/logging"
	"github.com/dukerupert/tvtime/internal/metrics"
	"github.com/dukerupert/tvtime/internal/remote"
	"github.com/dukerupert/tvtime/internal/server"
	"github.com/dukerupert/tvtime/internal/store"
	ws "github.com/dukerupert/tvtime/internal/websocket"
)

// memoryRemote selects an in-process document instead of a document service.
const memoryRemote = "memory"

func init() {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the family device",
		Run:   runServe,
	}

	cmd.Flags().StringP("port", "p", "", "HTTP port (default: $TVTIME_PORT or 8080)")
	cmd.Flags().String("remote", "", `Document service URL, or "memory" (default: $TVTIME_REMOTE_URL, empty runs local only)`)

	RootCmd.AddCommand(cmd)
}

func runServe(cmd *cobra.Command, args []string) {
	cfg, err := config.Load()
	if err != nil {
		exitErr("load config", err)
	}
	if dbPath != "" {
		cfg.DBPath = dbPath
	}
	if port, _ := cmd.Flags().GetString("port"); port != "" {
		cfg.Port = port
	}
	if url, _ := cmd.Flags().GetString("remote"); url != "" {
		cfg.RemoteURL = url
	}

	logger := logging.Setup(cfg.LogLevel, cfg.LogFormat)

	db, err := database.Open(cfg.DBPath)
	if err != nil {
		exitErr("open database", err)
	}
	defer db.Close()

	kv := store.NewKVStore(db)
	familyID, err := gateway.EnsureFamilyID(kv)
	if err != nil {
		exitErr("family id", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	collector := metrics.NewCollector(reg)
	hub := ws.NewHub(logger.With("component", "websocket"))

	doc := openRemote(cfg, familyID, logger)
	gw := gateway.New(kv, doc, collector, logger.With("component", "gateway"))

	a, err := app.New(app.Config{
		DailyBonus:   cfg.DailyBonus,
		MaxBonusDays: cfg.MaxBonusDays,
		SettleDelay:  cfg.SettleDelay,
		PollInterval: cfg.PollInterval,
		Location:     cfg.Location,
	}, gw, hub, collector, logger.With("component", "app"))
	if err != nil {
		exitErr("start app", err)
	}

	srv := server.New(a, hub, reg, logger)
	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      srv.Router(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a.Start(ctx)

	go func() {
		logger.Info("tvtime running", "addr", "http://localhost:"+cfg.Port, "family_id", familyID, "remote", cfg.RemoteURL != "")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}
	a.Stop()
}

func openRemote(cfg *config.Config, familyID string, logger *slog.Logger) remote.Document {
	switch cfg.RemoteURL {
	case "":
		logger.Info("no remote document configured, running local only")
		return nil
	case memoryRemote:
		return remote.NewMemory()
	}
	return remote.NewClient(remote.Config{
		BaseURL:           cfg.RemoteURL,
		FamilyID:          familyID,
		Timeout:           cfg.RemoteTimeout,
		ReconnectInterval: cfg.ReconnectInterval,
	}, logger.With("component", "remote"))
}
