package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/MrJamesThe3rd/kitty/internal/config"
	"github.com/MrJamesThe3rd/kitty/internal/database"
	kittyHttp "github.com/MrJamesThe3rd/kitty/internal/http"
	debtHandler "github.com/MrJamesThe3rd/kitty/internal/http/debt"
	eventHandler "github.com/MrJamesThe3rd/kitty/internal/http/event"
	expenseHandler "github.com/MrJamesThe3rd/kitty/internal/http/expense"
	importHandler "github.com/MrJamesThe3rd/kitty/internal/http/importcsv"
	paymentHandler "github.com/MrJamesThe3rd/kitty/internal/http/payment"
	walletHandler "github.com/MrJamesThe3rd/kitty/internal/http/wallet"
	"github.com/MrJamesThe3rd/kitty/internal/importer"
	"github.com/MrJamesThe3rd/kitty/internal/ledger"
	"github.com/MrJamesThe3rd/kitty/internal/notify"
	"github.com/MrJamesThe3rd/kitty/internal/store"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	if cfg.Auth.JWTSecret == "" {
		slog.Error("JWT_SECRET is required")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.New(cfg.ConnectionString())
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := database.Migrate(ctx, db); err != nil {
		slog.Error("failed to migrate database", "error", err)
		os.Exit(1)
	}

	publisher, closePublisher, err := newPublisher(ctx, cfg)
	if err != nil {
		slog.Error("failed to connect to redis", "error", err)
		os.Exit(1)
	}
	defer closePublisher()

	worker := notify.NewWorker(publisher, cfg.Notify.BufferSize)
	worker.Start()

	ledgerService := ledger.NewService(store.New(db), worker, ledger.WithConfig(ledger.Config{
		DebtDueIn:       cfg.DebtDueIn(),
		CriticalDebtAge: cfg.Ledger.CriticalDebtAgeDays,
	}))

	router := kittyHttp.New([]byte(cfg.Auth.JWTSecret), cfg.Server.Timeout, kittyHttp.Handlers{
		Events:   eventHandler.NewHandler(ledgerService),
		Expenses: expenseHandler.NewHandler(ledgerService),
		Import:   importHandler.NewHandler(importer.NewParser(), ledgerService),
		Debts:    debtHandler.NewHandler(ledgerService),
		Wallet:   walletHandler.NewHandler(ledgerService),
		Payments: paymentHandler.NewHandler(ledgerService),
	})

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.App.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	stopped := make(chan struct{})

	go func() {
		defer close(stopped)

		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.Timeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("failed to shut down server", "error", err)
		}
	}()

	slog.Info("starting server", "app", cfg.App.Name, "port", server.Addr)

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server failed", "error", err)
		worker.Shutdown()
		os.Exit(1)
	}

	// ListenAndServe returns as soon as Shutdown starts; in-flight requests
	// may still be notifying until it finishes.
	<-stopped
	worker.Shutdown()
	slog.Info("server stopped")
}

func newPublisher(ctx context.Context, cfg *config.Config) (notify.Publisher, func(), error) {
	if !cfg.Redis.Enabled {
		slog.Info("redis disabled, notifications go to the log")
		return notify.LogPublisher{}, func() {}, nil
	}

	client, err := database.NewRedis(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		return nil, nil, err
	}

	closeFn := func() {
		if err := client.Close(); err != nil {
			slog.Error("failed to close redis", "error", err)
		}
	}

	return notify.NewRedisPublisher(client, cfg.Redis.Stream, cfg.Redis.MaxLen), closeFn, nil
}
