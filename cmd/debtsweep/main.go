// Command debtsweep periodically flags debts that have gone unpaid for too
// long and notifies their debtors and event creators.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"github.com/MrJamesThe3rd/kitty/internal/config"
	"github.com/MrJamesThe3rd/kitty/internal/database"
	"github.com/MrJamesThe3rd/kitty/internal/ledger"
	"github.com/MrJamesThe3rd/kitty/internal/notify"
	"github.com/MrJamesThe3rd/kitty/internal/store"
)

func main() {
	if err := run(); err != nil {
		slog.Error("debtsweep failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	var (
		interval     time.Duration
		once         bool
		criticalDays int
	)

	flagSet := pflag.NewFlagSet("debtsweep", pflag.ContinueOnError)
	flagSet.DurationVar(&interval, "interval", cfg.Sweep.Interval, "time between sweeps")
	flagSet.BoolVar(&once, "once", false, "sweep once and exit")
	flagSet.IntVar(&criticalDays, "critical-days", cfg.Ledger.CriticalDebtAgeDays, "age in days at which an open debt is critical")

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}

		return err
	}

	if criticalDays < 1 {
		return fmt.Errorf("--critical-days must be at least 1, got %d", criticalDays)
	}

	if !once && interval <= 0 {
		return fmt.Errorf("--interval must be positive, got %s", interval)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.New(cfg.ConnectionString())
	if err != nil {
		return err
	}
	defer db.Close()

	var publisher notify.Publisher = notify.LogPublisher{}

	if cfg.Redis.Enabled {
		client, err := database.NewRedis(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			return err
		}
		defer client.Close()

		publisher = notify.NewRedisPublisher(client, cfg.Redis.Stream, cfg.Redis.MaxLen)
	}

	worker := notify.NewWorker(publisher, cfg.Notify.BufferSize)
	worker.Start()
	defer worker.Shutdown()

	svc := ledger.NewService(store.New(db), worker, ledger.WithConfig(ledger.Config{
		DebtDueIn:       cfg.DebtDueIn(),
		CriticalDebtAge: criticalDays,
	}))

	sweep := func() {
		n, err := svc.SweepCriticalDebts(ctx)
		if err != nil {
			slog.Error("failed to sweep debts", "error", err)
			return
		}

		slog.Info("swept debts", "critical", n, "critical_days", criticalDays)
	}

	sweep()

	if once {
		return nil
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("stopping debt sweep")
			return nil
		case <-ticker.C:
			sweep()
		}
	}
}
