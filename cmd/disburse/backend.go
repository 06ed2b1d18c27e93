package main

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/dmehra2102/pix-disburser/internal/config"
	"github.com/dmehra2102/pix-disburser/internal/disbursement/application"
	"github.com/dmehra2102/pix-disburser/internal/disbursement/infrastructure/asaas"
	"github.com/dmehra2102/pix-disburser/internal/disbursement/infrastructure/filesystem"
	disbursekafka "github.com/dmehra2102/pix-disburser/internal/disbursement/infrastructure/kafka"
	pg "github.com/dmehra2102/pix-disburser/internal/disbursement/infrastructure/postgres"
	redisledger "github.com/dmehra2102/pix-disburser/internal/disbursement/infrastructure/redis"
	"github.com/dmehra2102/pix-disburser/pkg/idempotency"
	"github.com/dmehra2102/pix-disburser/pkg/outbox"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

// backend bundles the ledger, journal and the connections behind them.
type backend struct {
	ledger  application.LedgerStore
	journal application.Journal
	relay   *outbox.Relay
	closers []func(context.Context)
}

func (b *backend) Close(ctx context.Context) {
	for i := len(b.closers) - 1; i >= 0; i-- {
		b.closers[i](ctx)
	}
}

// openBackend connects the configured ledger. Read-only callers pass
// migrate=false so the postgres schema is left untouched.
func openBackend(ctx context.Context, cfg config.Config, log *slog.Logger, migrate bool) (*backend, error) {
	b := &backend{journal: logJournal{log: log}}

	var rdb *redis.Client
	if cfg.Ledger.Backend == config.BackendRedis || cfg.Redis.UseGuard {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr})
		b.closers = append(b.closers, func(context.Context) { _ = rdb.Close() })
		if err := rdb.Ping(ctx).Err(); err != nil {
			b.Close(ctx)
			return nil, fmt.Errorf("redis ping %s: %w", cfg.Redis.Addr, err)
		}
	}

	if cfg.Redis.UseGuard {
		idem := idempotency.NewStore(rdb, cfg.Redis.LockTTL)
		lease, err := idem.Acquire(ctx, idem.Key("disburse", ledgerKey(cfg)))
		if err != nil {
			b.Close(ctx)
			return nil, fmt.Errorf("another run holds this ledger: %w", err)
		}
		b.closers = append(b.closers, func(ctx context.Context) {
			if err := lease.Release(ctx); err != nil {
				log.Error("release run guard failed", "err", err)
			}
		})
	}

	switch cfg.Ledger.Backend {
	case config.BackendFile:
		b.ledger = filesystem.NewLedgerFile(cfg.Ledger.Path)
	case config.BackendRedis:
		b.ledger = redisledger.NewLedger(rdb, cfg.Ledger.Name)
	case config.BackendPostgres:
		pool, err := pgxpool.New(ctx, cfg.Postgres.URL)
		if err != nil {
			b.Close(ctx)
			return nil, fmt.Errorf("pg connect: %w", err)
		}
		b.closers = append(b.closers, func(context.Context) { pool.Close() })
		if migrate {
			if err := pg.Migrate(ctx, pool); err != nil {
				b.Close(ctx)
				return nil, fmt.Errorf("pg migrate: %w", err)
			}
		}
		repo := pg.NewRepository(log, pool, cfg.Ledger.Name)
		b.ledger = repo
		b.journal = multiJournal{repo, b.journal}

		if cfg.Kafka.Addr != "" {
			writer := disbursekafka.NewWriter(strings.Split(cfg.Kafka.Addr, ","))
			b.closers = append(b.closers, func(context.Context) { _ = writer.Close() })
			dispatch := outbox.NewDispatcher(log, writer, cfg.Kafka.Topic)
			b.relay = outbox.NewRelay(log, pg.NewOutboxStore(log, pool), dispatch, "pix-disburser-relay")
		}
	}
	return b, nil
}

func ledgerKey(cfg config.Config) string {
	if cfg.Ledger.Backend == config.BackendFile {
		if abs, err := filepath.Abs(cfg.Ledger.Path); err == nil {
			return abs
		}
		return cfg.Ledger.Path
	}
	return cfg.Ledger.Backend + ":" + cfg.Ledger.Name
}

func newGateway(cfg config.Config, log *slog.Logger) (*asaas.Client, error) {
	return asaas.NewClient(asaas.Config{
		Environment: asaas.Environment(cfg.Asaas.Env),
		BaseURL:     cfg.Asaas.BaseURL,
		AccessToken: cfg.Asaas.Token,
		Timeout:     cfg.Asaas.Timeout,
		Hook:        asaas.LogHook(log),
	})
}

func newSplitter(cfg config.Config) application.Splitter {
	if cfg.Split == config.SplitFixed {
		return application.FixedSplit{Amount: cfg.FixedSplitAmount()}
	}
	return application.NewRandomSplit(nil)
}
