package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dmehra2102/pix-disburser/internal/disbursement/domain"
	"github.com/dmehra2102/pix-disburser/pkg/outbox"
	"github.com/dmehra2102/pix-disburser/pkg/tracing"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository is a Postgres ledger and transfer journal. Every write also
// queues an outbox event in the same transaction.
type Repository struct {
	log    *slog.Logger
	pool   *pgxpool.Pool
	ledger string
}

func NewRepository(log *slog.Logger, pool *pgxpool.Pool, ledger string) *Repository {
	return &Repository{log: log, pool: pool, ledger: ledger}
}

func (r *Repository) Load(ctx context.Context) ([]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT payee_id FROM ledger_entries WHERE ledger=$1 ORDER BY position`, r.ledger)
	if err != nil {
		return nil, err
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *Repository) Append(ctx context.Context, id string) error {
	if id == "" || strings.ContainsAny(id, "\r\n") {
		return fmt.Errorf("%w: %q", domain.ErrInvalidPayeeID, id)
	}
	event := domain.PayeeCommitted{Ledger: r.ledger, PayeeID: id, CommittedAt: time.Now().UTC()}
	return r.withOutbox(ctx, "ledger", r.ledger+"/"+id, domain.EventPayeeCommitted, event, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `INSERT INTO ledger_entries (ledger, payee_id, committed_at) VALUES ($1,$2,$3) ON CONFLICT (ledger, payee_id) DO NOTHING`,
			r.ledger, id, event.CommittedAt)
		return err
	})
}

func (r *Repository) Record(ctx context.Context, d domain.Disbursement) error {
	event := domain.NewTransferSent(d)
	return r.withOutbox(ctx, "transfer", d.TransactionID, domain.EventTransferSent, event, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `INSERT INTO transfers (transaction_id, run_id, payee_id, amount, status, created_at) VALUES ($1,$2,$3,$4::numeric,$5,$6)
				ON CONFLICT (transaction_id) DO UPDATE SET status=$5`,
			d.TransactionID, d.RunID, d.PayeeID, event.Amount, d.Status, d.CreatedAt)
		return err
	})
}

func (r *Repository) withOutbox(ctx context.Context, aggregateType, aggregateID, eventType string, event any, write func(pgx.Tx) error) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if err := write(tx); err != nil {
		return err
	}

	headers := map[string]string{"source": "pix-disburser"}
	_, err = tx.Exec(ctx, `INSERT INTO outbox (aggregate_type, aggregate_id, type, payload, headers, traceparent, status) VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		aggregateType, aggregateID, eventType, payload, headers, tracing.Traceparent(ctx), outbox.StatusPending)
	if err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return err
	}
	r.log.Debug("outbox event queued", "type", eventType, "aggregate_id", aggregateID)
	return nil
}
