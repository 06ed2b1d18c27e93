package postgres

import (
	"context"
	"log/slog"
	"time"

	"github.com/dmehra2102/pix-disburser/pkg/outbox"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const maxOutboxRetries = 5

type OutboxStore struct {
	log  *slog.Logger
	pool *pgxpool.Pool
}

func NewOutboxStore(log *slog.Logger, pool *pgxpool.Pool) *OutboxStore {
	return &OutboxStore{log: log, pool: pool}
}

// LockBatch claims pending events, failed events with retries left, and
// events whose lease has run out. Returned events keep the status, relay and
// last error they had before this claim.
func (s *OutboxStore) LockBatch(ctx context.Context, relayID string, batchSize int, lease time.Duration) ([]outbox.Event, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	rows, err := tx.Query(ctx, `
		SELECT id, aggregate_type, aggregate_id, type, payload, headers, traceparent, created_at,
		       status, relay_id, retry_count, last_error
		FROM outbox
		WHERE status = $2
		   OR (status = $3 AND retry_count < $4)
		   OR (status = $5 AND lease_until < now())
		ORDER BY id
		FOR UPDATE SKIP LOCKED
		LIMIT $1
	`, batchSize, outbox.StatusPending, outbox.StatusFailed, maxOutboxRetries, outbox.StatusInProgress)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []outbox.Event
	for rows.Next() {
		var event outbox.Event
		var headers map[string]string
		var traceparent, prevRelay *string
		if err := rows.Scan(&event.ID, &event.AggregateType, &event.AggregateID, &event.Type, &event.Payload, &headers, &traceparent, &event.CreatedAt,
			&event.Status, &prevRelay, &event.RetryCount, &event.LastError); err != nil {
			return nil, err
		}
		event.Headers = headers
		if traceparent != nil {
			event.Traceparent = *traceparent
		}
		if prevRelay != nil {
			event.RelayID = *prevRelay
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return nil, tx.Commit(ctx)
	}

	ids := make([]int64, 0, len(events))
	for _, ev := range events {
		ids = append(ids, ev.ID)
	}

	_, err = tx.Exec(ctx, `UPDATE outbox SET status=$1, relay_id=$2, lease_until=now() + $3 * interval '1 second' WHERE id = ANY($4)`,
		outbox.StatusInProgress, relayID, lease.Seconds(), ids)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return events, nil
}

func (s *OutboxStore) MarkSent(ctx context.Context, ids []int64) error {
	_, err := s.pool.Exec(ctx, `UPDATE outbox SET status=$1, lease_until=NULL WHERE id = ANY($2)`, outbox.StatusSent, ids)
	return err
}

func (s *OutboxStore) MarkFailed(ctx context.Context, id int64, errMsg string) error {
	var retries int
	err := s.pool.QueryRow(ctx, `UPDATE outbox SET status=$2, last_error=$3, retry_count=retry_count+1, lease_until=NULL WHERE id=$1 RETURNING retry_count`,
		id, outbox.StatusFailed, errMsg).Scan(&retries)
	if err != nil {
		return err
	}
	if retries >= maxOutboxRetries {
		s.log.Error("outbox event gave up", "event_id", id, "retry_count", retries, "err", errMsg)
	} else {
		s.log.Warn("outbox event failed", "event_id", id, "retry_count", retries, "err", errMsg)
	}
	return nil
}
