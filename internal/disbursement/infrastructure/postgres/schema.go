package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

const schema = `
CREATE TABLE IF NOT EXISTS ledger_entries (
	position     BIGSERIAL,
	ledger       TEXT NOT NULL,
	payee_id     TEXT NOT NULL,
	committed_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (ledger, payee_id)
);

CREATE TABLE IF NOT EXISTS transfers (
	transaction_id TEXT PRIMARY KEY,
	run_id         TEXT NOT NULL,
	payee_id       TEXT NOT NULL,
	amount         NUMERIC(14,2) NOT NULL,
	status         TEXT NOT NULL,
	created_at     TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS outbox (
	id             BIGSERIAL PRIMARY KEY,
	aggregate_type TEXT NOT NULL,
	aggregate_id   TEXT NOT NULL,
	type           TEXT NOT NULL,
	payload        JSONB NOT NULL,
	headers        JSONB,
	traceparent    TEXT,
	status         TEXT NOT NULL DEFAULT 'pending',
	relay_id       TEXT,
	lease_until    TIMESTAMPTZ,
	retry_count    INT NOT NULL DEFAULT 0,
	last_error     TEXT,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, schema)
	return err
}
