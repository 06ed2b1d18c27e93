package application

import (
	"context"

	"github.com/dmehra2102/pix-disburser/internal/disbursement/domain"
	"github.com/shopspring/decimal"
)

type PayeeSource interface {
	List(ctx context.Context) ([]domain.Payee, error)
}

// LedgerStore persists committed payee IDs. Append must be durable before it
// returns: the planner calls the gateway right after.
type LedgerStore interface {
	Load(ctx context.Context) ([]string, error)
	Append(ctx context.Context, id string) error
}

type Gateway interface {
	Send(ctx context.Context, t domain.Transfer) (domain.Receipt, error)
	Balance(ctx context.Context) (decimal.Decimal, error)
}

type Journal interface {
	Record(ctx context.Context, d domain.Disbursement) error
}

// Splitter picks the amount for one payee given the equal-split upper bound.
// Implementations must return a value in [0, upper].
type Splitter interface {
	Draw(upper decimal.Decimal) decimal.Decimal
}
