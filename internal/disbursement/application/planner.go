package application

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dmehra2102/pix-disburser/internal/disbursement/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type Options struct {
	// Reserve is kept out of the fetched balance.
	Reserve  decimal.Decimal
	Splitter Splitter
	Journal  Journal
	Now      func() time.Time
	NewRunID func() string
}

type Planner struct {
	log     *slog.Logger
	payees  PayeeSource
	ledger  LedgerStore
	gateway Gateway
	opts    Options
	tracer  trace.Tracer
}

type Summary struct {
	RunID          string
	InitialBalance decimal.Decimal
	Remaining      decimal.Decimal
	Disbursed      decimal.Decimal
	Paid           int
	Skipped        int
	Transfers      []domain.Disbursement
}

func NewPlanner(log *slog.Logger, payees PayeeSource, ledger LedgerStore, gateway Gateway, opts Options) *Planner {
	if opts.Splitter == nil {
		opts.Splitter = NewRandomSplit(nil)
	}
	if opts.Journal == nil {
		opts.Journal = nopJournal{}
	}
	if opts.Now == nil {
		opts.Now = func() time.Time { return time.Now().UTC() }
	}
	if opts.NewRunID == nil {
		opts.NewRunID = uuid.NewString
	}
	return &Planner{
		log:     log,
		payees:  payees,
		ledger:  ledger,
		gateway: gateway,
		opts:    opts,
		tracer:  otel.Tracer("disbursement-planner"),
	}
}

// Run pays every pending payee not yet in the ledger, one at a time. The
// payee ID is persisted to the ledger before the gateway is called, so a
// payee whose transfer fails stays marked and is skipped by later runs.
func (p *Planner) Run(ctx context.Context) (Summary, error) {
	ctx, span := p.tracer.Start(ctx, "DisbursementRun")
	defer span.End()

	sum, err := p.run(ctx)
	span.SetAttributes(
		attribute.String("run_id", sum.RunID),
		attribute.Int("paid", sum.Paid),
		attribute.Int("skipped", sum.Skipped),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return sum, err
}

func (p *Planner) run(ctx context.Context) (Summary, error) {
	sum := Summary{RunID: p.opts.NewRunID(), Disbursed: decimal.Zero}
	log := p.log.With("run_id", sum.RunID)

	payees, err := p.payees.List(ctx)
	if err != nil {
		return sum, fmt.Errorf("list payees: %w", err)
	}
	paid, err := p.ledger.Load(ctx)
	if err != nil {
		return sum, fmt.Errorf("load ledger: %w", err)
	}
	ledger := domain.NewLedger(paid)

	balance, err := p.gateway.Balance(ctx)
	if err != nil {
		return sum, fmt.Errorf("fetch balance: %w", err)
	}
	remaining := balance.Sub(p.opts.Reserve).Truncate(domain.AmountPlaces)
	sum.InitialBalance = remaining
	sum.Remaining = remaining
	if !remaining.IsPositive() {
		return sum, fmt.Errorf("%w: balance %s, reserve %s", domain.ErrInsufficientBalance, balance, p.opts.Reserve)
	}

	log.Info("disbursement started",
		"payees", len(payees), "ledger", ledger.Len(), "balance", remaining.StringFixed(domain.AmountPlaces))

	left := len(payees)
	for _, payee := range payees {
		if err := ctx.Err(); err != nil {
			log.Warn("disbursement interrupted", "payees_left", left)
			return sum, fmt.Errorf("run interrupted: %w", err)
		}

		if ledger.Contains(payee.ID) {
			left--
			sum.Skipped++
			log.Info("payee already in ledger", "payee_id", payee.ID)
			continue
		}

		upper := remaining.DivRound(decimal.NewFromInt(int64(left)), domain.AmountPlaces)
		amount := p.opts.Splitter.Draw(upper)
		if !amount.IsPositive() {
			return sum, fmt.Errorf("payee %q: %w: remaining %s", payee.ID, domain.ErrBalanceExhausted, remaining.StringFixed(domain.AmountPlaces))
		}

		if err := p.ledger.Append(ctx, payee.ID); err != nil {
			return sum, fmt.Errorf("commit payee %q: %w", payee.ID, err)
		}
		ledger.Add(payee.ID)
		remaining = remaining.Sub(amount)
		sum.Remaining = remaining
		log.Info("payee committed", "payee_id", payee.ID, "amount", amount.StringFixed(domain.AmountPlaces))

		// Ledger is committed: the transfer must not be abandoned on cancel.
		d, err := p.pay(context.WithoutCancel(ctx), sum.RunID, payee, amount)
		if err != nil {
			log.Error("transfer failed", "payee_id", payee.ID, "err", err)
			return sum, fmt.Errorf("disburse payee %q: %w", payee.ID, err)
		}
		log.Info("transfer sent", "payee_id", payee.ID, "transaction_id", d.TransactionID, "status", d.Status)

		sum.Paid++
		sum.Disbursed = sum.Disbursed.Add(amount)
		sum.Transfers = append(sum.Transfers, d)
		left--

		if err := p.opts.Journal.Record(context.WithoutCancel(ctx), d); err != nil {
			return sum, fmt.Errorf("journal payee %q: %w", payee.ID, err)
		}
	}

	log.Info("disbursement finished",
		"paid", sum.Paid, "skipped", sum.Skipped,
		"disbursed", sum.Disbursed.StringFixed(domain.AmountPlaces),
		"remaining", sum.Remaining.StringFixed(domain.AmountPlaces))
	return sum, nil
}

func (p *Planner) pay(ctx context.Context, runID string, payee domain.Payee, amount decimal.Decimal) (domain.Disbursement, error) {
	ctx, span := p.tracer.Start(ctx, "DisbursePayee", trace.WithAttributes(
		attribute.String("payee_id", payee.ID),
		attribute.String("amount", amount.StringFixed(domain.AmountPlaces)),
	))
	defer span.End()

	receipt, err := p.gateway.Send(ctx, domain.NewTransfer(payee, amount))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return domain.Disbursement{}, err
	}
	span.SetAttributes(attribute.String("transaction_id", receipt.TransactionID))

	return domain.Disbursement{
		RunID:         runID,
		PayeeID:       payee.ID,
		Amount:        amount,
		TransactionID: receipt.TransactionID,
		Status:        receipt.Status,
		CreatedAt:     p.opts.Now(),
	}, nil
}

type nopJournal struct{}

func (nopJournal) Record(context.Context, domain.Disbursement) error { return nil }
