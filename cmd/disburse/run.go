package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/dmehra2102/pix-disburser/internal/disbursement/application"
	"github.com/dmehra2102/pix-disburser/internal/disbursement/domain"
	"github.com/dmehra2102/pix-disburser/internal/disbursement/infrastructure/filesystem"
	"github.com/dmehra2102/pix-disburser/pkg/shutdown"
	"github.com/dmehra2102/pix-disburser/pkg/tracing"
	"github.com/spf13/cobra"
)

const drainTimeout = 30 * time.Second

func (a *app) runCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Pay every payee in the payee directory that is not in the ledger",
		Long: `Reads one JSON file per payee, skips payees already in the ledger and
splits the account balance (minus the reserve) across the rest.

Each payee gets at least 0.01. When the remaining balance spread over the
payees left drops below one cent the run stops with "balance exhausted"
before touching the next payee; that payee is neither paid nor written
to the ledger.

Each payee is written to the ledger before its transfer is sent. A payee
whose transfer fails stays in the ledger and is skipped by later runs;
check the provider before removing it by hand.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd.Context(), cmd.OutOrStdout())
		},
	}

	ledgerFlags(cmd)
	cmd.Flags().String("env", "", "asaas environment: sandbox or prod")
	cmd.Flags().String("payees", "", "directory with one JSON file per payee")
	cmd.Flags().String("reserve", "", "amount kept out of the balance")
	cmd.Flags().String("split", "", "split policy: random or fixed")
	cmd.Flags().String("fixed-amount", "", "amount per payee for the fixed split")
	cmd.Flags().Bool("guard", false, "hold a redis lock on the ledger for the whole run")
	return cmd
}

func (a *app) run(parent context.Context, out io.Writer) error {
	ctx, cancel := shutdown.WithSignals(parent, a.log)
	defer cancel()

	tp, err := tracing.Init(ctx, "pix-disburser", a.cfg.OTLPEndpoint, a.log)
	if err != nil {
		return fmt.Errorf("otel init: %w", err)
	}
	defer func() { _ = tp.Shutdown(context.WithoutCancel(ctx)) }()

	gw, err := newGateway(a.cfg, a.log)
	if err != nil {
		return err
	}

	b, err := openBackend(ctx, a.cfg, a.log, true)
	if err != nil {
		return err
	}
	defer b.Close(context.WithoutCancel(ctx))

	stopRelay := func() {}
	if b.relay != nil {
		relayCtx, cancelRelay := context.WithCancel(ctx)
		done := make(chan struct{})
		go func() {
			defer close(done)
			if err := b.relay.Run(relayCtx); err != nil && relayCtx.Err() == nil {
				a.log.Error("relay stopped", "err", err)
			}
		}()
		stopRelay = func() {
			cancelRelay()
			<-done
		}
		defer stopRelay()
	}

	planner := application.NewPlanner(a.log, filesystem.NewPayeeDir(a.cfg.Payees), b.ledger, gw, application.Options{
		Reserve:  a.cfg.ReserveAmount(),
		Splitter: newSplitter(a.cfg),
		Journal:  b.journal,
	})
	sum, runErr := planner.Run(ctx)
	printSummary(out, sum)

	if b.relay != nil {
		stopRelay()
		drainCtx, cancelDrain := context.WithTimeout(context.WithoutCancel(ctx), drainTimeout)
		defer cancelDrain()
		sent, err := b.relay.Drain(drainCtx)
		if err != nil {
			a.log.Error("outbox drain failed", "err", err)
		}
		a.log.Info("outbox drained", "sent", sent)
	}
	return runErr
}

func printSummary(w io.Writer, sum application.Summary) {
	for _, d := range sum.Transfers {
		fmt.Fprintf(w, "Transf: %s - %s (%s, %s)\n", d.TransactionID, d.Status, d.PayeeID, d.Amount.StringFixed(domain.AmountPlaces))
	}
	fmt.Fprintf(w, "run %s: paid %d, skipped %d, disbursed %s, remaining %s\n",
		sum.RunID, sum.Paid, sum.Skipped,
		sum.Disbursed.StringFixed(domain.AmountPlaces),
		sum.Remaining.StringFixed(domain.AmountPlaces))
}
