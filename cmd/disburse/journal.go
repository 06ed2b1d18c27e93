package main

import (
	"context"
	"errors"
	"log/slog"

	"github.com/dmehra2102/pix-disburser/internal/disbursement/application"
	"github.com/dmehra2102/pix-disburser/internal/disbursement/domain"
)

type logJournal struct {
	log *slog.Logger
}

func (j logJournal) Record(ctx context.Context, d domain.Disbursement) error {
	j.log.InfoContext(ctx, "transfer recorded",
		"run_id", d.RunID,
		"payee_id", d.PayeeID,
		"amount", d.Amount.StringFixed(domain.AmountPlaces),
		"transaction_id", d.TransactionID,
		"status", d.Status)
	return nil
}

type multiJournal []application.Journal

func (m multiJournal) Record(ctx context.Context, d domain.Disbursement) error {
	var errs []error
	for _, j := range m {
		if err := j.Record(ctx, d); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
