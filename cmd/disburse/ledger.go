package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func (a *app) ledgerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ledger",
		Short: "List payee IDs already committed in the ledger",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg := a.cfg
			cfg.Redis.UseGuard = false

			b, err := openBackend(ctx, cfg, a.log, false)
			if err != nil {
				return err
			}
			defer b.Close(ctx)

			ids, err := b.ledger.Load(ctx)
			if err != nil {
				return err
			}
			for _, id := range ids {
				fmt.Fprintln(cmd.OutOrStdout(), id)
			}
			return nil
		},
	}
	ledgerFlags(cmd)
	return cmd
}
