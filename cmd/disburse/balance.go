package main

import (
	"fmt"

	"github.com/dmehra2102/pix-disburser/internal/disbursement/domain"
	"github.com/spf13/cobra"
)

func (a *app) balanceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "balance",
		Short: "Print the account balance and what a run would split",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			gw, err := newGateway(a.cfg, a.log)
			if err != nil {
				return err
			}
			balance, err := gw.Balance(cmd.Context())
			if err != nil {
				return err
			}
			available := balance.Sub(a.cfg.ReserveAmount()).Truncate(domain.AmountPlaces)
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "balance:   %s\n", balance.StringFixed(domain.AmountPlaces))
			fmt.Fprintf(out, "reserve:   %s\n", a.cfg.ReserveAmount().StringFixed(domain.AmountPlaces))
			fmt.Fprintf(out, "available: %s\n", available.StringFixed(domain.AmountPlaces))
			return nil
		},
	}
	cmd.Flags().String("env", "", "asaas environment: sandbox or prod")
	cmd.Flags().String("reserve", "", "amount kept out of the balance")
	return cmd
}
