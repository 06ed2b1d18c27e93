package main

import (
	"log/slog"

	"github.com/dmehra2102/pix-disburser/internal/config"
	"github.com/dmehra2102/pix-disburser/pkg/logging"
	"github.com/spf13/cobra"
)

type app struct {
	cfg config.Config
	log *slog.Logger

	configPath string
	envFile    string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "disburse",
		Short:         "Split an Asaas balance across PIX payees, paying each one once",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.load(cmd)
		},
	}

	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "YAML config file")
	root.PersistentFlags().StringVar(&a.envFile, "env-file", ".env", "dotenv file loaded before the environment")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "debug, info, warn or error")

	root.AddCommand(a.runCmd())
	root.AddCommand(a.balanceCmd())
	root.AddCommand(a.ledgerCmd())
	return root
}

func (a *app) load(cmd *cobra.Command) error {
	cfg, err := config.Load(a.configPath, a.envFile)
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		cfg.LogLevel = a.logLevel
	}
	if err := applyFlags(cmd, &cfg); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	a.cfg = cfg
	a.log = logging.NewWithWriter(cmd.ErrOrStderr(), cfg.LogLevel).With("service", "pix-disburser")
	return nil
}

// ledgerFlags are shared by every command that touches the ledger.
func ledgerFlags(cmd *cobra.Command) {
	cmd.Flags().String("ledger-backend", "", "ledger backend: file, redis or postgres")
	cmd.Flags().String("ledger", "", "ledger file path (file backend)")
	cmd.Flags().String("ledger-name", "", "ledger key (redis and postgres backends)")
}

// applyFlags copies explicitly set flags over the loaded configuration.
func applyFlags(cmd *cobra.Command, cfg *config.Config) error {
	targets := map[string]*string{
		"env":            &cfg.Asaas.Env,
		"payees":         &cfg.Payees,
		"ledger-backend": &cfg.Ledger.Backend,
		"ledger":         &cfg.Ledger.Path,
		"ledger-name":    &cfg.Ledger.Name,
		"reserve":        &cfg.Reserve,
		"split":          &cfg.Split,
		"fixed-amount":   &cfg.FixedAmount,
	}
	for name, dst := range targets {
		f := cmd.Flags().Lookup(name)
		if f == nil || !f.Changed {
			continue
		}
		v, err := cmd.Flags().GetString(name)
		if err != nil {
			return err
		}
		*dst = v
	}
	if f := cmd.Flags().Lookup("guard"); f != nil && f.Changed {
		guard, err := cmd.Flags().GetBool("guard")
		if err != nil {
			return err
		}
		cfg.Redis.UseGuard = guard
	}
	return nil
}
