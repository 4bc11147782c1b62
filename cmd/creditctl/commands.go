package main

import (
	"context"
	"errors"
	"fmt"

	"credit-ledger-bridge/config"
	pgStorage "credit-ledger-bridge/internal/adapter/storage/postgres"
	"credit-ledger-bridge/internal/app"
	"credit-ledger-bridge/internal/core/ports"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func newMigrateCmd(st *cliState) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the embedded database schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := st.loadConfig(cmd)
			if err != nil {
				return err
			}
			if cfg.Store.Driver != config.DriverPostgres {
				return fmt.Errorf("migrate needs store.driver=%s, got %q", config.DriverPostgres, cfg.Store.Driver)
			}

			pool, err := pgStorage.NewPool(cmd.Context(), cfg.Database, log)
			if err != nil {
				return err
			}
			defer pool.Close()

			if err := pgStorage.ApplySchema(cmd.Context(), pool, log); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "schema up to date")
			return nil
		},
	}
}

func newReconcileCmd(st *cliState) *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile CREDIT_ID",
		Short: "Compare a credit with the ledger and print the converging action",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseCreditID(args[0])
			if err != nil {
				return err
			}
			return st.run(cmd, func(ctx context.Context, a *app.App, caller ports.Caller) (any, error) {
				return a.Coordinator.ReconcileCredit(ctx, caller, id)
			})
		},
	}
}

func newReattachCmd(st *cliState) *cobra.Command {
	return &cobra.Command{
		Use:   "reattach CREDIT_ID LEDGER_CREDIT_ID",
		Short: "Bind a validated credit to a token minted on the ledger",
		Long: `reattach finishes a validation whose ledger mint succeeded but whose
binding was never stored. It never mints; the ledger credit must have been
minted for CREDIT_ID.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseCreditID(args[0])
			if err != nil {
				return err
			}
			return st.run(cmd, func(ctx context.Context, a *app.App, caller ports.Caller) (any, error) {
				return a.Coordinator.ReattachLedgerBinding(ctx, caller, id, args[1])
			})
		},
	}
}

func newReplayCmd(st *cliState) *cobra.Command {
	var buyer string
	cmd := &cobra.Command{
		Use:   "replay-settlement CREDIT_ID LEDGER_TX_REFERENCE",
		Short: "Record a settlement the ledger already confirmed",
		Long: `replay-settlement converges the store with a ledger purchase whose
settlement record or ownership transfer was lost. It never calls the ledger's
purchase, so it cannot charge the buyer twice.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseCreditID(args[0])
			if err != nil {
				return err
			}
			buyerID, err := uuid.Parse(buyer)
			if err != nil {
				return fmt.Errorf("invalid --buyer: %w", err)
			}
			return st.run(cmd, func(ctx context.Context, a *app.App, caller ports.Caller) (any, error) {
				return a.Coordinator.ReplaySettlement(ctx, caller, ports.ReplaySettlementRequest{
					CreditID:          id,
					LedgerTxReference: args[1],
					BuyerID:           &buyerID,
				})
			})
		},
	}
	cmd.Flags().StringVar(&buyer, "buyer", "", "Buyer user id (required)")
	_ = cmd.MarkFlagRequired("buyer")
	return cmd
}

func newClearCmd(st *cliState) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "clear-credits",
		Short: "Delete every credit with its checkpoints and settlements",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !yes {
				return errors.New("refusing to delete credits without --yes")
			}
			return st.run(cmd, func(ctx context.Context, a *app.App, caller ports.Caller) (any, error) {
				n, err := a.Marketplace.ClearCredits(ctx, caller)
				if err != nil {
					return nil, err
				}
				return map[string]int64{"deleted": n}, nil
			})
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "Confirm the deletion")
	return cmd
}

func newStatsCmd(st *cliState) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print record counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return st.run(cmd, func(ctx context.Context, a *app.App, caller ports.Caller) (any, error) {
				return a.Marketplace.GetStats(ctx, caller)
			})
		},
	}
}
