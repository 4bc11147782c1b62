package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"credit-ledger-bridge/config"
	"credit-ledger-bridge/internal/app"
	"credit-ledger-bridge/internal/core/domain"
	"credit-ledger-bridge/internal/core/ports"
	"credit-ledger-bridge/pkg/apperror"
	"credit-ledger-bridge/pkg/logger"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// cliState is shared by every subcommand through the persistent flags.
type cliState struct {
	configPath string
	operator   string
}

func newRootCmd() *cobra.Command {
	st := &cliState{}

	root := &cobra.Command{
		Use:   "creditctl",
		Short: "Operate the credit ledger bridge",
		Long: `creditctl runs operator tasks against the configured store and ledger.
It takes the same per-credit locks as the API server, so it is safe to run
while the server is serving requests.`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&st.configPath, "config", "c", "", "Path to config file (default ./config.yaml)")
	root.PersistentFlags().StringVar(&st.operator, "operator", "", "User id recorded as the acting admin")

	root.AddCommand(
		newMigrateCmd(st),
		newReconcileCmd(st),
		newReattachCmd(st),
		newReplayCmd(st),
		newClearCmd(st),
		newStatsCmd(st),
	)
	return root
}

func (st *cliState) loadConfig(cmd *cobra.Command) (*config.Config, zerolog.Logger, error) {
	cfg, err := config.Load(st.configPath)
	if err != nil {
		return nil, zerolog.Nop(), err
	}
	// Logs go to stderr so stdout stays machine readable.
	return cfg, logger.NewWithWriter(cfg.Log.Level, cmd.ErrOrStderr()), nil
}

// open wires the full service graph and returns the admin caller the
// command acts as.
func (st *cliState) open(cmd *cobra.Command) (*app.App, ports.Caller, error) {
	var caller ports.Caller
	if st.operator != "" {
		id, err := uuid.Parse(st.operator)
		if err != nil {
			return nil, caller, fmt.Errorf("invalid --operator: %w", err)
		}
		caller.UserID = id
	}
	caller.Role = domain.RoleAdmin

	cfg, log, err := st.loadConfig(cmd)
	if err != nil {
		return nil, caller, err
	}
	if cfg.Store.Driver == config.DriverMemory {
		log.Warn().Msg("memory store selected; creditctl sees an empty store")
	}

	a, err := app.New(cmd.Context(), cfg, log)
	if err != nil {
		return nil, caller, err
	}
	return a, caller, nil
}

// run opens the app, calls fn and prints its result as JSON.
func (st *cliState) run(cmd *cobra.Command, fn func(ctx context.Context, a *app.App, caller ports.Caller) (any, error)) error {
	a, caller, err := st.open(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	out, err := fn(cmd.Context(), a, caller)
	if err != nil {
		// A partial completion carries the resume token the operator needs.
		var appErr *apperror.AppError
		if errors.As(err, &appErr) && appErr.Details != nil {
			_ = printJSON(cmd.OutOrStdout(), appErr.Details)
		}
		return err
	}
	return printJSON(cmd.OutOrStdout(), out)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func parseCreditID(raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid credit id %q", raw)
	}
	return id, nil
}
