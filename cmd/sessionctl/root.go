package main

import (
	"errors"
	"log/slog"

	ctxlog "github.com/ErlanBelekov/safejob-auth/internal/log"
	"github.com/ErlanBelekov/safejob-auth/internal/requestid"
	"github.com/spf13/cobra"
)

// NewRootCmd wires every subcommand to an env built by factory before the
// subcommand runs.
func NewRootCmd(factory envFactory) *cobra.Command {
	var e *env

	cmd := &cobra.Command{
		Use:   "sessionctl",
		Short: "Manage the local Safe Job session",
		Long: `sessionctl signs in with a magic link, keeps the stored credential
fresh and shows how the route guard treats a path for the current session.
Configuration comes from the environment (AUTH_BASE_URL, CREDENTIALS_PATH, ...).`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			ctx := requestid.WithRequestID(cmd.Context(), requestid.New())
			ctx = ctxlog.WithAttrs(ctx, slog.String("command", cmd.Name()))
			cmd.SetContext(ctx)

			built, err := factory(ctx)
			if err != nil {
				return err
			}
			e = built
			return nil
		},
		PersistentPostRun: func(_ *cobra.Command, _ []string) {
			if e != nil {
				e.session.Close()
			}
		},
	}

	get := func() (*env, error) {
		if e == nil {
			return nil, errors.New("session environment not initialised")
		}
		return e, nil
	}

	cmd.AddCommand(
		newRequestCmd(get),
		newRedeemCmd(get),
		newStatusCmd(get),
		newRefreshCmd(get),
		newLogoutCmd(get),
		newOpenCmd(get),
		newWatchCmd(get),
	)
	return cmd
}
