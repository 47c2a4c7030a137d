package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/ErlanBelekov/safejob-auth/internal/authclient"
	"github.com/ErlanBelekov/safejob-auth/internal/domain"
	"github.com/ErlanBelekov/safejob-auth/internal/session"
	"github.com/spf13/cobra"
)

type envGetter func() (*env, error)

func newRequestCmd(get envGetter) *cobra.Command {
	return &cobra.Command{
		Use:   "request <email>",
		Short: "Email a sign-in link",
		Long:  `Ask the auth service to email a magic sign-in link. This never signs you in by itself.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := get()
			if err != nil {
				return err
			}
			if err := e.session.RequestMagicLink(cmd.Context(), args[0]); err != nil {
				return describe(err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Sign-in link sent to %s.\n", args[0])
			return nil
		},
	}
}

func newRedeemCmd(get envGetter) *cobra.Command {
	return &cobra.Command{
		Use:   "redeem <token>",
		Short: "Sign in with the token from a magic link",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := get()
			if err != nil {
				return err
			}
			cred, err := e.session.RedeemToken(cmd.Context(), args[0])
			if err != nil && !errors.Is(err, domain.ErrStorage) {
				return describe(err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Signed in as %s (%s).\n", cred.SubjectID, cred.Role)
			if err != nil {
				fmt.Fprintln(cmd.ErrOrStderr(), "warning: credential could not be saved; this session ends with the process")
			}
			return nil
		},
	}
}

type statusView struct {
	Status    string      `json:"status"`
	SubjectID string      `json:"subjectId,omitempty"`
	Role      string      `json:"role,omitempty"`
	ExpiresAt *time.Time  `json:"expiresAt,omitempty"`
	Remote    *remoteView `json:"remote,omitempty"`
}

type remoteView struct {
	SubjectID string `json:"subjectId"`
	Role      string `json:"role"`
}

func newStatusCmd(get envGetter) *cobra.Command {
	var asJSON, checkRemote bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the current session",
		Long: `Show the session state derived from the stored credential.
With --remote, the access token is also checked against the auth service.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := get()
			if err != nil {
				return err
			}
			if checkRemote {
				if err := e.session.EnsureFresh(cmd.Context()); err != nil {
					e.logger.DebugContext(cmd.Context(), "refresh before remote check", "error", err)
				}
			}

			st := e.session.Current()
			view := statusView{Status: st.Status.String()}
			if st.HasSession() {
				view.SubjectID = st.Credential.SubjectID
				view.Role = st.Credential.Role.String()
				exp := st.Credential.ExpiresAt
				view.ExpiresAt = &exp

				if checkRemote {
					me, err := e.remote.Me(cmd.Context(), st.Credential.AccessToken)
					if err != nil {
						return describe(err)
					}
					view.Remote = &remoteView{SubjectID: me.SubjectID, Role: me.Role}
				}
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(view)
			}
			writeStatus(cmd.OutOrStdout(), view)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "output as JSON")
	cmd.Flags().BoolVar(&checkRemote, "remote", false, "verify the access token with the auth service")
	return cmd
}

func writeStatus(out io.Writer, v statusView) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "status:\t%s\n", v.Status)
	if v.SubjectID != "" {
		fmt.Fprintf(w, "subject:\t%s\n", v.SubjectID)
		fmt.Fprintf(w, "role:\t%s\n", v.Role)
		fmt.Fprintf(w, "expires:\t%s\n", v.ExpiresAt.Local().Format(time.RFC3339))
	}
	if v.Remote != nil {
		fmt.Fprintf(w, "remote:\t%s (%s)\n", v.Remote.SubjectID, v.Remote.Role)
	}
	_ = w.Flush()
}

func newRefreshCmd(get envGetter) *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Exchange the refresh token for a new access token",
		Long:  `Refresh the access token now. Any failure ends the session and clears the stored credential.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := get()
			if err != nil {
				return err
			}
			cred, err := e.session.Refresh(cmd.Context())
			if err != nil && !errors.Is(err, domain.ErrStorage) {
				return describe(err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Access token valid until %s.\n", cred.ExpiresAt.Local().Format(time.RFC3339))
			return nil
		},
	}
}

func newLogoutCmd(get envGetter) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and remove the stored credential",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := get()
			if err != nil {
				return err
			}
			if err := e.session.Logout(cmd.Context()); err != nil {
				return describe(err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Signed out.")
			return nil
		},
	}
}

func newOpenCmd(get envGetter) *cobra.Command {
	return &cobra.Command{
		Use:   "open <path>",
		Short: "Show what the route guard does for a path",
		Long:  `Navigate to path with the current session and print the page shown or the redirect taken.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := get()
			if err != nil {
				return err
			}
			res := e.nav.Navigate(cmd.Context(), args[0])
			if res.Decision.Allowed() {
				fmt.Fprintf(cmd.OutOrStdout(), "allow %s -> page %s\n", res.Path, res.Destination())
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "redirect %s -> %s\n", res.Path, res.Decision.Target)
			return nil
		},
	}
}

func newWatchCmd(get envGetter) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Follow the credential file and print session state changes until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := get()
			if err != nil {
				return err
			}
			states, unsubscribe := e.session.Subscribe()
			defer unsubscribe()

			ctx, cancel := context.WithCancel(cmd.Context())
			following := make(chan struct{})
			go func() {
				defer close(following)
				session.Follow(ctx, e.session, e.watcher, e.refreshEvery, e.logger)
			}()
			defer func() {
				cancel()
				<-following
			}()

			for {
				select {
				case <-ctx.Done():
					return nil
				case st, ok := <-states:
					if !ok {
						return nil
					}
					line := st.Status.String()
					if st.HasSession() {
						line += fmt.Sprintf(" %s (%s)", st.Credential.SubjectID, st.Credential.Role)
					}
					fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", time.Now().Format(time.TimeOnly), line)
				}
			}
		},
	}
}

// describe keeps the auth service's error code visible on the terminal.
func describe(err error) error {
	if code := authclient.ErrorCode(err); code != "" {
		return fmt.Errorf("%w [%s]", err, code)
	}
	return err
}
