package cmd

import (
	"os"
	"time"

	"github.com/atotto/clipboard"
	"github.com/olekukonko/tablewriter"
	"github.com/rs/zerolog/log"
	"github.com/schollz/progressbar/v3"
	"github.com/skratchdot/open-golang/open"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/squads-cli/squads-cli/auth"
	"github.com/squads-cli/squads-cli/store"
)

// authCmd groups the authentication lifecycle subcommands.
func authCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage authentication",
	}

	cmd.AddCommand(
		loginCmd(),
		statusCmd(),
		logoutCmd(),
		refreshCmd(),
		tokenCmd(),
	)

	return cmd
}

// loginCmd runs the interactive device authorization flow and stores the
// resulting refresh token.
func loginCmd() *cobra.Command {
	var tenant string
	var copyCode bool
	var noBrowser bool

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Login using the device code flow",
		Run: func(cmd *cobra.Command, args []string) {
			ctx := cmd.Context()

			d, err := buildDeps(tenant)
			if err != nil {
				cmd.PrintErrln("Error:", classify(err).Message)
				return
			}

			session, err := d.flow.Initiate(ctx, d.cfg.Auth.Tenant)
			if err != nil {
				cmd.PrintErrln("Error:", classify(err).Message)
				return
			}

			printSignInInstructions(cmd, session)

			if copyCode {
				if err := clipboard.WriteAll(session.UserCode); err != nil {
					cmd.PrintErrln("Warning: could not copy the code to the clipboard.")
				} else {
					cmd.Println("The code was copied to the clipboard.")
				}
			}

			interactive := term.IsTerminal(int(os.Stdout.Fd()))
			if !noBrowser && interactive {
				cmd.Println("Opening browser:", session.VerificationURL)
				if err := open.Run(session.VerificationURL); err != nil {
					cmd.PrintErrln("Warning: could not open the browser. Open this URL manually:")
					cmd.Println("  " + session.VerificationURL)
				}
			}

			cmd.Println()
			stopSpinner := startSpinner(interactive, "Waiting for approval...")
			record, err := d.flow.Poll(ctx, session)
			stopSpinner()
			if err != nil {
				cmd.PrintErrln("Error:", classify(err).Message)
				return
			}

			if err := d.broker.Seed(record); err != nil {
				cmd.PrintErrln("Error:", classify(err).Message)
				return
			}

			cmd.Println("Successfully authenticated.")
		},
	}

	cmd.Flags().StringVarP(&tenant, "tenant", "t", "", "Tenant to sign in against (default: from the config file)")
	cmd.Flags().BoolVarP(&copyCode, "copy-code", "c", false, "Copy the sign-in code to the clipboard")
	cmd.Flags().BoolVar(&noBrowser, "no-browser", false, "Do not open the browser automatically")

	return cmd
}

// printSignInInstructions tells the user how to complete the device login.
// The provider sends a ready-made message covering the URL and code; the
// hand-built prompt is only a fallback for when it is absent.
func printSignInInstructions(cmd *cobra.Command, session *auth.DeviceSession) {
	if session.Message != "" {
		cmd.Println(session.Message)
		return
	}
	cmd.Println("To sign in, open a browser and go to:")
	cmd.Println("  " + session.VerificationURL)
	cmd.Println("Enter this code when prompted:")
	cmd.Println("  " + session.UserCode)
}

// statusCmd reports the persisted authentication state per scope.
func statusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Check authentication status",
		Run: func(cmd *cobra.Command, args []string) {
			d, err := buildDeps("")
			if err != nil {
				cmd.PrintErrln("Error:", classify(err).Message)
				return
			}

			st, err := d.broker.Status()
			if err != nil {
				cmd.PrintErrln("Error:", classify(err).Message)
				return
			}

			if !st.Authenticated {
				cmd.Println("Not authenticated.")
				cmd.Println("Run 'squads auth login' to authenticate.")
				return
			}

			cmd.Println("Authenticated")
			cmd.Println("  Tenant:", st.Tenant)

			if profile, err := d.facade.Me(cmd.Context()); err == nil {
				if profile.DisplayName != "" {
					cmd.Println("  User:", profile.DisplayName)
				}
				if profile.Mail != "" {
					cmd.Println("  Email:", profile.Mail)
				}
			} else {
				log.Debug().Err(err).Msg("Could not fetch the user profile")
				cmd.Println("  (Could not fetch the user profile; tokens may need renewal.)")
			}

			cmd.Println()
			table := tablewriter.NewWriter(os.Stdout)
			table.SetHeader([]string{"Scope", "Token", "Expires"})
			table.SetAlignment(tablewriter.ALIGN_LEFT)
			table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
			table.SetAutoWrapText(false)
			for _, s := range st.Scopes {
				state := "none"
				expires := "-"
				if s.Cached {
					state = "expired"
					if s.Valid {
						state = "valid"
					}
					expires = s.ExpiresAt.Local().Format(time.RFC1123)
				}
				table.Append([]string{s.Scope.ShortName(), state, expires})
			}
			table.Render()
		},
	}
	return cmd
}

// logoutCmd removes all cached tokens.
func logoutCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "logout",
		Short: "Logout and clear cached tokens",
		Run: func(cmd *cobra.Command, args []string) {
			d, err := buildDeps("")
			if err != nil {
				cmd.PrintErrln("Error:", classify(err).Message)
				return
			}
			if err := d.broker.Logout(); err != nil {
				cmd.PrintErrln("Error:", classify(err).Message)
				return
			}
			cmd.Println("Logged out successfully.")
		},
	}
	return cmd
}

// refreshCmd force-renews the access token for every scope.
func refreshCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "refresh",
		Short: "Renew the access tokens for all scopes",
		Run: func(cmd *cobra.Command, args []string) {
			d, err := buildDeps("")
			if err != nil {
				cmd.PrintErrln("Error:", classify(err).Message)
				return
			}

			for _, scope := range store.AllScopes {
				if _, err := d.broker.RefreshAccessToken(cmd.Context(), scope); err != nil {
					cmd.PrintErrln("Error:", classify(err).Message)
					return
				}
				cmd.Println("Renewed token for scope:", scope.ShortName())
			}
			cmd.Println("Tokens refreshed successfully.")
		},
	}
	return cmd
}

// tokenCmd prints a bearer token for one scope, for scripting against the
// backend APIs directly.
func tokenCmd() *cobra.Command {
	var scopeName string

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Print an access token for a scope",
		Run: func(cmd *cobra.Command, args []string) {
			scope, err := store.ParseScope(scopeName)
			if err != nil {
				cmd.PrintErrln("Error:", err.Error())
				return
			}

			d, err := buildDeps("")
			if err != nil {
				cmd.PrintErrln("Error:", classify(err).Message)
				return
			}

			token, err := d.broker.AccessToken(cmd.Context(), scope)
			if err != nil {
				cmd.PrintErrln("Error:", classify(err).Message)
				return
			}
			cmd.Println(token)
		},
	}

	cmd.Flags().StringVarP(&scopeName, "scope", "s", "graph", "Scope to mint the token for [chat, agg, graph, realtime]")

	return cmd
}

// startSpinner shows an indeterminate spinner while the login poll waits for
// the user. It returns a stop function; on a non-interactive stdout it shows
// nothing and the stop function is a no-op.
func startSpinner(interactive bool, description string) func() {
	if !interactive {
		return func() {}
	}

	bar := progressbar.NewOptions(-1,
		progressbar.OptionSetDescription(description),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionClearOnFinish(),
	)
	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(120 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				_ = bar.Add(1)
			}
		}
	}()
	return func() {
		close(done)
		_ = bar.Finish()
	}
}
