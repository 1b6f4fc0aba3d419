// Package commands implements the expensectl command line.
package commands

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"expenses/internal/client"
	"expenses/internal/config"
	"expenses/internal/replica"
)

// session is the state shared by every subcommand of one invocation.
type session struct {
	apiURL  string
	timeout time.Duration
	retries int
	replica *replica.Replica
}

// NewRootCommand creates the root CLI command with all subcommands registered.
func NewRootCommand() *cobra.Command {
	cfg := config.Load()
	s := &session{}

	rootCmd := &cobra.Command{
		Use:   "expensectl",
		Short: "Track expenses against an expenses API",
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			effective := *cfg
			effective.APIURL, effective.ClientTimeout, effective.ClientRetries = s.apiURL, s.timeout, s.retries
			if err := effective.ValidateClient(); err != nil {
				return err
			}
			remote := client.New(s.apiURL, client.WithTimeout(s.timeout))
			s.replica = replica.New(remote,
				replica.WithRetry(s.retries, 200*time.Millisecond),
				replica.WithAlerter(newAlerter(cmd.ErrOrStderr())))
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVar(&s.apiURL, "api", cfg.APIURL, "expenses API base URL")
	rootCmd.PersistentFlags().DurationVar(&s.timeout, "timeout", cfg.ClientTimeout, "per-request timeout")
	rootCmd.PersistentFlags().IntVar(&s.retries, "retries", cfg.ClientRetries, "attempts for idempotent requests on network failures")

	rootCmd.AddCommand(
		newListCommand(s),
		newAddCommand(s),
		newEditCommand(s),
		newRemoveCommand(s),
		newReportCommand(s),
	)

	return rootCmd
}

// newAlerter reports rolled back changes on w, naming the failure kind.
func newAlerter(w io.Writer) replica.Alerter {
	return replica.AlertFunc(func(f replica.Failure) {
		target := f.ID
		if target == "" {
			target = "expenses"
		}
		fmt.Fprintf(w, "warning: %s %s failed (%s): %v\n", f.Op, target, f.Kind, f.Err)
	})
}
