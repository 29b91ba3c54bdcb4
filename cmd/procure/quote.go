package main

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/ahrav/go-procure/internal/application"
)

// requestFlags are the buyer request flags shared by quote, episode and
// feedback record.
type requestFlags struct {
	budget   float64
	deadline int
	vendors  []string
	weights  []float64
	json     bool
}

func (f *requestFlags) bind(cmd *cobra.Command) {
	cmd.Flags().Float64Var(&f.budget, "budget", 0, "budget for the purchase (required)")
	cmd.Flags().IntVar(&f.deadline, "deadline", -1, "latest acceptable delivery in days (default from config)")
	cmd.Flags().StringSliceVar(&f.vendors, "vendor", nil, "preferred vendor, repeatable")
	cmd.Flags().Float64SliceVar(&f.weights, "weights", nil, "cost,evidence,availability weights summing to 1")
	cmd.Flags().BoolVar(&f.json, "json", false, "print JSON instead of a table")
	_ = cmd.MarkFlagRequired("budget")
}

// withApp wires the process for one command and tears it down afterwards.
func withApp(ctx context.Context, opts *rootOptions, fn func(*app) error) error {
	a, err := newApp(ctx, opts.cfg, opts.log)
	if err != nil {
		return err
	}
	runErr := fn(a)
	if err := a.close(os.Stderr); err != nil && runErr == nil {
		return err
	}
	return runErr
}

func newQuoteCmd(opts *rootOptions) *cobra.Command {
	var flags requestFlags
	cmd := &cobra.Command{
		Use:   "quote <query>",
		Short: "Rank supplier offers for a query and recommend one",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), opts, func(a *app) error {
				req, err := a.request(&flags, args[0])
				if err != nil {
					return err
				}
				q, err := a.orch.Quote(cmd.Context(), req)
				if err != nil {
					// The quote still reaches the buyer, with the failure as its notes.
					if printErr := printQuote(cmd.OutOrStdout(), application.ErrorQuote(req, err), flags.json); printErr != nil {
						return printErr
					}
					return err
				}
				return printQuote(cmd.OutOrStdout(), q, flags.json)
			})
		},
	}
	flags.bind(cmd)
	return cmd
}
