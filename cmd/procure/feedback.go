package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/ahrav/go-procure/internal/domain"
)

func newFeedbackCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "feedback",
		Short: "Record buyer selections and inspect what they teach",
	}
	cmd.AddCommand(newFeedbackRecordCmd(opts))
	cmd.AddCommand(newFeedbackStatsCmd(opts))
	cmd.AddCommand(newFeedbackWeightsCmd(opts))
	cmd.AddCommand(newFeedbackVendorsCmd(opts))
	return cmd
}

func newFeedbackRecordCmd(opts *rootOptions) *cobra.Command {
	var (
		flags    requestFlags
		query    string
		selected string
		rating   int
		comment  string
	)
	cmd := &cobra.Command{
		Use:   "record",
		Short: "Quote the query again and record which offer the buyer chose",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd.Context(), opts, func(a *app) error {
				req, err := a.request(&flags, query)
				if err != nil {
					return err
				}
				q, err := a.orch.Quote(cmd.Context(), req)
				if err != nil {
					return eris.Wrap(err, "quote")
				}
				sel, err := a.orch.RecordFeedback(cmd.Context(), q, selected, rating, comment)
				if err != nil {
					return eris.Wrapf(err, "record selection of %s", selected)
				}
				return printSelection(cmd.OutOrStdout(), sel, flags.json)
			})
		},
	}
	flags.bind(cmd)
	cmd.Flags().StringVar(&query, "query", "", "query the quote was generated for (required)")
	cmd.Flags().StringVar(&selected, "selected", "", "SKU the buyer chose (required)")
	cmd.Flags().IntVar(&rating, "rating", 0, "rating from 1 to 5, 0 for none")
	cmd.Flags().StringVar(&comment, "comment", "", "free text comment")
	_ = cmd.MarkFlagRequired("query")
	_ = cmd.MarkFlagRequired("selected")
	return cmd
}

func newFeedbackStatsCmd(opts *rootOptions) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Summarise recorded decisions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd.Context(), opts, func(a *app) error {
				stats, err := a.store.Statistics(cmd.Context())
				if err != nil {
					return eris.Wrap(err, "statistics")
				}
				return printStatistics(cmd.OutOrStdout(), stats, asJSON)
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON instead of a table")
	return cmd
}

func newFeedbackWeightsCmd(opts *rootOptions) *cobra.Command {
	var (
		weights []float64
		asJSON  bool
	)
	cmd := &cobra.Command{
		Use:   "weights",
		Short: "Blend the given weights with the preferences learned from feedback",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd.Context(), opts, func(a *app) error {
				user := a.cfg.Pipeline.DefaultWeights
				if len(weights) > 0 {
					if len(weights) != 3 {
						return eris.Wrapf(domain.ErrInvalidConfiguration, "weights: want 3 values, got %d", len(weights))
					}
					user = domain.Weights{Cost: weights[0], Evidence: weights[1], Availability: weights[2]}
				}
				prefs, err := a.store.Preferences(cmd.Context())
				if err != nil {
					return eris.Wrap(err, "preferences")
				}
				adapted, err := a.store.AdaptiveWeights(cmd.Context(), user)
				if err != nil {
					return eris.Wrap(err, "adaptive weights")
				}
				return printWeights(cmd.OutOrStdout(), user, prefs, adapted, asJSON)
			})
		},
	}
	cmd.Flags().Float64SliceVar(&weights, "weights", nil, "cost,evidence,availability weights (default from config)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON instead of a table")
	return cmd
}

func newFeedbackVendorsCmd(opts *rootOptions) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "vendors",
		Short: "Show how often each vendor was chosen and how it was rated",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd.Context(), opts, func(a *app) error {
				vendors, err := a.store.VendorPerformance(cmd.Context())
				if err != nil {
					return eris.Wrap(err, "vendor performance")
				}
				return printVendors(cmd.OutOrStdout(), vendors, asJSON)
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON instead of a table")
	return cmd
}
