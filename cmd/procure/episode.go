package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/ahrav/go-procure/internal/inference"
)

func newEpisodeCmd(opts *rootOptions) *cobra.Command {
	var (
		flags requestFlags
		mode  string
		trace bool
	)
	cmd := &cobra.Command{
		Use:   "episode <query>",
		Short: "Run the five-action episode with reward tracking and inference",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if mode == "" {
				mode = opts.cfg.Inference.Mode
			}
			m, err := inference.ParseMode(mode)
			if err != nil {
				return eris.Wrap(err, "mode")
			}
			return withApp(cmd.Context(), opts, func(a *app) error {
				req, err := a.request(&flags, args[0])
				if err != nil {
					return err
				}
				ep, err := a.orch.RunEpisode(cmd.Context(), req, m)
				if err != nil {
					return eris.Wrap(err, "episode")
				}
				return printEpisode(cmd.OutOrStdout(), ep, flags.json, trace)
			})
		},
	}
	flags.bind(cmd)
	cmd.Flags().StringVar(&mode, "mode", "", "reasoning mode: forward, backward or hybrid (default from config)")
	cmd.Flags().BoolVar(&trace, "trace", false, "print the reasoning trace")
	return cmd
}
