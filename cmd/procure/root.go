package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ahrav/go-procure/internal/config"
)

// rootOptions carries the state shared by every subcommand once the
// persistent pre-run has loaded it.
type rootOptions struct {
	configPath string
	cfg        *config.Config
	log        *zap.Logger
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "procure",
		Short:         "procure ranks supplier offers against a budget and explains the choice",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			cfg, err := config.Load(opts.configPath)
			if err != nil {
				return eris.Wrap(err, "load config")
			}
			if err := config.InitLogger(cfg.Log); err != nil {
				return eris.Wrap(err, "init logger")
			}
			opts.cfg = cfg
			opts.log = zap.L()
			return nil
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if opts.log != nil {
				_ = opts.log.Sync()
			}
		},
	}
	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "config file (default ./procure.yaml when present)")

	cmd.AddCommand(newQuoteCmd(opts))
	cmd.AddCommand(newEpisodeCmd(opts))
	cmd.AddCommand(newFeedbackCmd(opts))
	return cmd
}
