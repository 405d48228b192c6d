package cli

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/nous-labs/folio/internal/daemon"
)

func newServeCommand(opts *rootOptions, info BuildInfo) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "run the chat API, gallery and optional Matrix bridge",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			slog.Info("folio starting",
				"version", info.Version,
				"config", opts.configPath,
				"provider", cfg.LLM.Provider,
			)

			d, err := daemon.New(cfg)
			if err != nil {
				return err
			}
			defer d.Close()

			ctx := cmd.Context()
			if err := d.Run(ctx); err != nil && ctx.Err() == nil {
				return err
			}
			slog.Info("folio stopped")
			return nil
		},
	}
}
