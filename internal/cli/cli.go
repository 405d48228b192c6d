// Package cli provides the folio command line interface.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nous-labs/folio/internal/daemon"
	"github.com/nous-labs/folio/pkg/catalog"
)

const (
	rootUse              = "folio"
	rootShortDescription = "portfolio chat assistant"
	rootLongDescription  = `folio answers questions about a portfolio owner and their projects.
It serves the chat API for the website, can bridge into Matrix rooms, and
offers terminal commands for chatting, FAQ answers and the image gallery.`

	configFlagName   = "config"
	logLevelFlagName = "log-level"
)

// BuildInfo is stamped into the binary at link time.
type BuildInfo struct {
	Version string
	Commit  string
}

// rootOptions are the persistent flags shared by every subcommand.
type rootOptions struct {
	configPath string
	logLevel   string
}

// Execute runs the folio application.
func Execute(ctx context.Context, info BuildInfo) error {
	return newRootCommand(info).ExecuteContext(ctx)
}

func newRootCommand(info BuildInfo) *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:          rootUse,
		Short:        rootShortDescription,
		Long:         rootLongDescription,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level, err := parseLevel(opts.logLevel)
			if err != nil {
				return err
			}
			// Logs go to stderr so command output stays clean.
			setupLogger(cmd.ErrOrStderr(), level)
			return nil
		},
	}
	root.PersistentFlags().StringVar(&opts.configPath, configFlagName, os.Getenv("FOLIO_CONFIG_PATH"), "path to config file (JSON)")
	root.PersistentFlags().StringVar(&opts.logLevel, logLevelFlagName, envOr("FOLIO_LOG_LEVEL", "info"), "log level: debug, info, warn, error")

	root.AddCommand(
		newServeCommand(opts, info),
		newChatCommand(opts),
		newAskCommand(opts),
		newImagesCommand(opts),
		newVersionCommand(info),
	)
	return root
}

func setupLogger(w io.Writer, level slog.Level) {
	slog.SetDefault(slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})))
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return 0, fmt.Errorf("invalid --%s %q: %w", logLevelFlagName, s, err)
	}
	return level, nil
}

// loadConfig reads the config named by --config, or the environment.
func (o *rootOptions) loadConfig() (*daemon.Config, error) {
	cfg, err := daemon.LoadConfig(o.configPath)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadCatalog reads the config and then the catalog it points at.
func (o *rootOptions) loadCatalog() (*daemon.Config, *catalog.Catalog, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, nil, err
	}
	c, err := catalog.Load(cfg.Catalog.ProfilePath, cfg.Catalog.ProjectsPath)
	if err != nil {
		return nil, nil, fmt.Errorf("load catalog: %w", err)
	}
	return cfg, c, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
