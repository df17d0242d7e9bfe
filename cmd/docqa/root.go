package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/brunobiangulo/docqa"
)

type rootOptions struct {
	configPath string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "docqa",
		Short:         "Store PDF and DOCX documents and ask questions about them",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	cmd.PersistentFlags().StringVar(&opts.configPath, "config", os.Getenv("DOCQA_CONFIG"), "Path to config file (YAML)")

	cmd.AddCommand(
		newServeCmd(opts),
		newExtractCmd(opts),
		newAskCmd(opts),
	)
	return cmd
}

// load reads the configuration and installs the JSON logger at the
// configured level.
func (o *rootOptions) load() (docqa.Config, error) {
	cfg, err := docqa.LoadConfig(o.configPath)
	if err != nil {
		return cfg, err
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	})))
	return cfg, nil
}
