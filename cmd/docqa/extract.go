package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/brunobiangulo/docqa/parser"
)

func newExtractCmd(opts *rootOptions) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "extract <file>",
		Short: "Print the text extracted from a PDF or DOCX file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}

			ex := parser.NewExtractor(parser.NewRegistry(cfg.ChainConfig()), nil)
			res, err := ex.ExtractText(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(res)
			}
			_, err = fmt.Fprintln(out, res.Text)
			return err
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print text, format and strategy as JSON")
	return cmd
}
