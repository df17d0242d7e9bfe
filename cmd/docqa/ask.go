package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/brunobiangulo/docqa"
	"github.com/brunobiangulo/docqa/llm"
	"github.com/brunobiangulo/docqa/parser"
)

func newAskCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ask <file> <question>",
		Short: "Answer a question about a PDF or DOCX file",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			if cfg.LLM.APIKey == "" {
				return fmt.Errorf("%w: set GEMINI_API_KEY or llm.api_key", docqa.ErrMissingAPIKey)
			}
			question := strings.TrimSpace(strings.Join(args[1:], " "))
			if question == "" {
				return docqa.ErrEmptyQuestion
			}

			ex := parser.NewExtractor(parser.NewRegistry(cfg.ChainConfig()), nil)
			res, err := ex.ExtractText(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			ans, err := llm.NewGateway(cfg.LLM, nil).Answer(cmd.Context(), llm.AnswerRequest{
				DocumentText: res.Text,
				Question:     question,
			})
			if err != nil {
				return err
			}

			_, err = fmt.Fprintln(cmd.OutOrStdout(), ans.Text)
			if err == nil && ans.Truncated {
				fmt.Fprintf(cmd.ErrOrStderr(), "note: only the first %d characters of the document were sent\n", cfg.LLM.MaxChars)
			}
			return err
		},
	}
	return cmd
}
