package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"ventureai/internal/analysis"
	"ventureai/internal/report"
)

func (c *cli) sessionCmd() *cobra.Command {
	var user string
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Find or create the agent session for a user",
		RunE: func(cmd *cobra.Command, _ []string) error {
			clients, err := c.aws(cmd.Context())
			if err != nil {
				return err
			}
			broker, err := clients.Broker()
			if err != nil {
				return err
			}
			s, created, err := broker.FindOrCreate(cmd.Context(), user, nil)
			if err != nil {
				return err
			}
			return c.printJSON(map[string]any{"session_id": s.ID, "state": s.State, "created": created})
		},
	}
	cmd.Flags().StringVar(&user, "user", "", "user id (required)")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func (c *cli) analyzeCmd() *cobra.Command {
	var req analysis.Request
	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Analyze a pitch deck PDF and store the investment memo",
		Example: `  ventureai analyze --user u1 --session 3f2a... --pdf-url https://example.com/deck.pdf`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			clients, err := c.aws(cmd.Context())
			if err != nil {
				return err
			}
			svc, err := clients.AnalysisService(cmd.Context())
			if err != nil {
				return err
			}
			res, err := svc.Generate(cmd.Context(), req)
			if err != nil {
				return err
			}
			return c.printJSON(res)
		},
	}
	cmd.Flags().StringVar(&req.UserID, "user", "", "user id (required)")
	cmd.Flags().StringVar(&req.SessionID, "session", "", "session id (required)")
	cmd.Flags().StringVar(&req.PDFURL, "pdf-url", "", "URL of the pitch deck PDF (required)")
	cmd.Flags().StringVar(&req.Prompt, "prompt", "", "override the default analysis prompt")
	return cmd
}

func (c *cli) askCmd() *cobra.Command {
	var req analysis.AskRequest
	cmd := &cobra.Command{
		Use:   "ask",
		Short: "Ask a question about the analysis selected in a session",
		RunE: func(cmd *cobra.Command, _ []string) error {
			clients, err := c.aws(cmd.Context())
			if err != nil {
				return err
			}
			svc, err := clients.AnalysisService(cmd.Context())
			if err != nil {
				return err
			}
			ans, err := svc.Ask(cmd.Context(), req)
			if err != nil {
				return err
			}
			return c.printJSON(ans)
		},
	}
	cmd.Flags().StringVar(&req.UserID, "user", "", "user id (required)")
	cmd.Flags().StringVar(&req.SessionID, "session", "", "session id (required)")
	cmd.Flags().StringVar(&req.Question, "question", "", "question to ask (required)")
	return cmd
}

func (c *cli) extractCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "extract <pdf-url>",
		Short: "Extract the text of a PDF with Textract",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			clients, err := c.aws(cmd.Context())
			if err != nil {
				return err
			}
			x, err := clients.Extractor()
			if err != nil {
				return err
			}
			res, err := x.ExtractURL(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return c.printJSON(res)
		},
	}
}

// renderCmd works offline: it turns a saved memo JSON into the report PDF.
func (c *cli) renderCmd() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "render <memo.json>",
		Short: "Render a saved investment memo JSON file as a PDF report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			pdf, err := report.NewPDFRenderer().Render(doc)
			if err != nil {
				return fmt.Errorf("render %s: %w", args[0], err)
			}
			if err := os.WriteFile(out, pdf, 0o644); err != nil {
				return err
			}
			return c.printJSON(map[string]any{"output": out, "bytes": len(pdf)})
		},
	}
	cmd.Flags().StringVarP(&out, "output", "o", "investment_memo.pdf", "output PDF path")
	return cmd
}
