package main

import (
	"context"
	"encoding/json"
	"io"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"ventureai/internal/bootstrap"
	"ventureai/internal/logging"
)

type cli struct {
	envFile string
	out     io.Writer
	clients *bootstrap.Clients
}

func newRootCmd() *cobra.Command {
	c := &cli{}
	root := &cobra.Command{
		Use:           "ventureai",
		Short:         "VentureAI backend tooling",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			c.out = cmd.OutOrStdout()
			if err := godotenv.Load(c.envFile); err == nil {
				logging.Init(logging.FromEnv())
			}
		},
	}
	root.PersistentFlags().StringVar(&c.envFile, "env", ".env", "dotenv file to load if present")

	root.AddCommand(
		c.sessionCmd(),
		c.analyzeCmd(),
		c.askCmd(),
		c.extractCmd(),
		c.renderCmd(),
		c.warehouseCmd(),
		c.queryCmd(),
	)
	return root
}

// aws builds the clients on first use so offline commands never need credentials.
func (c *cli) aws(ctx context.Context) (*bootstrap.Clients, error) {
	if c.clients != nil {
		return c.clients, nil
	}
	clients, err := bootstrap.Load(ctx)
	if err != nil {
		return nil, err
	}
	c.clients = clients
	return clients, nil
}

func (c *cli) printJSON(v any) error {
	enc := json.NewEncoder(c.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
