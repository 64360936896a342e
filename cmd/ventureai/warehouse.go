package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"ventureai/internal/warehouse"
)

func (c *cli) warehouseCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "warehouse",
		Short: "Manage the Glue table behind the analyses warehouse",
	}

	setup := &cobra.Command{
		Use:   "setup",
		Short: "Create the Glue database and analyses table if missing",
		RunE: func(cmd *cobra.Command, _ []string) error {
			clients, err := c.aws(cmd.Context())
			if err != nil {
				return err
			}
			if err := clients.Schema().Ensure(cmd.Context()); err != nil {
				return err
			}
			t := clients.Table()
			return c.printJSON(map[string]any{"ok": true, "database": t.Database, "table": t.Name, "location": t.Location()})
		},
	}

	repair := &cobra.Command{
		Use:   "repair",
		Short: "Run MSCK REPAIR TABLE to register partitions found in S3",
		RunE: func(cmd *cobra.Command, _ []string) error {
			clients, err := c.aws(cmd.Context())
			if err != nil {
				return err
			}
			res, err := warehouse.RepairPartitions(cmd.Context(), clients.Runner(60*time.Second), clients.Table())
			if err != nil {
				return err
			}
			return c.printJSON(map[string]any{"ok": true, "query_id": res.QueryExecutionID, "rows": res.Rows})
		},
	}

	describe := &cobra.Command{
		Use:   "describe",
		Short: "Print the table definition from the Glue catalog",
		RunE: func(cmd *cobra.Command, _ []string) error {
			clients, err := c.aws(cmd.Context())
			if err != nil {
				return err
			}
			schema, err := clients.Schema().Describe(cmd.Context())
			if err != nil {
				return err
			}
			_, err = fmt.Fprint(c.out, warehouse.CompactSchemaText(schema))
			return err
		},
	}

	cmd.AddCommand(setup, repair, describe)
	return cmd
}

func (c *cli) queryCmd() *cobra.Command {
	var (
		user  string
		limit int
	)
	cmd := &cobra.Command{
		Use:   "query",
		Short: "Run the dashboard queries",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List the newest analyses",
		RunE: func(cmd *cobra.Command, _ []string) error {
			clients, err := c.aws(cmd.Context())
			if err != nil {
				return err
			}
			rows, err := clients.Queries().ListAnalyses(cmd.Context(), user, limit)
			if err != nil {
				return err
			}
			return c.printJSON(rows)
		},
	}
	list.Flags().StringVar(&user, "user", "", "only this user's analyses")
	list.Flags().IntVar(&limit, "limit", 50, "maximum rows")

	get := &cobra.Command{
		Use:   "get <analysis-id>",
		Short: "Show every column of one analysis",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			clients, err := c.aws(cmd.Context())
			if err != nil {
				return err
			}
			row, err := clients.Queries().GetAnalysis(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return c.printJSON(row)
		},
	}

	search := &cobra.Command{
		Use:   "search <term>",
		Short: "Find analyses by company name",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			clients, err := c.aws(cmd.Context())
			if err != nil {
				return err
			}
			rows, err := clients.Queries().SearchCompanies(cmd.Context(), args[0], limit)
			if err != nil {
				return err
			}
			return c.printJSON(rows)
		},
	}
	search.Flags().IntVar(&limit, "limit", 50, "maximum rows")

	breakdown := &cobra.Command{
		Use:   "breakdown",
		Short: "Count analyses per recommendation",
		RunE: func(cmd *cobra.Command, _ []string) error {
			clients, err := c.aws(cmd.Context())
			if err != nil {
				return err
			}
			rows, err := clients.Queries().RecommendationBreakdown(cmd.Context(), user)
			if err != nil {
				return err
			}
			return c.printJSON(rows)
		},
	}
	breakdown.Flags().StringVar(&user, "user", "", "only this user's analyses")

	var guard warehouse.GuardOptions
	sql := &cobra.Command{
		Use:   "sql <statement>",
		Short: "Run a read-only SELECT against the warehouse",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := warehouse.ValidateSelect(args[0], guard); err != nil {
				return err
			}
			clients, err := c.aws(cmd.Context())
			if err != nil {
				return err
			}
			res, err := clients.Queries().RunSQL(cmd.Context(), args[0], guard)
			if err != nil {
				return err
			}
			return c.printJSON(res)
		},
	}
	sql.Flags().StringVar(&guard.UserID, "user", "", "require the statement to be scoped to this user")
	sql.Flags().IntVar(&guard.MaxDaysLookback, "max-days", 0, "require a dt lower bound within this many days")

	cmd.AddCommand(list, get, search, breakdown, sql)
	return cmd
}
