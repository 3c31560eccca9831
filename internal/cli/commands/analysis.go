package commands

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/dbsentry/internal/api/client"
)

func NewAnalysisCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analysis",
		Short: "Deep analysis reports",
	}

	cmd.AddCommand(newSlowQueriesCommand())
	cmd.AddCommand(newTableHealthCommand())
	cmd.AddCommand(newRunAnalysisCommand())
	return cmd
}

func newSlowQueriesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "slow-queries",
		Short: "Show the latest slow query digest",
		RunE: func(cmd *cobra.Command, args []string) error {
			c := client.NewClient()
			report, err := c.SlowQueries()
			if err != nil {
				return fmt.Errorf("failed to get slow query report: %v", err)
			}

			fmt.Printf("Generated at %s (threshold %.0fms)\n",
				report.GeneratedAt.Format(time.RFC3339), report.Threshold)
			if !report.Available {
				fmt.Println("Statement statistics are not available on this server")
				return nil
			}
			if len(report.Queries) == 0 {
				fmt.Println("No queries above the slow threshold")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
			fmt.Fprintln(w, "SCHEMA\tAVG MS\tMAX MS\tCALLS\tROWS/CALL\tQUERY")
			for _, q := range report.Queries {
				fmt.Fprintf(w, "%s\t%.1f\t%.1f\t%d\t%.0f\t%s\n",
					q.Schema, q.AvgLatencyMs, q.MaxLatencyMs, q.ExecCount,
					q.AvgRowsExamined, truncate(q.Digest, 80))
			}
			return w.Flush()
		},
	}
}

func newTableHealthCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "tables",
		Short: "Show the latest table health report",
		RunE: func(cmd *cobra.Command, args []string) error {
			c := client.NewClient()
			report, err := c.TableHealth()
			if err != nil {
				return fmt.Errorf("failed to get table health report: %v", err)
			}

			fmt.Printf("Generated at %s, %d tables scanned\n",
				report.GeneratedAt.Format(time.RFC3339), report.TablesScanned)
			if len(report.Recommendations) == 0 {
				fmt.Println("No recommendations")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
			fmt.Fprintln(w, "TABLE\tISSUE\tRECOMMENDATION")
			for _, r := range report.Recommendations {
				fmt.Fprintf(w, "%s\t%s\t%s\n", r.Table, r.Issue, r.Recommendation)
			}
			return w.Flush()
		},
	}
}

func newRunAnalysisCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run both analysis jobs now",
		RunE: func(cmd *cobra.Command, args []string) error {
			c := client.NewClient()
			if err := c.RunAnalysis(); err != nil {
				return fmt.Errorf("failed to run analysis: %v", err)
			}
			fmt.Println("Analysis complete; use 'analysis slow-queries' and 'analysis tables' to view")
			return nil
		},
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
