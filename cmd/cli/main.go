package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dbsentry/internal/cli/commands"
)

var rootCmd = &cobra.Command{
	Use:   "dbsentry",
	Short: "dbsentry CLI - database performance monitoring",
	Long: `dbsentry CLI talks to a running dbsentry server.
It shows health status, collected metrics, alerts, and analysis reports.
Set DBSENTRY_API_URL to point at a non-default server.`,
}

func init() {
	rootCmd.AddCommand(commands.NewStatusCommand())
	rootCmd.AddCommand(commands.NewMetricsCommand())
	rootCmd.AddCommand(commands.NewAlertsCommand())
	rootCmd.AddCommand(commands.NewAnalysisCommand())
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
