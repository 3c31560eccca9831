package commands

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/dbsentry/internal/api/client"
)

func NewStatusCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the overall health of the monitored database",
		RunE: func(cmd *cobra.Command, args []string) error {
			c := client.NewClient()
			hs, err := c.HealthStatus()
			if err != nil {
				return fmt.Errorf("failed to get health status: %v", err)
			}

			fmt.Printf("Status:        %s\n", hs.Status)
			fmt.Printf("Summary:       %s\n", hs.Summary)
			fmt.Printf("Active alerts: %d\n", hs.ActiveAlertCount)
			if !hs.LastCheckTime.IsZero() {
				fmt.Printf("Last check:    %s\n", hs.LastCheckTime.Format(time.RFC3339))
			}
			return nil
		},
	}
	return cmd
}

func NewMetricsCommand() *cobra.Command {
	var hours int

	cmd := &cobra.Command{
		Use:   "metrics",
		Short: "Show collected metrics",
		RunE: func(cmd *cobra.Command, args []string) error {
			c := client.NewClient()

			if hours > 0 {
				return displayHistory(c, hours)
			}

			snap, err := c.LatestMetrics()
			if err != nil {
				return fmt.Errorf("failed to get latest metrics: %v", err)
			}

			fmt.Printf("Collected at %s\n\n", snap.Timestamp.Format(time.RFC3339))
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
			fmt.Fprintf(w, "Connections\t%d/%d (%.1f%%), %d active, %d idle\n",
				snap.Connections.Total, snap.Connections.Max, snap.Connections.UtilizationPct,
				snap.Connections.Active, snap.Connections.Idle)
			fmt.Fprintf(w, "Throughput\t%.1f ops/sec (%d slow)\n",
				snap.QueryStats.ThroughputPerSec, snap.QueryStats.SlowQueries)
			fmt.Fprintf(w, "Avg latency\t%.2f ms\n", snap.QueryStats.AvgLatencyMs)
			fmt.Fprintf(w, "CPU\t%.1f%%\n", snap.Performance.CPUPercent)
			fmt.Fprintf(w, "Cache hit rate\t%.1f%%\n", snap.Performance.CacheHitRatePct)
			fmt.Fprintf(w, "Lock wait\t%.2f s\n", snap.Performance.AvgLockWaitSeconds)
			fmt.Fprintf(w, "Storage\t%s data, %s index, %d tables\n",
				formatBytes(snap.Storage.DataBytes), formatBytes(snap.Storage.IndexBytes),
				snap.Storage.TableCount)
			if snap.Replication != nil {
				fmt.Fprintf(w, "Replication\t%s, %.0fs behind\n",
					snap.Replication.State, snap.Replication.LagSeconds)
			}
			return w.Flush()
		},
	}

	cmd.Flags().IntVar(&hours, "hours", 0, "Show history for the last N hours instead of the latest snapshot")
	return cmd
}

func displayHistory(c *client.Client, hours int) error {
	snaps, err := c.MetricsHistory(hours)
	if err != nil {
		return fmt.Errorf("failed to get metrics history: %v", err)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "TIMESTAMP\tCONN %\tOPS/SEC\tLATENCY MS\tCACHE %\tCPU %")
	for _, s := range snaps {
		fmt.Fprintf(w, "%s\t%.1f\t%.1f\t%.2f\t%.1f\t%.1f\n",
			s.Timestamp.Format(time.RFC3339),
			s.Connections.UtilizationPct,
			s.QueryStats.ThroughputPerSec,
			s.QueryStats.AvgLatencyMs,
			s.Performance.CacheHitRatePct,
			s.Performance.CPUPercent)
	}
	return w.Flush()
}

func formatBytes(b uint64) string {
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%d B", b)
	}
	div, exp := uint64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(b)/float64(div), "KMGTPE"[exp])
}
