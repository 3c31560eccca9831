package commands

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/dbsentry/internal/api/client"
)

func NewAlertsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "alerts",
		Short:   "Alert management commands",
		Aliases: []string{"alert", "a"},
	}

	cmd.AddCommand(newAlertsListCommand())
	cmd.AddCommand(newAlertsResolveCommand())
	return cmd
}

func newAlertsListCommand() *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List alerts",
		RunE: func(cmd *cobra.Command, args []string) error {
			c := client.NewClient()
			alerts, err := c.ListAlerts(all)
			if err != nil {
				return fmt.Errorf("failed to list alerts: %v", err)
			}

			if len(alerts) == 0 {
				fmt.Println("No alerts")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
			fmt.Fprintln(w, "ID\tSEVERITY\tCATEGORY\tTITLE\tOBSERVED\tTHRESHOLD\tCREATED\tRESOLVED")
			for _, a := range alerts {
				resolved := ""
				if a.Resolved {
					resolved = "yes"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%.2f\t%.2f\t%s\t%s\n",
					a.ID, a.Severity, a.Category, a.Title,
					a.ObservedValue, a.Threshold,
					a.CreatedAt.Format(time.RFC3339), resolved)
			}
			return w.Flush()
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "Include resolved alerts")
	return cmd
}

func newAlertsResolveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "resolve [alert_id]",
		Short: "Mark an alert as resolved",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := client.NewClient()
			ok, err := c.ResolveAlert(args[0])
			if err != nil {
				return fmt.Errorf("failed to resolve alert: %v", err)
			}
			if !ok {
				fmt.Println("Alert not found or already resolved")
				return nil
			}
			fmt.Printf("Alert %s resolved\n", args[0])
			return nil
		},
	}
}
