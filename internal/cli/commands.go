package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/livyflow/observer/internal/alert"
)

func newWriter() *tabwriter.Writer {
	return tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.TabIndent)
}

func NewHealthCommand(client *Client) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Show service health",
		RunE: func(cmd *cobra.Command, args []string) error {
			health, err := client.Health()
			if err != nil {
				return err
			}

			fmt.Printf("Status: %v\n", health["status"])
			if components, ok := health["components"].(map[string]interface{}); ok {
				w := newWriter()
				fmt.Fprintln(w, "COMPONENT\tRUNNING\t")
				for name, running := range components {
					fmt.Fprintf(w, "%s\t%v\t\n", name, running)
				}
				w.Flush()
			}
			return nil
		},
	}
}

func NewAlertCommand(client *Client) *cobra.Command {
	alertCmd := &cobra.Command{
		Use:   "alerts",
		Short: "Manage alerts",
	}

	var history bool
	var limit int
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List alerts",
		RunE: func(cmd *cobra.Command, args []string) error {
			var alerts []alert.Alert
			var err error
			if history {
				alerts, err = client.AlertHistory(limit)
			} else {
				alerts, err = client.ActiveAlerts()
			}
			if err != nil {
				return err
			}

			w := newWriter()
			fmt.Fprintln(w, "ID\tSEVERITY\tSTATUS\tRULE\tCREATED\tMESSAGE\t")
			for _, a := range alerts {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t\n",
					a.ID, a.Severity, a.Status, a.RuleName,
					a.CreatedAt.Format(time.RFC3339), a.Message)
			}
			w.Flush()
			return nil
		},
	}
	listCmd.Flags().BoolVar(&history, "history", false, "Show alert history instead of active alerts")
	listCmd.Flags().IntVar(&limit, "limit", 100, "Maximum number of history entries")

	var userID string
	ackCmd := &cobra.Command{
		Use:   "ack [id]",
		Short: "Acknowledge an alert",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := client.Acknowledge(args[0], userID); err != nil {
				return err
			}
			fmt.Println("Alert acknowledged")
			return nil
		},
	}
	ackCmd.Flags().StringVar(&userID, "user", "cli", "Acknowledging user")

	var resolveUser string
	resolveCmd := &cobra.Command{
		Use:   "resolve [id]",
		Short: "Resolve an alert",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := client.Resolve(args[0], resolveUser); err != nil {
				return err
			}
			fmt.Println("Alert resolved")
			return nil
		},
	}
	resolveCmd.Flags().StringVar(&resolveUser, "user", "cli", "Resolving user")

	alertCmd.AddCommand(listCmd, ackCmd, resolveCmd)
	return alertCmd
}

func NewRuleCommand(client *Client) *cobra.Command {
	ruleCmd := &cobra.Command{
		Use:   "rules",
		Short: "Manage alert rules",
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List alert rules",
		RunE: func(cmd *cobra.Command, args []string) error {
			rules, err := client.Rules()
			if err != nil {
				return err
			}

			w := newWriter()
			fmt.Fprintln(w, "ID\tNAME\tMETRIC\tCONDITION\tTHRESHOLD\tSEVERITY\tENABLED\t")
			for _, r := range rules {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%.2f\t%s\t%v\t\n",
					r.ID, r.Name, r.Metric, r.Condition, r.Threshold, r.Severity, r.Enabled)
			}
			w.Flush()
			return nil
		},
	}

	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Create an alert rule from JSON on stdin",
		RunE: func(cmd *cobra.Command, args []string) error {
			var rule alert.Rule
			if err := json.NewDecoder(os.Stdin).Decode(&rule); err != nil {
				return fmt.Errorf("invalid rule JSON: %v", err)
			}

			if err := client.CreateRule(&rule); err != nil {
				return err
			}
			fmt.Println("Rule created successfully")
			return nil
		},
	}

	deleteCmd := &cobra.Command{
		Use:   "delete [id]",
		Short: "Delete an alert rule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := client.DeleteRule(args[0]); err != nil {
				return err
			}
			fmt.Println("Rule deleted successfully")
			return nil
		},
	}

	ruleCmd.AddCommand(listCmd, createCmd, deleteCmd)
	return ruleCmd
}

func NewChecksCommand(client *Client) *cobra.Command {
	checksCmd := &cobra.Command{
		Use:   "checks",
		Short: "Synthetic monitoring checks",
	}

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show check status",
		RunE: func(cmd *cobra.Command, args []string) error {
			overall, checks, err := client.ChecksStatus()
			if err != nil {
				return err
			}

			fmt.Printf("Checks: %d total, %d active, %.1f%% success, running=%v\n",
				overall.TotalChecks, overall.ActiveChecks, overall.OverallSuccessRate, overall.Running)

			w := newWriter()
			fmt.Fprintln(w, "CHECK\tSTATUS\tSUCCESS %\tAVG MS\tLAST CHECK\t")
			for id, summary := range checks {
				fmt.Fprintf(w, "%s\t%s\t%.1f\t%.1f\t%s\t\n",
					id, summary.Status, summary.SuccessRate, summary.AvgResponseTimeMS,
					summary.LastCheck.Format(time.RFC3339))
			}
			w.Flush()
			return nil
		},
	}

	checksCmd.AddCommand(statusCmd)
	return checksCmd
}

func NewLogsCommand(client *Client) *cobra.Command {
	logsCmd := &cobra.Command{
		Use:   "logs",
		Short: "Query aggregated logs",
	}

	var query, level string
	var limit int
	searchCmd := &cobra.Command{
		Use:   "search",
		Short: "Search recent logs",
		RunE: func(cmd *cobra.Command, args []string) error {
			logs, err := client.SearchLogs(query, level, limit)
			if err != nil {
				return err
			}

			w := newWriter()
			fmt.Fprintln(w, "TIMESTAMP\tLEVEL\tLOGGER\tMESSAGE\t")
			for _, e := range logs {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t\n",
					e.Timestamp.Format(time.RFC3339), e.Level, e.Logger, e.Message)
			}
			w.Flush()
			return nil
		},
	}
	searchCmd.Flags().StringVar(&query, "query", "", "Substring to match in messages")
	searchCmd.Flags().StringVar(&level, "level", "", "Filter by log level")
	searchCmd.Flags().IntVar(&limit, "limit", 100, "Maximum entries")

	logsCmd.AddCommand(searchCmd)
	return logsCmd
}
