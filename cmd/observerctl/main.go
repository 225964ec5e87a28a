package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/livyflow/observer/internal/cli"
)

var serverURL string

var rootCmd = &cobra.Command{
	Use:   "observerctl",
	Short: "Observer CLI - control a running observer service",
	Long: `observerctl is a command-line tool for the observer monitoring service.
It manages alerts and alert rules, inspects synthetic checks, and searches
aggregated logs over the service's HTTP API.`,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:8080", "Observer server URL")

	client := cli.NewClient(serverURL)
	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		client.SetBaseURL(serverURL)
	}
	rootCmd.AddCommand(cli.NewHealthCommand(client))
	rootCmd.AddCommand(cli.NewAlertCommand(client))
	rootCmd.AddCommand(cli.NewRuleCommand(client))
	rootCmd.AddCommand(cli.NewChecksCommand(client))
	rootCmd.AddCommand(cli.NewLogsCommand(client))
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
