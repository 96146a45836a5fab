package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nexus-im/estatechat/internal/cli"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "nexus",
		Short: "Nexus - direct messaging for property listings",
		Long: `Nexus runs the conversation service that lets buyers and renters talk to
listing owners: one thread per pair of users and listing, with unread
tracking and realtime delivery over websockets.`,
		SilenceUsage: true,
	}
	cli.AddGlobalFlags(rootCmd)

	rootCmd.AddCommand(cli.ServeCmd())
	rootCmd.AddCommand(cli.MigrateCmd())
	rootCmd.AddCommand(cli.TokenCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
