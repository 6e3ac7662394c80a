package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/hooklinehq/hookline/internal/version"
)

var rootCmd = &cobra.Command{
	Use:   "hookline",
	Short: "hookline relays platform webhooks to two downstream consumers",
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the webhook relay server",
	Run: func(cmd *cobra.Command, args []string) {
		runServe()
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(version.GetInfo())
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
