// Command reachd runs the reach discovery service.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:           "reachd",
	Short:         "Discover accounts reachable through the follower graph",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to a YAML config file (REACH_* env vars override it)")
	rootCmd.AddCommand(serveCmd, loginCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "reachd:", err)
		os.Exit(1)
	}
}
