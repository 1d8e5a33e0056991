// cmd/server/main.go
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	_ "plc-monitor/docs"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// @title PLC Monitor API
// @version 1.0.0
// @description Watches one word of a Mitsubishi controller over MC protocol and raises triggers when it matches a target

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @host localhost:8084
// @BasePath /api/v1
func main() {
	rootCmd := &cobra.Command{
		Use:   "plc-monitor",
		Short: "MC protocol trigger monitor",
		Long: `plc-monitor polls one word of a Mitsubishi controller over the
MC protocol (3E binary frame) and raises a trigger whenever the masked
value changes to the configured target.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		serveCmd(),
		watchCmd(),
		migrateCmd(),
		versionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}
