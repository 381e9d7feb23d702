// Command routerd is the MCP-Router's standalone server: it wires the eight
// engine components (C1-C8) together behind a small operator-facing CLI,
// mirroring the teacher's top-level main.go + cobra root command split.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// version can be set during build with -ldflags, exactly as the teacher's
// main.go does for the muster binary.
var version = "dev"

var rootCmd = &cobra.Command{
	Use:           "routerd",
	Short:         "Run and inspect an MCP-Router instance",
	Long:          `routerd hosts the MCP-Router engine: a cache, a server registry, a metadata store, transport adapters, a health monitor, an intelligent router, and a plugin manager, composed behind a single façade.`,
	SilenceUsage:  true,
	SilenceErrors: false,
	Version:       version,
}

func main() {
	rootCmd.SetVersionTemplate(`{{printf "routerd version %s\n" .Version}}`)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
