package main

import (
	"os"
	"path/filepath"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"mcprouter/internal/plugin"
)

var pluginsCmd = &cobra.Command{
	Use:   "plugins",
	Short: "Discover and list every installed plugin",
	Args:  cobra.NoArgs,
	RunE:  runPlugins,
}

func init() {
	rootCmd.AddCommand(pluginsCmd)
}

func runPlugins(cmd *cobra.Command, args []string) error {
	dir, err := resolveDataDir()
	if err != nil {
		return err
	}
	eng, _, err := buildEngine(cmd, dir)
	if err != nil {
		return err
	}
	defer eng.close()

	if err := eng.facade.Plugins.Discover([]string{filepath.Join(dir, "plugins")}); err != nil {
		return err
	}

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"Name", "Kind", "Version", "Description"})
	for _, p := range eng.facade.GetAllPlugins() {
		t.AppendRow(table.Row{p.Name(), pluginKind(p), p.Version(), p.Description()})
	}
	t.Render()
	return nil
}

func pluginKind(p plugin.Plugin) string {
	switch p.(type) {
	case plugin.RouterExtension:
		return "router-extension"
	case plugin.ServerAdapter:
		return "server-adapter"
	case plugin.RoutingStrategy:
		return "routing-strategy"
	default:
		return "unknown"
	}
}
