package main

import (
	"os"
	"sort"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Print the current health snapshot of every registered server",
	Args:  cobra.NoArgs,
	RunE:  runHealth,
}

func init() {
	rootCmd.AddCommand(healthCmd)
}

func runHealth(cmd *cobra.Command, args []string) error {
	dir, err := resolveDataDir()
	if err != nil {
		return err
	}
	eng, _, err := buildEngine(cmd, dir)
	if err != nil {
		return err
	}
	defer eng.close()

	snapshots := eng.facade.GetAllServerHealth()
	ids := make([]string, 0, len(snapshots))
	for id := range snapshots {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"Server", "Status", "Consecutive Errors", "EWMA Response Time (s)"})
	for _, id := range ids {
		h := snapshots[id]
		t.AppendRow(table.Row{id, h.Status, h.ConsecutiveErrors, h.EWMAResponseTime})
	}
	t.Render()
	return nil
}
