package cli

import (
	"github.com/spf13/cobra"

	"github.com/rcliao/tai/internal/store"
)

func init() {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show store statistics",
		Run:   runStats,
	}

	RootCmd.AddCommand(cmd)
}

func runStats(cmd *cobra.Command, args []string) {
	a := openApp(cmd.Context(), false)
	defer a.Close()

	stats, err := store.CollectStats(cmd.Context(), a.store, a.cfg.Store.Driver, storeLocation(a.cfg))
	if err != nil {
		exitErr("stats", err)
	}
	printJSON(stats)
}
