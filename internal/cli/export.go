package cli

import (
	"github.com/spf13/cobra"

	"github.com/rcliao/tai/internal/store"
)

func init() {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export records as JSON",
		Long:  "Export the latest record of every live key as JSON. Filter by namespace with -n. Sealed values stay sealed.",
		Run:   runExport,
	}

	cmd.Flags().StringP("ns", "n", "", "Filter by namespace")

	RootCmd.AddCommand(cmd)
}

func runExport(cmd *cobra.Command, args []string) {
	ns, _ := cmd.Flags().GetString("ns")

	a := openApp(cmd.Context(), false)
	defer a.Close()

	records, err := store.Export(cmd.Context(), a.store, ns)
	if err != nil {
		exitErr("export", err)
	}
	printJSON(records)
}
