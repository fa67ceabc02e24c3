package cli

import (
	"github.com/spf13/cobra"
)

func init() {
	nsCmd := &cobra.Command{
		Use:   "ns",
		Short: "Namespace management",
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List all namespaces",
		Run:   runNSList,
	}

	nsCmd.AddCommand(listCmd)
	RootCmd.AddCommand(nsCmd)
}

func runNSList(cmd *cobra.Command, args []string) {
	a := openApp(cmd.Context(), false)
	defer a.Close()

	rows, err := a.store.ListNamespaces(cmd.Context())
	if err != nil {
		exitErr("list namespaces", err)
	}
	printJSON(rows)
}
