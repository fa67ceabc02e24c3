package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List keys in a namespace",
		Run:   runList,
	}

	cmd.Flags().StringP("ns", "n", "", "Namespace (required)")
	cmd.Flags().Bool("values", false, "Include each key's value")

	cmd.MarkFlagRequired("ns")

	RootCmd.AddCommand(cmd)
}

func runList(cmd *cobra.Command, args []string) {
	ns, _ := cmd.Flags().GetString("ns")
	values, _ := cmd.Flags().GetBool("values")

	a := openApp(cmd.Context(), false)
	defer a.Close()

	if values {
		all, err := a.kv.All(cmd.Context(), ns, false)
		if err != nil {
			exitErr("list", err)
		}
		printJSON(all)
		return
	}

	keys, err := a.kv.Keys(cmd.Context(), ns)
	if err != nil {
		exitErr("list", err)
	}
	if formatFlag == "text" {
		for _, k := range keys {
			fmt.Printf("%s/%s\n", ns, k)
		}
		return
	}
	if keys == nil {
		keys = []string{}
	}
	printJSON(keys)
}
