package cli

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/rcliao/tai/internal/store"
)

func init() {
	cmd := &cobra.Command{
		Use:   "get",
		Short: "Retrieve a value",
		Run:   runGet,
	}

	cmd.Flags().StringP("ns", "n", "", "Namespace (required)")
	cmd.Flags().StringP("key", "k", "", "Key (required)")
	cmd.Flags().Bool("history", false, "Return all versions (newest first)")
	cmd.Flags().IntP("version", "v", 0, "Specific version number")

	cmd.MarkFlagRequired("ns")
	cmd.MarkFlagRequired("key")

	RootCmd.AddCommand(cmd)
}

func runGet(cmd *cobra.Command, args []string) {
	ns, _ := cmd.Flags().GetString("ns")
	key, _ := cmd.Flags().GetString("key")
	history, _ := cmd.Flags().GetBool("history")
	version, _ := cmd.Flags().GetInt("version")

	a := openApp(cmd.Context(), false)
	defer a.Close()

	if history {
		v, ok := a.store.(store.Versioned)
		if !ok {
			exitErr("get", errors.New("this store driver keeps only the latest version"))
		}
		records, err := v.History(cmd.Context(), ns, key)
		if err != nil {
			exitErr("get", err)
		}
		printJSON(records)
		return
	}

	if version > 0 {
		rec, err := a.store.Get(cmd.Context(), store.GetParams{NS: ns, Key: key, Version: version})
		if err != nil {
			exitErr("get", err)
		}
		printJSON(rec)
		return
	}

	value, err := a.kv.LoadData(cmd.Context(), key, ns, false)
	if err != nil {
		exitErr("get", err)
	}
	printJSON(value)
}
