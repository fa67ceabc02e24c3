package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

func init() {
	codeCmd := &cobra.Command{
		Use:   "code",
		Short: "Inspect, replace, or run the self-modifiable region",
	}
	codeCmd.PersistentFlags().StringP("region", "r", "", "Region name (default: patch.region from config)")

	codeCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the region's code",
		Run:   runCodeShow,
	})

	setCmd := &cobra.Command{
		Use:   "set [file]",
		Short: "Validate and store new region code (file or stdin)",
		Args:  cobra.MaximumNArgs(1),
		Run:   runCodeSet,
	}
	codeCmd.AddCommand(setCmd)

	codeCmd.AddCommand(&cobra.Command{
		Use:   "run [snippet]",
		Short: "Evaluate the region plus a Go snippet and print its output",
		Args:  cobra.MinimumNArgs(1),
		Run:   runCodeRun,
	})
	RootCmd.AddCommand(codeCmd)
}

func regionFlag(cmd *cobra.Command, a *app) string {
	r, _ := cmd.Flags().GetString("region")
	if r == "" {
		return a.cfg.Patch.Region
	}
	return r
}

func runCodeShow(cmd *cobra.Command, args []string) {
	a := openApp(cmd.Context(), false)
	defer a.Close()

	code, err := a.regions.GetCode(cmd.Context(), regionFlag(cmd, a))
	if err != nil {
		exitErr("code", err)
	}
	fmt.Print(code)
}

func runCodeSet(cmd *cobra.Command, args []string) {
	var code string
	if len(args) == 1 {
		b, err := os.ReadFile(args[0])
		if err != nil {
			exitErr("read file", err)
		}
		code = string(b)
	} else {
		code = readContent(nil)
	}

	a := openApp(cmd.Context(), false)
	defer a.Close()

	region := regionFlag(cmd, a)
	if err := a.regions.Modify(cmd.Context(), region, code); err != nil {
		exitErr("code", err)
	}
	fmt.Printf(`{"ok":true,"region":%q}`+"\n", region)
}

func runCodeRun(cmd *cobra.Command, args []string) {
	a := openApp(cmd.Context(), false)
	defer a.Close()

	out, err := a.regions.Run(cmd.Context(), regionFlag(cmd, a), strings.Join(args, " "))
	if err != nil {
		exitErr("run", err)
	}
	fmt.Print(out)
}
