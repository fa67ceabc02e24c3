package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func init() {
	tmplCmd := &cobra.Command{
		Use:   "template",
		Short: "Manage the global memory template",
	}

	tmplCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the memory template",
		Run:   runTemplateShow,
	})
	tmplCmd.AddCommand(&cobra.Command{
		Use:   "set [template]",
		Short: "Replace the memory template (arg or stdin)",
		Run:   runTemplateSet,
	})
	RootCmd.AddCommand(tmplCmd)
}

func runTemplateShow(cmd *cobra.Command, args []string) {
	a := openApp(cmd.Context(), false)
	defer a.Close()

	t, err := a.mem.Template(cmd.Context())
	if err != nil {
		exitErr("template", err)
	}
	fmt.Println(t)
}

func runTemplateSet(cmd *cobra.Command, args []string) {
	t := strings.TrimSpace(readContent(args))
	if t == "" {
		exitErr("template", fmt.Errorf("template is required (positional arg or stdin)"))
	}

	a := openApp(cmd.Context(), false)
	defer a.Close()

	if err := a.mem.SetTemplate(cmd.Context(), t); err != nil {
		exitErr("template", err)
	}
	fmt.Println(`{"ok":true}`)
}
