package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/rcliao/tai/internal/memory"
	"github.com/rcliao/tai/internal/model"
)

func init() {
	memCmd := &cobra.Command{
		Use:   "memory",
		Short: "Inspect and edit conversation memory",
	}

	showCmd := &cobra.Command{
		Use:   "show [global|restricted]",
		Short: "Print a memory tier",
		Args:  cobra.MaximumNArgs(1),
		Run:   runMemoryShow,
	}

	formatCmd := &cobra.Command{
		Use:   "format [global|restricted]",
		Short: "Print a memory tier as the model sees it",
		Args:  cobra.MaximumNArgs(1),
		Run:   runMemoryFormat,
	}
	formatCmd.Flags().Int("budget", 0, "Character budget (0 = all)")

	searchCmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Search a memory tier by keyword",
		Args:  cobra.MinimumNArgs(1),
		Run:   runMemorySearch,
	}
	searchCmd.Flags().StringP("tier", "t", "global", "Tier: global or restricted")
	searchCmd.Flags().IntP("limit", "l", 20, "Max results")

	saveCmd := &cobra.Command{
		Use:   "save [global|restricted]",
		Short: "Merge entries from stdin into a memory tier",
		Long:  "Merge a JSON list of entries into a tier. Entries whose timestamp is already stored are skipped.",
		Args:  cobra.ExactArgs(1),
		Run:   runMemorySave,
	}

	for _, c := range []*cobra.Command{showCmd, formatCmd, searchCmd, saveCmd} {
		c.Flags().String("day", "", "Restricted day, YYYY-MM-DD (default: today)")
		memCmd.AddCommand(c)
	}
	RootCmd.AddCommand(memCmd)
}

func tierArg(args []string) model.Tier {
	if len(args) == 0 {
		return model.TierGlobal
	}
	return parseTier(args[0])
}

func parseTier(s string) model.Tier {
	t := model.Tier(strings.ToLower(s))
	if !model.ValidTiers[t] {
		exitErr("tier", fmt.Errorf("unknown tier %q (want global or restricted)", s))
	}
	return t
}

func dayFlag(cmd *cobra.Command, a *app) time.Time {
	s, _ := cmd.Flags().GetString("day")
	if s == "" {
		return a.mem.Now()
	}
	d, err := time.ParseInLocation(model.DayLayout, s, time.Local)
	if err != nil {
		exitErr("day", err)
	}
	return d
}

func runMemoryShow(cmd *cobra.Command, args []string) {
	tier := tierArg(args)
	a := openApp(cmd.Context(), false)
	defer a.Close()

	entries, err := a.mem.Load(cmd.Context(), tier, dayFlag(cmd, a))
	if err != nil {
		exitErr("load memory", err)
	}
	printJSONOrText(entries, memory.Format(entries, tier))
}

func runMemoryFormat(cmd *cobra.Command, args []string) {
	tier := tierArg(args)
	budget, _ := cmd.Flags().GetInt("budget")
	a := openApp(cmd.Context(), false)
	defer a.Close()

	entries, err := a.mem.Load(cmd.Context(), tier, dayFlag(cmd, a))
	if err != nil {
		exitErr("load memory", err)
	}
	fmt.Println(memory.Format(memory.Recent(entries, tier, budget), tier))
}

func runMemorySearch(cmd *cobra.Command, args []string) {
	tierName, _ := cmd.Flags().GetString("tier")
	limit, _ := cmd.Flags().GetInt("limit")
	tier := parseTier(tierName)

	a := openApp(cmd.Context(), false)
	defer a.Close()

	entries, err := a.mem.Load(cmd.Context(), tier, dayFlag(cmd, a))
	if err != nil {
		exitErr("load memory", err)
	}
	results := memory.Search(entries, strings.Join(args, " "), limit)
	if results == nil {
		results = []model.Entry{}
	}
	printJSONOrText(results, memory.Format(results, tier))
}

func runMemorySave(cmd *cobra.Command, args []string) {
	tier := parseTier(args[0])
	entries, err := memory.ParseEntries([]byte(readContent(nil)))
	if err != nil {
		exitErr("parse entries", err)
	}

	a := openApp(cmd.Context(), false)
	defer a.Close()

	merged, err := a.mem.Save(cmd.Context(), tier, dayFlag(cmd, a), entries)
	if err != nil {
		exitErr("save memory", err)
	}
	fmt.Printf(`{"ok":true,"tier":%q,"entries":%d}`+"\n", tier, len(merged))
}
