package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rcliao/tai/internal/chat"
	"github.com/rcliao/tai/internal/tui"
)

func init() {
	RootCmd.AddCommand(&cobra.Command{
		Use:   "chat",
		Short: "Start the interactive chat (default)",
		Run:   runChat,
	})

	RootCmd.AddCommand(&cobra.Command{
		Use:   "ask [message]",
		Short: "Send one message and print Tai's reply",
		Args:  cobra.MinimumNArgs(1),
		Run:   runAsk,
	})
}

func runChat(cmd *cobra.Command, args []string) {
	ctx := cmd.Context()
	a := openApp(ctx, true)
	defer a.Close()

	state, err := chat.LoadState(ctx, a.mem)
	if err != nil {
		exitErr("load memory", err)
	}
	persister := chat.NewPersister(a.mem, a.log.Named("persist"))

	_, err = tui.Run(ctx, a.pipeline(ctx), persister, state, a.log.Named("tui"))
	persister.Wait()
	if err != nil {
		exitErr("chat", err)
	}
}

func runAsk(cmd *cobra.Command, args []string) {
	ctx := cmd.Context()
	a := openApp(ctx, false)
	defer a.Close()

	state, err := chat.LoadState(ctx, a.mem)
	if err != nil {
		exitErr("load memory", err)
	}
	next, turn, err := a.pipeline(ctx).Turn(ctx, state, strings.Join(args, " "))
	if err != nil {
		exitErr("ask", err)
	}
	if err := chat.NewPersister(a.mem, a.log).SaveNow(ctx, next); err != nil {
		exitErr("save memory", err)
	}

	if formatFlag == "text" {
		fmt.Println(turn.Response.Visible)
		return
	}
	printJSON(map[string]any{
		"id":             turn.ID,
		"reply":          turn.Response.Visible,
		"evolved":        turn.CodeApplied,
		"memory_updated": turn.MemoryUpdated,
	})
}
