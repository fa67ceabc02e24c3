package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "put [value]",
		Short: "Store a value",
		Long: "Store a value as a new version of ns/key. The value can be a positional arg or piped via stdin.\n" +
			"Valid JSON is stored as-is; anything else is stored as a JSON string.",
		Run: runPut,
	}

	cmd.Flags().StringP("ns", "n", "", "Namespace (required)")
	cmd.Flags().StringP("key", "k", "", "Key (required)")
	cmd.Flags().BoolP("encrypt", "e", false, "Seal the value with the configured key")

	cmd.MarkFlagRequired("ns")
	cmd.MarkFlagRequired("key")

	RootCmd.AddCommand(cmd)
}

// readContent returns the positional args joined, or stdin when piped.
func readContent(args []string) string {
	if len(args) > 0 {
		return strings.Join(args, " ")
	}
	stat, _ := os.Stdin.Stat()
	if (stat.Mode() & os.ModeCharDevice) == 0 {
		b, err := io.ReadAll(os.Stdin)
		if err != nil {
			exitErr("read stdin", err)
		}
		return string(b)
	}
	return ""
}

func runPut(cmd *cobra.Command, args []string) {
	ns, _ := cmd.Flags().GetString("ns")
	key, _ := cmd.Flags().GetString("key")
	encrypt, _ := cmd.Flags().GetBool("encrypt")

	content := strings.TrimSpace(readContent(args))
	if content == "" {
		exitErr("put", fmt.Errorf("value is required (positional arg or stdin)"))
	}

	var value any = json.RawMessage(content)
	if !json.Valid([]byte(content)) {
		value = content
	}

	a := openApp(cmd.Context(), false)
	defer a.Close()

	if err := a.kv.SaveData(cmd.Context(), key, value, ns, encrypt); err != nil {
		exitErr("put", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), `{"ok":true,"ns":%q,"key":%q}`+"\n", ns, key)
}
