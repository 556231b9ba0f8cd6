package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

// render writes data as indented JSON or the text summary, per --format.
func render(cmd *cobra.Command, opts *RootOptions, data any, text string) error {
	out := cmd.OutOrStdout()
	if opts != nil && opts.Format == "json" {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(data)
	}
	if text == "" {
		return nil
	}
	_, err := fmt.Fprintln(out, text)
	return err
}
