package main

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

var importCmd = &cobra.Command{
	Use:   "import [file]",
	Short: "Convert a local file into an editor payload without storing it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newClient()
		if err != nil {
			return err
		}
		content, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		p, err := client.Import(cmd.Context(), content, filepath.Ext(args[0]))
		if err != nil {
			return err
		}
		p.Name = filepath.Base(args[0])
		summary := map[string]any{"name": p.Name, "format": p.Format, "size": p.Size}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(summary)
	},
}

func init() {
	rootCmd.AddCommand(importCmd)
}
