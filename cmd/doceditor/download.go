package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

var downloadOut string

var downloadCmd = &cobra.Command{
	Use:   "download [name]",
	Short: "Save the stored bytes of a document to a local file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newClient()
		if err != nil {
			return err
		}
		d, err := client.Download(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		out := downloadOut
		if out == "" {
			out = filepath.Join(workdir, filepath.Base(d.Name))
		}
		if err := os.WriteFile(out, d.Content, 0o644); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s (%d bytes)\n", out, len(d.Content))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(downloadCmd)
	downloadCmd.Flags().StringVarP(&downloadOut, "output", "o", "", "destination file (default: <workdir>/<name>)")
}
