package main

import (
	"fmt"
	"path"

	"github.com/spf13/cobra"

	"docbridge/internal/editor"
)

var openCmd = &cobra.Command{
	Use:   "open [path]",
	Short: "Open a stored document for editing",
	Long: `Open loads the document at path (as shown by the file browser, e.g.
/team/Plan.docx) into a local working file and autosaves edits to it.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newClient()
		if err != nil {
			return err
		}
		ctx, stop := signalContext(cmd.Context())
		defer stop()

		s := newEditSession(client)
		notifier := editor.NotifierFunc(func(msg string) {
			fmt.Fprintln(cmd.ErrOrStderr(), msg)
		})
		bridge := editor.NewBridge(client, s.ctrl, notifier, logger)
		p := args[0]
		if err := bridge.Select(ctx, p, path.Ext(p), path.Base(p)); err != nil {
			s.ctrl.Close()
			return err
		}
		return s.edit(ctx)
	},
}

func init() {
	rootCmd.AddCommand(openCmd)
}
