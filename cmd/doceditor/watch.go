package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Print document changes as they happen",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newClient()
		if err != nil {
			return err
		}
		ctx, stop := signalContext(cmd.Context())
		defer stop()
		feed, err := client.Watch(ctx)
		if err != nil {
			return err
		}
		for evt := range feed {
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%-9s\t%s\t%d\n", evt.At.Local().Format("15:04:05"), evt.Kind, evt.Name, evt.Size)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)
}
