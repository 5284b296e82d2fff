package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"docbridge/internal/editor"
)

var newFailClosed bool

var newCmd = &cobra.Command{
	Use:   "new",
	Short: "Create a new document after checking the name is free",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newClient()
		if err != nil {
			return err
		}
		ctx, stop := signalContext(cmd.Context())
		defer stop()

		s := newEditSession(client)
		var opts []editor.FlowOption
		opts = append(opts, editor.WithFlowLogger(logger))
		if newFailClosed {
			opts = append(opts, editor.WithFailClosed())
		}
		flow := editor.NewNewDocumentFlow(client, s.ctrl, opts...)

		committed, err := promptForName(ctx, cmd, flow)
		if err != nil || !committed {
			s.ctrl.Close()
			return err
		}
		return s.edit(ctx)
	},
}

// promptForName runs the name dialog on stdin. An empty answer accepts the
// suggestion; "q" cancels.
func promptForName(ctx context.Context, cmd *cobra.Command, flow *editor.NewDocumentFlow) (bool, error) {
	out := cmd.OutOrStdout()
	in := bufio.NewReader(cmd.InOrStdin())

	p, err := flow.Request()
	if err != nil {
		return false, err
	}
	for {
		if p.Message != "" {
			fmt.Fprintln(out, p.Message)
		}
		fmt.Fprintf(out, "Document name [%s] (q to cancel): ", p.Candidate)
		line, err := in.ReadString('\n')
		if err != nil && err != io.EOF {
			return false, err
		}
		answer := strings.TrimSpace(line)
		if answer == "q" || (err == io.EOF && answer == "") {
			flow.Cancel()
			fmt.Fprintln(out, "cancelled")
			return false, nil
		}
		if answer == "" {
			answer = p.Candidate
		}
		p, err = flow.Confirm(ctx, answer)
		if err != nil {
			return false, err
		}
		if p.State == editor.Committed {
			fmt.Fprintf(out, "created %s\n", p.Candidate)
			return true, nil
		}
	}
}

func init() {
	rootCmd.AddCommand(newCmd)
	newCmd.Flags().BoolVar(&newFailClosed, "fail-closed", false, "refuse to create when the name check cannot reach storage")
}
