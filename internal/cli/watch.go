package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/deskline/helpdesk/internal/collab"
)

func newWatchCommand(o *options) *cobra.Command {
	var (
		status   string
		duration time.Duration
	)
	cmd := &cobra.Command{
		Use:   "watch <ticket-id>",
		Short: "Show who is typing on a ticket",
		Long: `Prints the typing line every time it changes. The chosen status is
published for the duration of the watch and reset to offline afterwards.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if duration > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, duration)
				defer cancel()
			}

			session, err := o.session(ctx)
			if err != nil {
				return err
			}
			defer session.Close(context.Background())
			if err := session.Presence().SetStatus(status); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			sub := session.NewSubscriber(args[0], func(entries []collab.TypingEntry) {
				line := collab.FormatTyping(entries)
				if line == "" {
					line = "-"
				}
				fmt.Fprintln(out, line)
			})
			return sub.Run(ctx)
		},
	}
	cmd.Flags().StringVar(&status, "status", "online", "presence while watching")
	cmd.Flags().DurationVar(&duration, "for", 0, "stop after this long; zero waits for an interrupt")
	return cmd
}
