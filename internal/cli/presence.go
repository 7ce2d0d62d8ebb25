package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/deskline/helpdesk/internal/domain"
)

func newPresenceCommand(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "presence [online|away|busy|offline]",
		Short: "Show or set your presence",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := o.client()
			if len(args) == 0 {
				status, err := client.Presence(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), status)
				return nil
			}
			status, err := domain.ParsePresenceStatus(args[0])
			if err != nil {
				return err
			}
			if err := client.SetPresence(cmd.Context(), status); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), status)
			return nil
		},
	}
}
