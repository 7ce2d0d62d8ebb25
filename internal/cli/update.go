package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/deskline/helpdesk/internal/collab"
	"github.com/deskline/helpdesk/internal/domain"
)

func newUpdateCommand(o *options) *cobra.Command {
	var (
		expected    int64
		title       string
		description string
		status      string
		priority    string
		assignee    string
		tags        []string
		retry       bool
	)
	cmd := &cobra.Command{
		Use:   "update <ticket-id>",
		Short: "Edit a ticket against the version you last saw",
		Long: `Sends the given fields with --expected as the version you based the edit on.
When someone saved in between, the conflict is shown and nothing is written.
Pass --retry to resend the same edit against the newer version.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			flags := cmd.Flags()
			var patch domain.TicketPatch
			if flags.Changed("title") {
				patch.Title = &title
			}
			if flags.Changed("description") {
				patch.Description = &description
			}
			if flags.Changed("status") {
				s := domain.TicketStatus(status)
				patch.Status = &s
			}
			if flags.Changed("priority") {
				p := domain.TicketPriority(priority)
				patch.Priority = &p
			}
			if flags.Changed("assignee") {
				patch.AssigneeID = &assignee
			}
			if flags.Changed("tags") {
				patch.Tags = &tags
			}

			out := cmd.OutOrStdout()
			presenter := collab.NewCollisionPresenter(o.client(), printNotifier{out: out}, nil, o.logger)
			defer presenter.Close()

			result, err := presenter.Submit(cmd.Context(), args[0], expected, patch)
			if err != nil {
				return err
			}
			if result.Succeeded() {
				fmt.Fprintf(out, "opgeslagen, versie %d\n", result.NewVersion)
				return nil
			}
			fmt.Fprintln(out, presenter.View().Message)
			if !retry {
				return fmt.Errorf("ticket %s is at version %d", args[0], result.Conflict.CurrentVersion)
			}

			result, err = presenter.Retry(cmd.Context())
			if err != nil {
				return err
			}
			if !result.Succeeded() {
				return fmt.Errorf("ticket %s changed again, now at version %d", args[0], result.Conflict.CurrentVersion)
			}
			fmt.Fprintf(out, "opgeslagen, versie %d\n", result.NewVersion)
			return nil
		},
	}

	flags := cmd.Flags()
	flags.Int64Var(&expected, "expected", 0, "version the edit is based on")
	flags.StringVar(&title, "title", "", "new title")
	flags.StringVar(&description, "description", "", "new description")
	flags.StringVar(&status, "status", "", "new status")
	flags.StringVar(&priority, "priority", "", "new priority")
	flags.StringVar(&assignee, "assignee", "", "new assignee id; empty clears it")
	flags.StringSliceVar(&tags, "tags", nil, "replace the tags")
	flags.BoolVar(&retry, "retry", false, "resend once against the newer version on conflict")
	_ = cmd.MarkFlagRequired("expected")
	return cmd
}
