package cli

import (
	"bufio"
	"strings"

	"github.com/spf13/cobra"

	"github.com/deskline/helpdesk/internal/collab"
)

func newComposeCommand(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "compose <ticket-id>",
		Short: "Signal typing while a reply is read from stdin",
		Long: `Every line read counts as a keystroke. An empty line ends the burst,
as does end of input.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pub := collab.NewTypingPublisher(o.client(), args[0], collab.PublisherOptions{
				Debounce: o.cfg.Collab.TypingDebounce(),
				Logger:   o.logger,
			})
			defer pub.Close()

			scanner := bufio.NewScanner(cmd.InOrStdin())
			for scanner.Scan() {
				if strings.TrimSpace(scanner.Text()) == "" {
					pub.StopTyping()
					continue
				}
				pub.StartTyping()
			}
			return scanner.Err()
		},
	}
}
