package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/deskline/helpdesk/internal/collab"
	"github.com/deskline/helpdesk/internal/config"
	"github.com/deskline/helpdesk/internal/observability"
)

var version = "dev"

type options struct {
	server  string
	token   string
	userID  string
	useFeed bool
	verbose bool

	cfg    *config.Config
	logger *zap.Logger
}

// NewRootCommand builds the deskctl command tree. Output goes to out.
func NewRootCommand(out io.Writer) *cobra.Command {
	o := &options{}
	root := &cobra.Command{
		Use:           "deskctl",
		Short:         "Work on helpdesk tickets from the terminal",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return o.init()
		},
	}
	root.SetOut(out)
	root.CompletionOptions.DisableDefaultCmd = true

	flags := root.PersistentFlags()
	flags.StringVar(&o.server, "server", envOr("HELPDESK_SERVER", "http://localhost:8080"), "helpdesk base URL")
	flags.StringVar(&o.token, "token", os.Getenv("HELPDESK_TOKEN"), "access token")
	flags.StringVar(&o.userID, "user-id", os.Getenv("HELPDESK_USER_ID"), "your agent id, hidden from typing lists")
	flags.BoolVar(&o.useFeed, "feed", false, "listen on the realtime feed instead of polling")
	flags.BoolVarP(&o.verbose, "verbose", "v", false, "log debug output to stderr")

	root.AddCommand(
		newUpdateCommand(o),
		newWatchCommand(o),
		newComposeCommand(o),
		newPresenceCommand(o),
	)
	return root
}

// Execute runs deskctl until it finishes or the process is interrupted.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err := NewRootCommand(os.Stdout).ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

func (o *options) init() error {
	if o.token == "" {
		return errors.New("no access token: pass --token or set HELPDESK_TOKEN")
	}
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	level := "warn"
	if o.verbose {
		level = "debug"
	}
	logger, err := observability.NewLogger(config.LoggerConfig{Level: level, Output: "stderr"})
	if err != nil {
		return err
	}
	o.cfg = cfg
	o.logger = logger
	return nil
}

func (o *options) client() *collab.Client {
	return collab.NewClient(o.server, o.token)
}

func (o *options) session(ctx context.Context) (*collab.Session, error) {
	return collab.NewSession(ctx, collab.SessionConfig{
		BaseURL: o.server,
		Token:   o.token,
		UserID:  o.userID,
		Timings: o.cfg.Collab,
		UseFeed: o.useFeed,
		Logger:  o.logger,
	})
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// printNotifier shows presenter toasts as plain lines.
type printNotifier struct {
	out io.Writer
}

func (n printNotifier) Success(message string) { fmt.Fprintln(n.out, message) }
func (n printNotifier) Error(message string) { fmt.Fprintln(n.out, "fout: "+message) }
func (n printNotifier) Info(message string) { fmt.Fprintln(n.out, message) }
