package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/rickgao/chat-realtime/internal/version"
)

// sessionFlags select where the session token comes from.
type sessionFlags struct {
	token string
	user  string
	name  string
}

func (f *sessionFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.token, "token", "", "Session token (overrides client.token_file)")
	cmd.Flags().StringVar(&f.user, "user", "", "Mint tokens for this user id with identity.secret (development)")
	cmd.Flags().StringVar(&f.name, "name", "", "Display name for minted tokens")
}

func buildConnectCmd(opts *globalOptions) *cobra.Command {
	var (
		session     sessionFlags
		convs       []string
		to          string
		metricsAddr string
	)
	cmd := &cobra.Command{
		Use:   "connect",
		Short: "Open a realtime session and stream messages",
		Long: `Open a realtime session, join conversations, and print inbound messages.

Each stdin line is sent as a chat message to the active conversation.
Lines starting with a slash are commands:

  /join <id>     join a conversation and make it active
  /leave <id>    leave a conversation
  /to <id>       switch the active conversation
  /typing        mark yourself typing in the active conversation
  /stats         print connection stats
  /quit          disconnect and exit`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConnect(cmd, opts, session, convs, to, metricsAddr)
		},
	}
	session.register(cmd)
	cmd.Flags().StringSliceVarP(&convs, "join", "j", nil, "Conversation ids to join (repeatable)")
	cmd.Flags().StringVar(&to, "to", "", "Active conversation for stdin messages (defaults to the last --join)")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve client metrics on this address (e.g. :9091)")
	return cmd
}

func buildTokenCmd(opts *globalOptions) *cobra.Command {
	var (
		name string
		ttl  time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token <user-id>",
		Short: "Mint a development session token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runToken(cmd, opts, args[0], name, ttl)
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "Display name claim")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "Token lifetime (defaults to identity.token_ttl)")
	return cmd
}

func buildHistoryCmd(opts *globalOptions) *cobra.Command {
	var (
		session sessionFlags
		limit   int
		asJSON  bool
	)
	cmd := &cobra.Command{
		Use:   "history <conversation-id>",
		Short: "Print recent messages of a conversation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(cmd, opts, session, args[0], limit, asJSON)
		},
	}
	session.register(cmd)
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Maximum messages (1-100, relay default when 0)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print raw JSON")
	return cmd
}

func buildVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "chatctl", version.String())
		},
	}
}
