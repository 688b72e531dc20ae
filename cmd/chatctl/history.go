package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/rickgao/chat-realtime/internal/api"
	"github.com/rickgao/chat-realtime/internal/version"
)

func runHistory(cmd *cobra.Command, opts *globalOptions, session sessionFlags, conv string, limit int, asJSON bool) error {
	cfg, logger, err := opts.load()
	if err != nil {
		return err
	}
	tokens, err := tokenSource(cfg, session)
	if err != nil {
		return err
	}
	baseURL, err := api.BaseURLFromWS(cfg.Client.URL)
	if err != nil {
		return err
	}

	client := api.NewClient(baseURL, tokens,
		api.WithLogger(logger),
		api.WithTimeout(cfg.Client.HandshakeTimeout),
		api.WithUserAgent(version.UserAgent("chatctl")),
	)

	msgs, err := client.History(cmd.Context(), conv, limit)
	if err != nil {
		return fmt.Errorf("fetch history: %w", err)
	}

	out := cmd.OutOrStdout()
	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(msgs)
	}
	for _, m := range msgs {
		fmt.Fprintf(out, "%s %s: %s\n", m.CreatedAt.Local().Format(time.DateTime), m.SenderID, m.Content)
	}
	return nil
}
