package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/rickgao/chat-realtime/internal/identity"
)

func runToken(cmd *cobra.Command, opts *globalOptions, userID, name string, ttl time.Duration) error {
	cfg, _, err := opts.load()
	if err != nil {
		return err
	}
	if cfg.Identity.Secret == "" {
		return errNoSecret
	}
	if ttl <= 0 {
		ttl = cfg.Identity.TokenTTL
	}

	token, err := identity.NewIssuer(cfg.Identity.Secret, cfg.Identity.Issuer, ttl).Issue(userID, name)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), token)
	return nil
}
