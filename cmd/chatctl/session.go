package main

import (
	"errors"
	"fmt"

	"github.com/rickgao/chat-realtime/internal/config"
	"github.com/rickgao/chat-realtime/internal/identity"
)

var errNoSecret = errors.New("identity.secret is required to mint tokens")

// tokenSource picks the session token source: an explicit --token, a minting
// Issuer for --user, then client.token_file. nil means signed out.
func tokenSource(cfg *config.Config, f sessionFlags) (identity.Source, error) {
	switch {
	case f.token != "":
		return identity.Static(f.token), nil
	case f.user != "":
		if cfg.Identity.Secret == "" {
			return nil, errNoSecret
		}
		issuer := identity.NewIssuer(cfg.Identity.Secret, cfg.Identity.Issuer, cfg.Identity.TokenTTL)
		return issuer.SourceFor(f.user, f.name), nil
	case cfg.Client.TokenFile != "":
		return identity.File{Path: cfg.Client.TokenFile}, nil
	default:
		return nil, nil
	}
}

func describeSource(f sessionFlags, cfg *config.Config) string {
	switch {
	case f.token != "":
		return "flag"
	case f.user != "":
		return fmt.Sprintf("issuer(%s)", f.user)
	case cfg.Client.TokenFile != "":
		return "file"
	default:
		return "none"
	}
}
