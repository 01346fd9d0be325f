package youtube

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// Scopes required by the pipeline: read analytics reports, read and mutate
// playlist membership.
var Scopes = []string{
	"https://www.googleapis.com/auth/yt-analytics.readonly",
	"https://www.googleapis.com/auth/youtube",
}

// CredentialProvider produces a currently-valid credential, refreshing on
// demand. oauth2.TokenSource already is that capability; the alias names the
// role it plays here. The interactive consent flow that mints the initial
// token lives outside this program.
type CredentialProvider = oauth2.TokenSource

// FileTokenSource builds a self-refreshing token source from an OAuth client
// secret file and a previously stored token file. A refresh failure surfaces
// from the first API call as an auth error, which is fatal.
func FileTokenSource(ctx context.Context, clientSecretFile, tokenFile string) (CredentialProvider, error) {
	secret, err := os.ReadFile(clientSecretFile)
	if err != nil {
		return nil, fmt.Errorf("read client secret: %w", err)
	}
	cfg, err := google.ConfigFromJSON(secret, Scopes...)
	if err != nil {
		return nil, fmt.Errorf("parse client secret: %w", err)
	}

	raw, err := os.ReadFile(tokenFile)
	if err != nil {
		return nil, fmt.Errorf("read token file: %w", err)
	}
	var tok oauth2.Token
	if err := json.Unmarshal(raw, &tok); err != nil {
		return nil, fmt.Errorf("parse token file: %w", err)
	}
	if tok.RefreshToken == "" && !tok.Valid() {
		return nil, fmt.Errorf("token file %s: %w", tokenFile, ErrAuthRevoked)
	}

	return cfg.TokenSource(ctx, &tok), nil
}

// StaticTokenSource wraps a fixed access token, mainly for tests and probes.
func StaticTokenSource(accessToken string) CredentialProvider {
	return oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken})
}
