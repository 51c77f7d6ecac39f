package google

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// AuthProvider exchanges stored credentials for an authorized HTTP client.
// Implementations persist and reuse a refreshable token.
type AuthProvider interface {
	// Client returns an HTTP client that attaches OAuth credentials to
	// every request, refreshing the token as needed.
	Client(ctx context.Context) (*http.Client, error)
}

// FileAuthProvider reads OAuth client credentials and the cached token from
// the configured files.
type FileAuthProvider struct {
	CredentialsFile string
	TokenFile       string
	Scopes          []string
}

// NewFileAuthProvider creates a provider for the given credential and token
// file paths.
func NewFileAuthProvider(credentialsFile, tokenFile string, scopes []string) *FileAuthProvider {
	return &FileAuthProvider{
		CredentialsFile: credentialsFile,
		TokenFile:       tokenFile,
		Scopes:          scopes,
	}
}

// HasToken checks whether a cached token file exists.
func (p *FileAuthProvider) HasToken() bool {
	_, err := os.Stat(p.TokenFile)
	return err == nil
}

// Client returns an authorized HTTP client backed by the cached token.
// The token source refreshes expired tokens transparently; refreshed tokens
// are persisted back to the token file.
func (p *FileAuthProvider) Client(ctx context.Context) (*http.Client, error) {
	conf, err := p.oauthConfig()
	if err != nil {
		return nil, err
	}

	tok, err := p.loadToken()
	if err != nil {
		return nil, fmt.Errorf("no valid Google OAuth token found: %w", err)
	}

	ts := persistingTokenSource{
		src:  conf.TokenSource(ctx, tok),
		file: p.TokenFile,
		last: tok.AccessToken,
	}

	client := oauth2.NewClient(ctx, &ts)

	// Force HTTP/1.1 to avoid HTTP/2 protocol errors against the Gmail API.
	if transport, ok := client.Transport.(*oauth2.Transport); ok {
		transport.Base = &http.Transport{ForceAttemptHTTP2: false}
	}

	return client, nil
}

// SaveToken writes a token to the token file with owner-only permissions.
func (p *FileAuthProvider) SaveToken(tok *oauth2.Token) error {
	if err := os.MkdirAll(filepath.Dir(p.TokenFile), 0o700); err != nil {
		return fmt.Errorf("failed to create token directory: %w", err)
	}
	data, err := json.Marshal(tok)
	if err != nil {
		return fmt.Errorf("failed to serialize token: %w", err)
	}
	if err := os.WriteFile(p.TokenFile, data, 0o600); err != nil {
		return fmt.Errorf("failed to write token file: %w", err)
	}
	return nil
}

// AuthURL returns the URL a user visits to authorize the client.
func (p *FileAuthProvider) AuthURL() (string, error) {
	conf, err := p.oauthConfig()
	if err != nil {
		return "", err
	}
	return conf.AuthCodeURL("state", oauth2.AccessTypeOffline), nil
}

// Exchange trades an authorization code for a token and persists it.
func (p *FileAuthProvider) Exchange(ctx context.Context, authCode string) error {
	conf, err := p.oauthConfig()
	if err != nil {
		return err
	}
	tok, err := conf.Exchange(ctx, authCode)
	if err != nil {
		return fmt.Errorf("failed to exchange auth code: %w", err)
	}
	return p.SaveToken(tok)
}

func (p *FileAuthProvider) oauthConfig() (*oauth2.Config, error) {
	data, err := os.ReadFile(p.CredentialsFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read credentials file: %w", err)
	}
	conf, err := google.ConfigFromJSON(data, p.Scopes...)
	if err != nil {
		return nil, fmt.Errorf("failed to parse credentials file: %w", err)
	}
	return conf, nil
}

func (p *FileAuthProvider) loadToken() (*oauth2.Token, error) {
	data, err := os.ReadFile(p.TokenFile)
	if err != nil {
		return nil, err
	}
	tok := &oauth2.Token{}
	if err := json.Unmarshal(data, tok); err != nil {
		return nil, fmt.Errorf("invalid token file: %w", err)
	}
	return tok, nil
}

// persistingTokenSource writes refreshed tokens back to disk so the next
// process start reuses them instead of re-running the auth flow.
type persistingTokenSource struct {
	src  oauth2.TokenSource
	file string
	last string
}

func (s *persistingTokenSource) Token() (*oauth2.Token, error) {
	tok, err := s.src.Token()
	if err != nil {
		return nil, err
	}
	if tok.AccessToken != s.last {
		s.last = tok.AccessToken
		if data, err := json.Marshal(tok); err == nil {
			_ = os.WriteFile(s.file, data, 0o600)
		}
	}
	return tok, nil
}
