package google

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func TestHasToken(t *testing.T) {
	dir := t.TempDir()
	p := NewFileAuthProvider("creds.json", filepath.Join(dir, "token.json"), nil)

	assert.False(t, p.HasToken())

	require.NoError(t, os.WriteFile(p.TokenFile, []byte("{}"), 0o600))
	assert.True(t, p.HasToken())
}

func TestSaveAndLoadToken(t *testing.T) {
	dir := t.TempDir()
	p := NewFileAuthProvider("creds.json", filepath.Join(dir, "nested", "token.json"), nil)

	tok := &oauth2.Token{
		AccessToken:  "access",
		RefreshToken: "refresh",
		TokenType:    "Bearer",
		Expiry:       time.Now().Add(time.Hour).Round(time.Second),
	}
	require.NoError(t, p.SaveToken(tok))

	loaded, err := p.loadToken()
	require.NoError(t, err)
	assert.Equal(t, tok.AccessToken, loaded.AccessToken)
	assert.Equal(t, tok.RefreshToken, loaded.RefreshToken)
}

func TestLoadTokenInvalidJSON(t *testing.T) {
	dir := t.TempDir()
	p := NewFileAuthProvider("creds.json", filepath.Join(dir, "token.json"), nil)
	require.NoError(t, os.WriteFile(p.TokenFile, []byte("not json"), 0o600))

	_, err := p.loadToken()
	assert.Error(t, err)
}

func TestClientWithoutCredentials(t *testing.T) {
	dir := t.TempDir()
	p := NewFileAuthProvider(filepath.Join(dir, "absent.json"), filepath.Join(dir, "token.json"), nil)

	_, err := p.Client(t.Context())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "credentials")
}
