package workspace

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

const installedCredentials = `{"installed":{
  "client_id":"client.apps.googleusercontent.com",
  "client_secret":"secret",
  "redirect_uris":["http://localhost"],
  "auth_uri":"https://accounts.google.com/o/oauth2/auth",
  "token_uri":"https://oauth2.googleapis.com/token"}}`

func TestNewHTTPClient(t *testing.T) {
	dir := t.TempDir()
	creds := filepath.Join(dir, "credentials.json")
	token := filepath.Join(dir, "token.json")
	require.NoError(t, os.WriteFile(creds, []byte(installedCredentials), 0o600))

	_, err := NewHTTPClient(context.Background(), creds, token)
	assert.ErrorContains(t, err, "authorize")

	require.NoError(t, saveToken(token, &oauth2.Token{
		AccessToken:  "access",
		RefreshToken: "refresh",
		Expiry:       time.Now().Add(time.Hour),
	}))
	client, err := NewHTTPClient(context.Background(), creds, token)
	require.NoError(t, err)
	assert.NotNil(t, client)

	tok, err := loadToken(token)
	require.NoError(t, err)
	assert.Equal(t, "refresh", tok.RefreshToken)
}

func TestAuthorize_NoCode(t *testing.T) {
	dir := t.TempDir()
	creds := filepath.Join(dir, "credentials.json")
	require.NoError(t, os.WriteFile(creds, []byte(installedCredentials), 0o600))

	var out strings.Builder
	err := Authorize(context.Background(), creds, filepath.Join(dir, "token.json"), strings.NewReader("\n"), &out)
	assert.ErrorContains(t, err, "no authorization code")
	assert.Contains(t, out.String(), "accounts.google.com")
}

func TestNewHTTPClient_MissingCredentials(t *testing.T) {
	_, err := NewHTTPClient(context.Background(), filepath.Join(t.TempDir(), "missing.json"), "token.json")
	assert.ErrorContains(t, err, "google credentials")
}
