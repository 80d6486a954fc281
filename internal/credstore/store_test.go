package credstore

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	store := New(dir)

	cfg := &Config{
		Name: "work",
		Type: ProviderClaudeCode,
		OAuth: &OAuthCreds{
			AccessToken:  "at-1",
			RefreshToken: "rt-1",
			ExpiresAt:    1700000000000,
			Scopes:       []string{"user:inference"},
		},
	}

	require.NoError(t, store.Save(cfg))
	assert.FileExists(t, filepath.Join(dir, "work.toml"))

	loaded, err := store.Load("work")
	require.NoError(t, err)
	assert.Equal(t, "work", loaded.Name)
	assert.Equal(t, ProviderClaudeCode, loaded.Type)
	require.NotNil(t, loaded.OAuth)
	assert.Equal(t, "at-1", loaded.OAuth.AccessToken)
	assert.Equal(t, int64(1700000000000), loaded.OAuth.ExpiresAt)
	assert.Nil(t, loaded.API)
}

func TestLoadAllSkipsMalformedFiles(t *testing.T) {
	dir := t.TempDir()
	store := New(dir)

	good := &Config{Name: "good", Type: ProviderAnthropic, API: &APICreds{BaseURL: "https://api.anthropic.com", APIKey: "sk-1"}}
	require.NoError(t, store.Save(good))

	badPath := filepath.Join(dir, "bad.toml")
	require.NoError(t, os.WriteFile(badPath, []byte("type = \"anthropic\"\n"), 0o600))

	configs, err := store.LoadAll()
	require.NoError(t, err)
	require.Len(t, configs, 1)
	assert.Equal(t, "good", configs[0].Name)
}

func TestLoadAllEmptyDirReturnsEmptySlice(t *testing.T) {
	store := New(filepath.Join(t.TempDir(), "does-not-exist-yet"))
	configs, err := store.LoadAll()
	require.NoError(t, err)
	assert.Empty(t, configs)
}

func TestUpdateOAuthPreservesTypeReplacesCreds(t *testing.T) {
	dir := t.TempDir()
	store := New(dir)

	cfg := &Config{
		Name:  "work",
		Type:  ProviderClaudeCode,
		OAuth: &OAuthCreds{AccessToken: "old", RefreshToken: "old-r", ExpiresAt: 1},
	}
	require.NoError(t, store.Save(cfg))

	require.NoError(t, store.UpdateOAuth("work", &OAuthCreds{AccessToken: "new", RefreshToken: "new-r", ExpiresAt: 2}))

	loaded, err := store.Load("work")
	require.NoError(t, err)
	assert.Equal(t, ProviderClaudeCode, loaded.Type)
	assert.Equal(t, "new", loaded.OAuth.AccessToken)
	assert.Equal(t, int64(2), loaded.OAuth.ExpiresAt)
}

func TestValidateRejectsNeitherOrBoth(t *testing.T) {
	neither := &Config{Name: "x", Type: ProviderAnthropic}
	assert.Error(t, neither.Validate())

	both := &Config{
		Name:  "x",
		Type:  ProviderAnthropic,
		OAuth: &OAuthCreds{AccessToken: "a"},
		API:   &APICreds{APIKey: "k"},
	}
	assert.Error(t, both.Validate())
}
