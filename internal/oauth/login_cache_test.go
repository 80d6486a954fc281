package oauth

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCacheAt(t *testing.T, dir string) *LoginCache {
	t.Helper()
	return &LoginCache{path: filepath.Join(dir, "pluribus", "oauth_login_cache.json")}
}

func TestLoginCacheSaveLoadRoundTrip(t *testing.T) {
	cache := newCacheAt(t, t.TempDir())
	codes := &PKCECodes{CodeVerifier: "v", CodeChallenge: "c"}

	require.NoError(t, cache.Save("claude-code", codes, "state-1"))

	loaded, state, ok := cache.Load("claude-code")
	require.True(t, ok)
	assert.Equal(t, "v", loaded.CodeVerifier)
	assert.Equal(t, "state-1", state)
}

func TestLoginCacheRejectsStaleEntry(t *testing.T) {
	dir := t.TempDir()
	cache := newCacheAt(t, dir)
	codes := &PKCECodes{CodeVerifier: "v", CodeChallenge: "c"}
	require.NoError(t, cache.Save("claude-code", codes, "state-1"))

	// Rewrite created_at into the past to simulate an expired cache.
	data, err := os.ReadFile(cache.path)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(cache.path, mustBackdate(t, data), 0o600))

	_, _, ok := cache.Load("claude-code")
	assert.False(t, ok)
}

func TestLoginCacheRejectsWrongProvider(t *testing.T) {
	cache := newCacheAt(t, t.TempDir())
	codes := &PKCECodes{CodeVerifier: "v", CodeChallenge: "c"}
	require.NoError(t, cache.Save("claude-code", codes, "state-1"))

	_, _, ok := cache.Load("codex")
	assert.False(t, ok)
}

func TestLoginCacheDeleteIsIdempotent(t *testing.T) {
	cache := newCacheAt(t, t.TempDir())
	require.NoError(t, cache.Delete())
	codes := &PKCECodes{CodeVerifier: "v", CodeChallenge: "c"}
	require.NoError(t, cache.Save("claude-code", codes, "state-1"))
	require.NoError(t, cache.Delete())
	require.NoError(t, cache.Delete())
}

func mustBackdate(t *testing.T, data []byte) []byte {
	t.Helper()
	var entry cacheEntry
	require.NoError(t, json.Unmarshal(data, &entry))
	entry.CreatedAt = entry.CreatedAt.Add(-2 * time.Hour)
	out, err := json.Marshal(entry)
	require.NoError(t, err)
	return out
}
