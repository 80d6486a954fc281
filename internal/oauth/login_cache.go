package oauth

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// loginCacheTTL bounds how long a cached PKCE session is considered usable.
const loginCacheTTL = time.Hour

// cacheEntry is the on-disk PKCE session. It never carries tokens, only
// pre-authorization material that is safe to lose.
type cacheEntry struct {
	ID            string    `json:"id"`
	Provider      string    `json:"provider"`
	CodeVerifier  string    `json:"code_verifier"`
	CodeChallenge string    `json:"code_challenge"`
	State         string    `json:"state"`
	CreatedAt     time.Time `json:"created_at"`
}

// LoginCache persists the ephemeral PKCE session used across the login
// subcommand's browser round-trip, one file per OS user-cache directory.
type LoginCache struct {
	path string
}

// NewLoginCache resolves the cache file path under the OS user-cache
// directory (pluribus/oauth_login_cache.json).
func NewLoginCache() (*LoginCache, error) {
	base, err := os.UserCacheDir()
	if err != nil {
		return nil, fmt.Errorf("oauth: resolve user cache dir: %w", err)
	}
	return &LoginCache{path: filepath.Join(base, "pluribus", "oauth_login_cache.json")}, nil
}

// Load returns the cached session for provider if present and younger than
// loginCacheTTL. A missing or stale file is not an error: callers fall back
// to generating a fresh session.
func (c *LoginCache) Load(provider string) (*PKCECodes, string, bool) {
	data, err := os.ReadFile(c.path)
	if err != nil {
		return nil, "", false
	}

	var entry cacheEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, "", false
	}
	if entry.Provider != provider {
		return nil, "", false
	}
	if time.Since(entry.CreatedAt) >= loginCacheTTL {
		return nil, "", false
	}

	return &PKCECodes{CodeVerifier: entry.CodeVerifier, CodeChallenge: entry.CodeChallenge}, entry.State, true
}

// Save writes the session for provider, overwriting any prior entry.
func (c *LoginCache) Save(provider string, codes *PKCECodes, state string) error {
	entry := cacheEntry{
		ID:            uuid.NewString(),
		Provider:      provider,
		CodeVerifier:  codes.CodeVerifier,
		CodeChallenge: codes.CodeChallenge,
		State:         state,
		CreatedAt:     time.Now(),
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("oauth: marshal login cache: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(c.path), 0o700); err != nil {
		return fmt.Errorf("oauth: create cache dir: %w", err)
	}
	return os.WriteFile(c.path, data, 0o600)
}

// Delete removes the cached session. Called after a successful exchange so a
// later login starts fresh.
func (c *LoginCache) Delete() error {
	err := os.Remove(c.path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("oauth: delete login cache: %w", err)
	}
	return nil
}
