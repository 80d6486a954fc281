package oauth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/arasple/pluribus/internal/credstore"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

// tokenResponse is the shared shape of the authorize-code exchange and the
// refresh-token responses.
type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
	Scope        string `json:"scope"`
}

// Engine obtains and maintains bearer tokens for claude_code providers. One
// Engine is shared by the whole process; per-provider refreshes are
// serialized through an internal singleflight.Group.
type Engine struct {
	httpClient *http.Client
	store      *credstore.Store
	tokenURL   string

	mu    sync.Mutex
	cache map[string]*credstore.OAuthCreds

	group singleflight.Group
}

// NewEngine wires an Engine to the credential store it refreshes against.
func NewEngine(store *credstore.Store) *Engine {
	return &Engine{
		httpClient: &http.Client{Timeout: httpTimeout},
		store:      store,
		tokenURL:   TokenURL,
		cache:      make(map[string]*credstore.OAuthCreds),
	}
}

// GenerateAuthURL builds the authorize-endpoint URL for an interactive login.
func GenerateAuthURL(state string, codes *PKCECodes) string {
	params := url.Values{
		"client_id":             {ClientID},
		"redirect_uri":          {RedirectURI},
		"response_type":         {"code"},
		"scope":                 {strings.Join(Scopes, " ")},
		"state":                 {state},
		"code_challenge":        {codes.CodeChallenge},
		"code_challenge_method": {"S256"},
	}
	return AuthorizeURL + "?" + params.Encode()
}

// SplitCodeAndState extracts the authorization code and an embedded state
// suffix from pasted callback input of the form "code#state".
func SplitCodeAndState(raw string) (code, state string) {
	if idx := strings.Index(raw, "#"); idx >= 0 {
		return raw[:idx], raw[idx+1:]
	}
	return raw, ""
}

// ExchangeCode trades an authorization code for a fresh credential.
func (e *Engine) ExchangeCode(ctx context.Context, code, state string, codes *PKCECodes) (*credstore.OAuthCreds, error) {
	body := map[string]string{
		"grant_type":    "authorization_code",
		"code":          code,
		"redirect_uri":  RedirectURI,
		"client_id":     ClientID,
		"code_verifier": codes.CodeVerifier,
		"state":         state,
	}
	return e.postToken(ctx, body)
}

// Refresh trades a refresh token for a fresh credential.
func (e *Engine) Refresh(ctx context.Context, refreshToken string) (*credstore.OAuthCreds, error) {
	body := map[string]string{
		"grant_type":    "refresh_token",
		"refresh_token": refreshToken,
		"client_id":     ClientID,
		"scope":         strings.Join(Scopes, " "),
	}
	return e.postToken(ctx, body)
}

func (e *Engine) postToken(ctx context.Context, body map[string]string) (*credstore.OAuthCreds, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("oauth: marshal token request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.tokenURL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("oauth: build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("oauth: token request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("oauth: read token response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("oauth: token endpoint returned %d: %s", resp.StatusCode, string(respBody))
	}

	var tr tokenResponse
	if err := json.Unmarshal(respBody, &tr); err != nil {
		return nil, fmt.Errorf("oauth: parse token response: %w", err)
	}

	nowMs := time.Now().UnixMilli()
	creds := &credstore.OAuthCreds{
		AccessToken:  tr.AccessToken,
		RefreshToken: tr.RefreshToken,
		ExpiresAt:    nowMs + tr.ExpiresIn*1000,
	}
	if tr.Scope != "" {
		creds.Scopes = strings.Fields(tr.Scope)
	}
	return creds, nil
}

// IsStale reports whether creds must be refreshed before use.
func IsStale(creds *credstore.OAuthCreds) bool {
	if creds == nil {
		return true
	}
	nowMs := time.Now().UnixMilli()
	return nowMs+RefreshThreshold.Milliseconds() >= creds.ExpiresAt
}

// GetValidToken returns a non-stale access token for providerName, refreshing
// it through the single-flight group when necessary. Concurrent callers for
// the same provider coalesce into exactly one refresh HTTP call.
func (e *Engine) GetValidToken(ctx context.Context, providerName string) (string, error) {
	e.mu.Lock()
	cached := e.cache[providerName]
	e.mu.Unlock()

	if cached != nil && !IsStale(cached) {
		return cached.AccessToken, nil
	}

	v, err, _ := e.group.Do(providerName, func() (interface{}, error) {
		return e.refreshIfStale(ctx, providerName)
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (e *Engine) refreshIfStale(ctx context.Context, providerName string) (string, error) {
	e.mu.Lock()
	cached := e.cache[providerName]
	e.mu.Unlock()
	if cached != nil && !IsStale(cached) {
		return cached.AccessToken, nil
	}

	cfg, err := e.store.Load(providerName)
	if err != nil {
		return "", fmt.Errorf("oauth: load provider %q: %w", providerName, err)
	}
	if cfg.OAuth == nil {
		return "", fmt.Errorf("oauth: provider %q has no oauth credentials", providerName)
	}

	if !IsStale(cfg.OAuth) {
		e.mu.Lock()
		e.cache[providerName] = cfg.OAuth
		e.mu.Unlock()
		return cfg.OAuth.AccessToken, nil
	}

	refreshed, err := e.Refresh(ctx, cfg.OAuth.RefreshToken)
	if err != nil {
		// Stale-but-present beats nothing: the disk copy is left untouched so a
		// later retry can succeed once the upstream recovers.
		return "", fmt.Errorf("oauth: refresh provider %q: %w", providerName, err)
	}

	if err := e.store.UpdateOAuth(providerName, refreshed); err != nil {
		log.Warnf("oauth: refreshed provider %q but failed to persist: %v", providerName, err)
	}

	e.mu.Lock()
	e.cache[providerName] = refreshed
	e.mu.Unlock()
	return refreshed.AccessToken, nil
}
