package httpapi

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/arasple/pluribus/internal/credstore"
	"github.com/arasple/pluribus/internal/oauth"
	"github.com/arasple/pluribus/internal/provider"
	"github.com/arasple/pluribus/internal/upstream"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// redirectTransport rewrites every outbound request to target's scheme and
// host, preserving path and query, so the gateway's pinned upstream and npm
// URLs land on a local test server instead of the network.
type redirectTransport struct {
	target *url.URL
}

func (t *redirectTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	clone := req.Clone(req.Context())
	clone.URL.Scheme = t.target.Scheme
	clone.URL.Host = t.target.Host
	clone.Host = t.target.Host
	return http.DefaultTransport.RoundTrip(clone)
}

func newFakeUpstream(t *testing.T, messagesStatus int, messagesBody string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasPrefix(r.URL.Path, "/v1/messages"):
			w.Header().Set("anthropic-ratelimit-unified-5h-status", "allowed")
			w.Header().Set("anthropic-ratelimit-unified-5h-utilization", "0.1")
			w.WriteHeader(messagesStatus)
			_, _ = w.Write([]byte(messagesBody))
		case strings.Contains(r.URL.Path, "claude-code"):
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`{"dist-tags":{"latest":"9.9.9"}}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
}

func newTestDeps(t *testing.T, upstreamServer *httptest.Server) *Deps {
	t.Helper()
	target, err := url.Parse(upstreamServer.URL)
	require.NoError(t, err)

	client := &http.Client{Transport: &redirectTransport{target: target}}

	store := credstore.New(t.TempDir())
	require.NoError(t, store.Save(&credstore.Config{
		Name: "claude-code",
		Type: credstore.ProviderClaudeCode,
		OAuth: &credstore.OAuthCreds{
			AccessToken:  "test-access-token",
			RefreshToken: "test-refresh-token",
			ExpiresAt:    time.Now().Add(time.Hour).UnixMilli(),
		},
	}))
	configs, err := store.LoadAll()
	require.NoError(t, err)
	registry := provider.Build(configs)

	return &Deps{
		Secret:           "s3cret",
		Registry:         registry,
		Engine:           oauth.NewEngine(store),
		MessagesClient:   client,
		VersionResolver:  upstream.NewVersionResolver(client),
		AliasToolsByName: map[string]bool{"claude-code": false},
	}
}

func TestHealthHandlerReportsProvidersAndVersion(t *testing.T) {
	upstreamServer := newFakeUpstream(t, http.StatusOK, `{}`)
	defer upstreamServer.Close()

	deps := newTestDeps(t, upstreamServer)
	router := NewRouter(deps)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)
	assert.Contains(t, w.Body.String(), `"9.9.9"`)
	assert.Contains(t, w.Body.String(), `"claude-code"`)
}

func TestMessagesHandlerRejectsMissingAuth(t *testing.T) {
	upstreamServer := newFakeUpstream(t, http.StatusOK, `{}`)
	defer upstreamServer.Close()

	deps := newTestDeps(t, upstreamServer)
	router := NewRouter(deps)

	req := httptest.NewRequest(http.MethodPost, "/anthropic/v1/messages", strings.NewReader(`{}`))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestMessagesHandlerRelaysUnitResponse(t *testing.T) {
	gin.SetMode(gin.TestMode)
	upstreamBody := `{"id":"msg_1","usage":{"input_tokens":12,"output_tokens":34}}`
	upstreamServer := newFakeUpstream(t, http.StatusOK, upstreamBody)
	defer upstreamServer.Close()

	deps := newTestDeps(t, upstreamServer)
	router := NewRouter(deps)

	reqBody := `{"model":"claude-3-5-sonnet-20241022","max_tokens":16,"messages":[{"role":"user","content":"hi"}]}`
	req := httptest.NewRequest(http.MethodPost, "/anthropic/v1/messages", strings.NewReader(reqBody))
	req.Header.Set("Authorization", "Bearer s3cret")
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, upstreamBody, w.Body.String())
}

func TestMessagesHandlerWrapsUpstreamErrorStatus(t *testing.T) {
	gin.SetMode(gin.TestMode)
	upstreamServer := newFakeUpstream(t, http.StatusTooManyRequests, `{"type":"error","message":"rate limited"}`)
	defer upstreamServer.Close()

	deps := newTestDeps(t, upstreamServer)
	router := NewRouter(deps)

	reqBody := `{"model":"claude-3-5-sonnet-20241022","max_tokens":16,"messages":[{"role":"user","content":"hi"}]}`
	req := httptest.NewRequest(http.MethodPost, "/anthropic/v1/messages", strings.NewReader(reqBody))
	req.Header.Set("Authorization", "Bearer s3cret")
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), `"upstream_http_error"`)
	assert.Contains(t, w.Body.String(), `"rate limited"`)
}

func TestMessagesHandlerReturnsNoProviderAvailableWhenRegistryEmpty(t *testing.T) {
	gin.SetMode(gin.TestMode)
	upstreamServer := newFakeUpstream(t, http.StatusOK, `{}`)
	defer upstreamServer.Close()

	deps := newTestDeps(t, upstreamServer)
	deps.Registry = provider.Build(nil)
	router := NewRouter(deps)

	reqBody := `{"model":"claude-3-5-sonnet-20241022","max_tokens":16,"messages":[{"role":"user","content":"hi"}]}`
	req := httptest.NewRequest(http.MethodPost, "/anthropic/v1/messages", strings.NewReader(reqBody))
	req.Header.Set("Authorization", "Bearer s3cret")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "no_provider_available")
}
