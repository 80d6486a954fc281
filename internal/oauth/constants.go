// Package oauth implements the PKCE authorization-code flow and the
// single-flight proactive token refresh that keeps claude_code providers
// authenticated against Anthropic's identity provider.
package oauth

import "time"

// Constants pinned by the upstream identity provider; changing any of these
// causes the authorize or token endpoint to reject the request outright.
const (
	AuthorizeURL = "https://claude.ai/oauth/authorize"
	TokenURL     = "https://console.anthropic.com/v1/oauth/token"
	ClientID     = "9d1c250a-e61b-44d9-88ed-5944d1962f5e"
	RedirectURI  = "urn:ietf:wg:oauth:2.0:oob"
)

// Scopes requested on every authorize and refresh call, in a fixed order so
// the space-joined scope string is deterministic.
var Scopes = []string{
	"org:create_api_key",
	"user:profile",
	"user:inference",
	"user:sessions:claude_code",
}

// RefreshThreshold is the staleness window: a credential is refreshed once
// its remaining lifetime drops below this duration.
const RefreshThreshold = 5 * time.Minute

// httpTimeout bounds every OAuth token-endpoint HTTP round-trip.
const httpTimeout = 30 * time.Second
