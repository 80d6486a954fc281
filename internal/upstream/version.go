package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"

	log "github.com/sirupsen/logrus"
)

// VersionURL is the npm registry entry whose dist-tags.latest the gateway
// mirrors into its user-agent string.
const VersionURL = "https://registry.npmjs.org/@anthropic-ai/claude-code"

// PinnedVersionFallback is used when the registry lookup fails, so a flaky
// network never blocks startup.
const PinnedVersionFallback = "2.0.75"

type distTagsResponse struct {
	DistTags struct {
		Latest string `json:"latest"`
	} `json:"dist-tags"`
}

// VersionResolver caches the resolved upstream version string for the
// process lifetime; Resolve must be called once, eagerly, before the
// first request is served.
type VersionResolver struct {
	client *http.Client
	url    string

	once    sync.Once
	version string
}

// NewVersionResolver wires a resolver to the shared auxiliary HTTP client.
func NewVersionResolver(client *http.Client) *VersionResolver {
	return &VersionResolver{client: client, url: VersionURL}
}

// Resolve fetches the version exactly once and caches the result (including
// the pinned fallback on failure) for subsequent calls.
func (v *VersionResolver) Resolve(ctx context.Context) string {
	v.once.Do(func() {
		v.version = v.fetch(ctx)
	})
	return v.version
}

func (v *VersionResolver) fetch(ctx context.Context) string {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.url, nil)
	if err != nil {
		log.Warnf("upstream: build version request failed, using pinned fallback: %v", err)
		return PinnedVersionFallback
	}

	resp, err := v.client.Do(req)
	if err != nil {
		log.Warnf("upstream: version lookup failed, using pinned fallback: %v", err)
		return PinnedVersionFallback
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		log.Warnf("upstream: version lookup returned %d, using pinned fallback", resp.StatusCode)
		return PinnedVersionFallback
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		log.Warnf("upstream: read version response failed, using pinned fallback: %v", err)
		return PinnedVersionFallback
	}

	var parsed distTagsResponse
	if err := json.Unmarshal(body, &parsed); err != nil || parsed.DistTags.Latest == "" {
		log.Warnf("upstream: parse version response failed, using pinned fallback")
		return PinnedVersionFallback
	}

	return parsed.DistTags.Latest
}

// UserAgent formats the claude-code/<version> user-agent string.
func UserAgent(version string) string {
	return fmt.Sprintf("claude-code/%s", version)
}
