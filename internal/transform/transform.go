package transform

import (
	"net/http"

	"github.com/tidwall/sjson"
)

// Options controls the per-provider-configurable parts of the pipeline.
type Options struct {
	// Stream is the dispatch decision made earlier from the client's
	// original request; it overrides whatever body.stream the client sent.
	Stream bool
	// AliasTools enables bijective tool-name rewriting for providers that
	// need it to pass upstream-side tool-name checks.
	AliasTools bool
}

// Request runs the full outbound pipeline: header passthrough staging, the
// claude_code identity-prompt injection, optional tool-name aliasing, and
// the stream-field override.
func Request(body []byte, req *http.Request, opts Options) ([]byte, error) {
	body, err := ApplyHeaderPassthrough(body, req)
	if err != nil {
		return nil, err
	}

	body, err = InjectSystemPrompt(body)
	if err != nil {
		return nil, err
	}

	if opts.AliasTools {
		body, err = ApplyToolAliasOutbound(body)
		if err != nil {
			return nil, err
		}
	}

	return sjson.SetBytes(body, "stream", opts.Stream)
}
