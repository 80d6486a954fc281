package transform

import (
	"net/http"

	"github.com/tidwall/sjson"
)

// passthroughHeaders is the fixed allow-list of client request headers the
// gateway forwards toward the upstream, modulo merging with mandated values.
var passthroughHeaders = []string{"anthropic-beta"}

// passthroughKey is the path under which allow-listed header values are
// staged on the request body for the upstream client to read and strip.
const passthroughKey = "_passthrough_headers"

// ApplyHeaderPassthrough stages every allow-listed header present on req
// into body._passthrough_headers.<name> and returns the updated body.
func ApplyHeaderPassthrough(body []byte, req *http.Request) ([]byte, error) {
	for _, name := range passthroughHeaders {
		value := req.Header.Get(name)
		if value == "" {
			continue
		}
		updated, err := sjson.SetBytes(body, passthroughKey+"."+name, value)
		if err != nil {
			return nil, err
		}
		body = updated
	}
	return body, nil
}

// StripPassthroughHeaders removes the staging sub-object before the body is
// forwarded upstream. Called by the upstream client after extracting the
// values it needs.
func StripPassthroughHeaders(body []byte) ([]byte, error) {
	return sjson.DeleteBytes(body, passthroughKey)
}
