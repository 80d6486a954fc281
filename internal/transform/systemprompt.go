package transform

import (
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// identityMarker is the substring the upstream's client-identity check looks
// for in the first system block. Its presence anywhere in that block's text
// is sufficient; the gateway only prepends when it is absent.
const identityMarker = "You are Claude Code"

// identityBlockTemplate is prepended verbatim when the marker is missing.
const identityBlockTemplate = `{"type":"text","text":"You are Claude Code, Anthropic's official CLI for Claude.","cache_control":{"type":"ephemeral"}}`

// InjectSystemPrompt prepends the Claude Code identity block to body.system
// when it is an array whose first element's text does not already contain
// identityMarker. A body whose system field is absent or not an array is
// returned unchanged.
func InjectSystemPrompt(body []byte) ([]byte, error) {
	system := gjson.GetBytes(body, "system")
	if !system.IsArray() {
		return body, nil
	}

	blocks := system.Array()
	if len(blocks) > 0 && strings.Contains(blocks[0].Get("text").String(), identityMarker) {
		return body, nil
	}

	rawElements := make([]string, 0, len(blocks)+1)
	rawElements = append(rawElements, identityBlockTemplate)
	for _, b := range blocks {
		rawElements = append(rawElements, b.Raw)
	}
	newSystem := "[" + strings.Join(rawElements, ",") + "]"

	return sjson.SetRawBytes(body, "system", []byte(newSystem))
}
