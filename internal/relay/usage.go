package relay

import "github.com/tidwall/gjson"

// Usage is the four nonnegative token counters the gateway tracks per
// request. Parsed from response.usage bodies and merged across the two
// in-flight stream events that carry them.
type Usage struct {
	InputTokens         int64
	OutputTokens        int64
	CacheReadTokens     int64
	CacheCreationTokens int64
}

// ParseUsage extracts a Usage view from an Anthropic usage object located at
// path within raw JSON. Missing or non-numeric fields read as zero; this
// helper never errors, since the streaming relay must tolerate all-zero or
// partially-zero intermediate events such as message_start.
func ParseUsage(raw []byte, path string) Usage {
	obj := gjson.GetBytes(raw, path)
	return Usage{
		InputTokens:         obj.Get("input_tokens").Int(),
		OutputTokens:        obj.Get("output_tokens").Int(),
		CacheReadTokens:     obj.Get("cache_read_input_tokens").Int(),
		CacheCreationTokens: obj.Get("cache_creation_input_tokens").Int(),
	}
}

// Merge overlays other onto u, field by field: a nonzero value in other
// replaces the corresponding field in u; a zero value is "no update", never
// an error. message_start carries initial input/cache counters, message_delta
// carries updated output tokens; the final snapshot reflects both.
func (u Usage) Merge(other Usage) Usage {
	if other.InputTokens != 0 {
		u.InputTokens = other.InputTokens
	}
	if other.OutputTokens != 0 {
		u.OutputTokens = other.OutputTokens
	}
	if other.CacheReadTokens != 0 {
		u.CacheReadTokens = other.CacheReadTokens
	}
	if other.CacheCreationTokens != 0 {
		u.CacheCreationTokens = other.CacheCreationTokens
	}
	return u
}

// IsZero reports whether every counter is zero. The non-streaming
// response-logging path uses this to decide whether to warn; the merge path
// above never treats zero as an error.
func (u Usage) IsZero() bool {
	return u.InputTokens == 0 && u.OutputTokens == 0 && u.CacheReadTokens == 0 && u.CacheCreationTokens == 0
}

// ParseField reads a single top-level field out of a JSON payload as a
// string, returning "" if absent; a non-string value comes back as its JSON
// text.
func ParseField(raw []byte, field string) string {
	return gjson.GetBytes(raw, field).String()
}
