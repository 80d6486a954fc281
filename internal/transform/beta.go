package transform

import (
	"sort"
	"strings"
)

// BaseBetaFlags is the hard-coded set required on every request to the
// claude_code channel, regardless of what the client asked for.
var BaseBetaFlags = []string{
	"claude-code-20250219",
	"fine-grained-tool-streaming-2025-05-14",
	"interleaved-thinking-2025-05-14",
	"oauth-2025-04-20",
}

// MergeBetaFlags returns the sorted, deduplicated union of BaseBetaFlags and
// passthrough, a comma-separated client-supplied value. Empty and
// whitespace-only elements of passthrough are discarded.
func MergeBetaFlags(passthrough string) string {
	set := make(map[string]struct{}, len(BaseBetaFlags))
	for _, f := range BaseBetaFlags {
		set[f] = struct{}{}
	}
	for _, f := range strings.Split(passthrough, ",") {
		f = strings.TrimSpace(f)
		if f == "" {
			continue
		}
		set[f] = struct{}{}
	}

	merged := make([]string, 0, len(set))
	for f := range set {
		merged = append(merged, f)
	}
	sort.Strings(merged)
	return strings.Join(merged, ",")
}
