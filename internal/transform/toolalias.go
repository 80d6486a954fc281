package transform

import (
	"regexp"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// mcpPrefix is the fallback prefix applied to any tool name with no literal
// mapping entry.
const mcpPrefix = "mcp_"

// aliasTable holds the well-known (client name -> upstream name) pairs that
// bypass the upstream's tool-name checks without the mcp_ prefix.
var aliasTable = []struct{ client, upstream string }{
	{"bash", "Bash"},
	{"question", "AskUserQuestion"},
	{"read", "Read"},
	{"write", "Write"},
	{"edit", "Edit"},
	{"glob", "Glob"},
	{"grep", "Grep"},
	{"task", "Task"},
	{"webfetch", "WebFetch"},
	{"todowrite", "TodoWrite"},
	{"skill", "Skill"},
}

// ToUpstreamName maps a client-supplied tool name to the name sent upstream.
func ToUpstreamName(name string) string {
	for _, pair := range aliasTable {
		if pair.client == name {
			return pair.upstream
		}
	}
	if strings.HasPrefix(name, mcpPrefix) {
		return name
	}
	return mcpPrefix + name
}

// ToClientName is the inverse of ToUpstreamName; ToClientName(ToUpstreamName(x)) == x
// for every x that does not already start with mcp_ (such a name is sent
// unchanged and comes back with the prefix stripped).
func ToClientName(name string) string {
	for _, pair := range aliasTable {
		if pair.upstream == name {
			return pair.client
		}
	}
	return strings.TrimPrefix(name, mcpPrefix)
}

// ApplyToolAliasOutbound rewrites tools[].name and, for every tool_use block
// in messages[].content[], its name, to the upstream-facing alias.
func ApplyToolAliasOutbound(body []byte) ([]byte, error) {
	return rewriteNames(body, ToUpstreamName)
}

// ApplyToolAliasInboundUnit rewrites content[].name on a non-streaming
// response body back to the client-facing name.
func ApplyToolAliasInboundUnit(body []byte) ([]byte, error) {
	result := gjson.GetBytes(body, "content")
	if !result.IsArray() {
		return body, nil
	}
	out := body
	var err error
	result.ForEach(func(idx, item gjson.Result) bool {
		if item.Get("type").String() != "tool_use" {
			return true
		}
		name := item.Get("name").String()
		if name == "" {
			return true
		}
		path := "content." + idx.String() + ".name"
		out, err = sjson.SetBytes(out, path, ToClientName(name))
		return err == nil
	})
	return out, err
}

func rewriteNames(body []byte, transform func(string) string) ([]byte, error) {
	out := body
	var err error

	tools := gjson.GetBytes(out, "tools")
	if tools.IsArray() {
		tools.ForEach(func(idx, tool gjson.Result) bool {
			name := tool.Get("name").String()
			if name == "" {
				return true
			}
			path := "tools." + idx.String() + ".name"
			out, err = sjson.SetBytes(out, path, transform(name))
			return err == nil
		})
		if err != nil {
			return nil, err
		}
	}

	messages := gjson.GetBytes(out, "messages")
	if messages.IsArray() {
		messages.ForEach(func(mi, msg gjson.Result) bool {
			content := msg.Get("content")
			if !content.IsArray() {
				return true
			}
			content.ForEach(func(ci, block gjson.Result) bool {
				if block.Get("type").String() != "tool_use" {
					return true
				}
				name := block.Get("name").String()
				if name == "" {
					return true
				}
				path := "messages." + mi.String() + ".content." + ci.String() + ".name"
				out, err = sjson.SetBytes(out, path, transform(name))
				return err == nil
			})
			return err == nil
		})
		if err != nil {
			return nil, err
		}
	}

	return out, nil
}

// toolNamePattern matches a `"name":"X"` pattern the way the upstream
// stream's raw text carries tool names before events are reassembled.
var toolNamePattern = regexp.MustCompile(`"name"\s*:\s*"([^"]+)"`)

// RestoreToolNamesInStream rewrites `"name":"X"` occurrences in raw SSE text
// back to client-facing names. Used because the renamer must run over
// yet-to-be-reassembled stream text rather than parsed JSON.
func RestoreToolNamesInStream(text string) string {
	return toolNamePattern.ReplaceAllStringFunc(text, func(match string) string {
		sub := toolNamePattern.FindStringSubmatch(match)
		if len(sub) != 2 {
			return match
		}
		return `"name":"` + ToClientName(sub[1]) + `"`
	})
}
