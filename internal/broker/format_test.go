package broker

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatCompletion(t *testing.T) {
	pending := PendingRequest{
		LSPMethod: "textDocument/completion",
		EditorMeta: Meta{
			BufferPath:      "/a/b.rs",
			DocumentVersion: 3,
		},
		OriginalParams: json.RawMessage(`{"position":{"line":1,"character":5},"prefix_length":2}`),
	}
	raw := json.RawMessage(`[{"label":"foo:bar","detail":"baz|qux","insertText":"foo:bar"}]`)

	cmd := formatCompletion(pending, raw)
	assert.Equal(t, `set %{buffer=/a/b.rs} lsp_completions %§2.4@3:foo\$cbar|baz\$cqux|foo\$cbar§`, cmd)
}

func TestFormatCompletion_FallsBackToLabelWhenNoInsertText(t *testing.T) {
	pending := PendingRequest{EditorMeta: Meta{BufferPath: "/a/b.rs"}}
	raw := json.RawMessage(`[{"label":"foo","detail":""}]`)
	cmd := formatCompletion(pending, raw)
	assert.Contains(t, cmd, "foo||foo")
}

func TestFormatCompletion_EmptyList(t *testing.T) {
	pending := PendingRequest{EditorMeta: Meta{BufferPath: "/a/b.rs"}}
	assert.Equal(t, "", formatCompletion(pending, json.RawMessage(`[]`)))
	assert.Equal(t, "", formatCompletion(pending, json.RawMessage(`null`)))
}

func TestFormatHover_FlattensArrayOfMixedShapes(t *testing.T) {
	raw := json.RawMessage(`{"contents":["a",{"language":"rust","value":"b"}]}`)
	cmd := formatHover(raw)
	assert.Equal(t, "info %§a\nb§", cmd)
}

func TestFormatHover_EmptyArrayEmitsNothing(t *testing.T) {
	raw := json.RawMessage(`{"contents":[]}`)
	assert.Equal(t, "", formatHover(raw))
}

func TestFormatHover_ScalarString(t *testing.T) {
	raw := json.RawMessage(`{"contents":"plain text"}`)
	assert.Equal(t, "info %§plain text§", formatHover(raw))
}

func TestFormatDefinition_ArrayTakesFirst(t *testing.T) {
	raw := json.RawMessage(`[
		{"uri":"file:///a/first.rs","range":{"start":{"line":10,"character":4}}},
		{"uri":"file:///a/second.rs","range":{"start":{"line":20,"character":0}}}
	]`)
	cmd := formatDefinition(raw)
	require.Contains(t, cmd, "first.rs")
	assert.Contains(t, cmd, "11 5")
}

func TestFormatDefinition_SingleLocation(t *testing.T) {
	raw := json.RawMessage(`{"uri":"file:///a/b.rs","range":{"start":{"line":0,"character":0}}}`)
	cmd := formatDefinition(raw)
	assert.Contains(t, cmd, "/a/b.rs")
	assert.Contains(t, cmd, "1 1")
}

func TestFormatDefinition_NullEmitsNothing(t *testing.T) {
	assert.Equal(t, "", formatDefinition(json.RawMessage(`null`)))
}

func TestEscapeCompletionField(t *testing.T) {
	assert.Equal(t, `foo\$cbar`, escapeCompletionField("foo:bar"))
	assert.Equal(t, `baz\$cqux`, escapeCompletionField("baz|qux"))
	assert.Equal(t, `a\$cb`, escapeCompletionField("a$b"))
}
