package editortransport

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rockerboo/lsp-broker/internal/broker"
)

func TestParseInbound_UsesProvidedSessionTag(t *testing.T) {
	raw := []byte(`{"meta":{"session":"s1","client":"kak","buffile":"/a/b.rs","version":3},"method":"textDocument/hover","params":{}}`)
	session := ""

	call, err := ParseInbound(raw, &session)
	require.NoError(t, err)

	assert.Equal(t, "s1", call.Meta.SessionTag)
	assert.Equal(t, "/a/b.rs", call.Meta.BufferPath)
	assert.Equal(t, uint64(3), call.Meta.DocumentVersion)
	assert.False(t, call.Call.IsNotification)
	assert.Equal(t, "s1", session)
}

func TestParseInbound_MintsSessionTagWhenMissing(t *testing.T) {
	raw := []byte(`{"meta":{"client":"kak","buffile":"/a/b.rs"},"method":"textDocument/didOpen","params":{}}`)
	session := ""

	call, err := ParseInbound(raw, &session)
	require.NoError(t, err)

	assert.NotEmpty(t, call.Meta.SessionTag)
	assert.Equal(t, session, call.Meta.SessionTag)
	assert.True(t, call.Call.IsNotification)
}

func TestParseInbound_ReusesDefaultSessionOnSubsequentCalls(t *testing.T) {
	session := "existing-session"
	raw := []byte(`{"meta":{"buffile":"/a/b.rs"},"method":"textDocument/didClose"}`)

	call, err := ParseInbound(raw, &session)
	require.NoError(t, err)
	assert.Equal(t, "existing-session", call.Meta.SessionTag)
}

func TestParseInbound_MalformedJSON(t *testing.T) {
	session := ""
	_, err := ParseInbound([]byte("not json"), &session)
	assert.ErrorIs(t, err, broker.ErrSchemaViolation)
}

func TestIsNotificationMethod(t *testing.T) {
	assert.False(t, isNotificationMethod("textDocument/completion"))
	assert.False(t, isNotificationMethod("textDocument/hover"))
	assert.False(t, isNotificationMethod("textDocument/definition"))
	assert.True(t, isNotificationMethod("textDocument/didChange"))
	assert.True(t, isNotificationMethod("textDocument/didOpen"))
}

func TestFormatOutbound(t *testing.T) {
	resp := broker.EditorResponse{
		Meta: broker.Meta{SessionTag: "s1", Client: "kak", BufferPath: "/a/b.rs", DocumentVersion: 3},
		Command: `info %§hi§`,
	}

	line, err := FormatOutbound(resp)
	require.NoError(t, err)
	assert.Contains(t, string(line), `"session":"s1"`)
	assert.Contains(t, string(line), `"command"`)
}
