// Package editortransport provides concrete editor-facing transports:
// stdio, a Unix/TCP socket listener, and WebSocket. Each decodes the
// broker's line-delimited JSON editor protocol into broker.EditorCall and
// encodes broker.EditorResponse back into that same wire shape.
package editortransport

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/rockerboo/lsp-broker/internal/broker"
)

type wireMeta struct {
	Session string `json:"session"`
	Client  string `json:"client"`
	Buffile string `json:"buffile"`
	Version uint64 `json:"version"`
}

type wireInbound struct {
	Meta   wireMeta        `json:"meta"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params"`
}

type wireOutbound struct {
	Meta    wireMeta `json:"meta"`
	Command string   `json:"command"`
}

// ParseInbound decodes one line of the editor protocol into an EditorCall.
// A missing session tag is taken from *defaultSession, or assigned a fresh
// one, so every physical connection that never sends one still maps to a
// distinct route. The first tag seen on a connection, provided or minted,
// is stored in an empty *defaultSession.
func ParseInbound(raw []byte, defaultSession *string) (broker.EditorCall, error) {
	var msg wireInbound
	if err := json.Unmarshal(raw, &msg); err != nil {
		return broker.EditorCall{}, fmt.Errorf("%w: %v", broker.ErrSchemaViolation, err)
	}

	session := msg.Meta.Session
	if session == "" {
		if defaultSession == nil || *defaultSession == "" {
			session = uuid.NewString()
		} else {
			session = *defaultSession
		}
	}
	if defaultSession != nil && *defaultSession == "" {
		*defaultSession = session
	}

	return broker.EditorCall{
		Meta: broker.Meta{
			SessionTag:      session,
			Client:          msg.Meta.Client,
			BufferPath:      msg.Meta.Buffile,
			DocumentVersion: msg.Meta.Version,
		},
		Call: broker.Call{
			Method:         msg.Method,
			Params:         msg.Params,
			IsNotification: isNotificationMethod(msg.Method),
		},
	}, nil
}

// isNotificationMethod distinguishes the three request methods this
// broker answers from everything else, which it treats as fire-and-forget
// per the broker's "only consumes notifications in practice" contract.
func isNotificationMethod(method string) bool {
	switch method {
	case "textDocument/completion", "textDocument/hover", "textDocument/definition":
		return false
	default:
		return true
	}
}

// FormatOutbound encodes an EditorResponse into one wire-protocol line.
func FormatOutbound(resp broker.EditorResponse) ([]byte, error) {
	out := wireOutbound{
		Meta: wireMeta{
			Session: resp.Meta.SessionTag,
			Client:  resp.Meta.Client,
			Buffile: resp.Meta.BufferPath,
			Version: resp.Meta.DocumentVersion,
		},
		Command: resp.Command,
	}
	return json.Marshal(out)
}
