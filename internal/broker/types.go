package broker

import "encoding/json"

// Meta carries the editor-side context attached to every inbound call and
// echoed back (in spirit) on every outbound command.
type Meta struct {
	SessionTag      string
	Client          string
	BufferPath      string
	DocumentVersion uint64
}

// Call is the editor's method invocation: either a notification (no reply
// expected) or a method-call (the only kind this broker answers: completion,
// hover, definition).
type Call struct {
	Method         string
	Params         json.RawMessage
	IsNotification bool
}

// EditorCall is one message handed from the router to a session's inbox.
type EditorCall struct {
	Meta Meta
	Call Call
}

// EditorResponse is a formatted editor-script command ready to be written
// back out over the editor transport.
type EditorResponse struct {
	Meta    Meta
	Command string
}

// PendingRequest correlates an outstanding JSON-RPC id with the editor
// context and LSP method needed to format the eventual reply.
type PendingRequest struct {
	ID             int64
	EditorMeta     Meta
	LSPMethod      string
	OriginalParams json.RawMessage
}
