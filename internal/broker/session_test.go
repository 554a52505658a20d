package broker

import (
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/rockerboo/lsp-broker/internal/config"
	"github.com/rockerboo/lsp-broker/internal/langserver"
)

func serverResponseFor(id int64, result string) langserver.Message {
	return langserver.Message{Kind: langserver.KindResponse, ID: &id, Result: json.RawMessage(result)}
}

func TestNextID_MonotonicAndUniqueUnderConcurrency(t *testing.T) {
	s := newSession(Route{SessionTag: "t"}, config.LanguageServerConfig{}, 1, nil, nil)

	const n = 200
	ids := make([]int64, n)
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		i := i
		go func() {
			defer wg.Done()
			ids[i] = s.nextID()
		}()
	}
	wg.Wait()

	seen := make(map[int64]bool, n)
	for _, id := range ids {
		assert.False(t, seen[id], "id %d assigned twice", id)
		seen[id] = true
	}
	assert.Equal(t, int64(n), s.requestCounter)
}

// TestEditorReaderLoop_QueuesUntilReady covers scenario S3's queuing half:
// requests arriving before Ready accumulate in pendingBeforeInit, in
// arrival order, and are never dispatched directly.
func TestEditorReaderLoop_QueuesUntilReady(t *testing.T) {
	s := newSession(Route{SessionTag: "t"}, config.LanguageServerConfig{}, 4, nil, nil)
	s.state = AwaitingInit

	hover := EditorCall{Call: Call{Method: "textDocument/hover"}}
	definition := EditorCall{Call: Call{Method: "textDocument/definition"}}

	s.inbox <- hover
	s.inbox <- definition
	close(s.inbox)

	s.editorReaderLoop()

	s.mu.Lock()
	defer s.mu.Unlock()
	assert.Equal(t, Draining, s.state)
	if assert.Len(t, s.pendingBeforeInit, 2) {
		assert.Equal(t, "textDocument/hover", s.pendingBeforeInit[0].Call.Method)
		assert.Equal(t, "textDocument/definition", s.pendingBeforeInit[1].Call.Method)
	}
}

func TestHandleServerResponse_CorrelationMissIsDroppedSilently(t *testing.T) {
	out := make(chan EditorResponse, 1)
	s := newSession(Route{SessionTag: "t"}, config.LanguageServerConfig{}, 1, out, nil)

	id := int64(42)
	s.handleServerResponse(serverResponseFor(id, `{}`))

	select {
	case <-out:
		t.Fatal("expected no editor response for an unknown id")
	default:
	}
}

func TestHandleServerResponse_RemovesWaitlistEntryAndEmitsCommand(t *testing.T) {
	out := make(chan EditorResponse, 1)
	s := newSession(Route{SessionTag: "t"}, config.LanguageServerConfig{}, 1, out, nil)

	id := int64(7)
	s.waitlist[id] = PendingRequest{
		ID:             id,
		LSPMethod:      "textDocument/hover",
		EditorMeta:     Meta{BufferPath: "/a/b.rs"},
		OriginalParams: nil,
	}

	s.handleServerResponse(serverResponseFor(id, `{"contents":"hi"}`))

	_, stillPending := s.waitlist[id]
	assert.False(t, stillPending)

	resp := <-out
	assert.Equal(t, "info %§hi§", resp.Command)
}
