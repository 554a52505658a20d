package broker

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/sourcegraph/jsonrpc2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rockerboo/lsp-broker/internal/config"
	"github.com/rockerboo/lsp-broker/internal/langserver"
)

// fakeLanguageServer records every Send call instead of writing to a real
// process, letting tests exercise dispatchEditorRequest end to end.
type fakeLanguageServer struct {
	mu   sync.Mutex
	sent []sentCall
}

type sentCall struct {
	method string
	params any
}

func (f *fakeLanguageServer) Send(id *int64, method string, params any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentCall{method: method, params: params})
	return nil
}

func (f *fakeLanguageServer) Reply(id int64, rpcErr *jsonrpc2.Error) error { return nil }

func (f *fakeLanguageServer) Incoming() <-chan langserver.Message { return nil }

// TestHandleDidChange_VersionRegressionDropped exercises scenario S2: a
// didChange with new_version <= the last-announced version must not touch
// versions or reach the language server.
func TestHandleDidChange_VersionRegressionDropped(t *testing.T) {
	s := newSession(Route{SessionTag: "t", LanguageID: "rust"}, config.LanguageServerConfig{}, 1, nil, nil)
	s.versions["/a/b.rs"] = 5

	s.handleDidChange(EditorCall{Meta: Meta{DocumentVersion: 4}}, "/a/b.rs", false)

	assert.Equal(t, uint64(5), s.versions["/a/b.rs"])
}

func TestHandleDidChange_EqualVersionDropped(t *testing.T) {
	s := newSession(Route{SessionTag: "t", LanguageID: "rust"}, config.LanguageServerConfig{}, 1, nil, nil)
	s.versions["/a/b.rs"] = 5

	s.handleDidChange(EditorCall{Meta: Meta{DocumentVersion: 5}}, "/a/b.rs", false)

	assert.Equal(t, uint64(5), s.versions["/a/b.rs"])
}

func TestResolveBufferPath_RejectsOutsideAllowedDirectory(t *testing.T) {
	s := newSession(Route{SessionTag: "t"}, config.LanguageServerConfig{
		AllowedDirectories: []string{"/workspace"},
	}, 1, nil, nil)

	assert.Equal(t, "", s.resolveBufferPath("/etc/passwd"))
}

func TestResolveBufferPath_AllowsWithinAllowedDirectory(t *testing.T) {
	s := newSession(Route{SessionTag: "t"}, config.LanguageServerConfig{
		AllowedDirectories: []string{"/workspace"},
	}, 1, nil, nil)

	assert.Equal(t, "/workspace/main.rs", s.resolveBufferPath("/workspace/main.rs"))
}

func TestResolveBufferPath_NoRestrictionAcceptsAnyCleanPath(t *testing.T) {
	s := newSession(Route{SessionTag: "t"}, config.LanguageServerConfig{}, 1, nil, nil)
	assert.Equal(t, "/tmp/x.rs", s.resolveBufferPath("/tmp/x.rs"))
}

// TestDispatchEditorRequest_FirstTouchDidChange exercises scenario S1
// through the full dispatchEditorRequest path: a didChange on a
// never-seen buffer must produce a synthesized didOpen (on-disk content)
// followed by the forwarded didChange (draft content), and the draft file
// must be deleted. A version-equal gate drop, correct for later edits to
// the same buffer, must not apply to this first one.
func TestDispatchEditorRequest_FirstTouchDidChange(t *testing.T) {
	dir := t.TempDir()
	bufferPath := filepath.Join(dir, "b.rs")
	require.NoError(t, os.WriteFile(bufferPath, []byte("on-disk"), 0o644))

	draftPath := filepath.Join(dir, "draft")
	require.NoError(t, os.WriteFile(draftPath, []byte("hello"), 0o644))

	fake := &fakeLanguageServer{}
	s := newSession(Route{SessionTag: "t", LanguageID: "rust"}, config.LanguageServerConfig{}, 1, nil, nil)
	s.server = fake

	params, err := json.Marshal(didChangeParams{Draft: draftPath})
	require.NoError(t, err)

	s.dispatchEditorRequest(EditorCall{
		Meta: Meta{BufferPath: bufferPath, DocumentVersion: 3},
		Call: Call{Method: "textDocument/didChange", Params: params},
	})

	require.Len(t, fake.sent, 2)
	assert.Equal(t, "textDocument/didOpen", fake.sent[0].method)
	assert.Equal(t, "textDocument/didChange", fake.sent[1].method)
	assert.Equal(t, uint64(3), s.versions[bufferPath])

	_, err = os.Stat(draftPath)
	assert.True(t, os.IsNotExist(err), "draft file should be deleted once forwarded")
}

// TestDispatchEditorRequest_SecondTouchRegressionDropped guards against a
// too-broad fix to the above: once a buffer has a real prior version, the
// ordinary version gate must still drop regressions.
func TestDispatchEditorRequest_SecondTouchRegressionDropped(t *testing.T) {
	dir := t.TempDir()
	bufferPath := filepath.Join(dir, "b.rs")
	require.NoError(t, os.WriteFile(bufferPath, []byte("on-disk"), 0o644))

	fake := &fakeLanguageServer{}
	s := newSession(Route{SessionTag: "t", LanguageID: "rust"}, config.LanguageServerConfig{}, 1, nil, nil)
	s.server = fake
	s.versions[bufferPath] = 5

	draftPath := filepath.Join(dir, "draft")
	require.NoError(t, os.WriteFile(draftPath, []byte("stale"), 0o644))
	params, err := json.Marshal(didChangeParams{Draft: draftPath})
	require.NoError(t, err)

	s.dispatchEditorRequest(EditorCall{
		Meta: Meta{BufferPath: bufferPath, DocumentVersion: 4},
		Call: Call{Method: "textDocument/didChange", Params: params},
	})

	assert.Empty(t, fake.sent, "regressed version must not reach the server")
	assert.Equal(t, uint64(5), s.versions[bufferPath])
	_, err = os.Stat(draftPath)
	assert.NoError(t, err, "dropped didChange must leave the draft file alone")
}
