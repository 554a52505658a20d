package broker

import (
	"context"
	"encoding/json"
	"os"
	"sync"

	"github.com/myleshyson/lsprotocol-go/protocol"
	"github.com/sourcegraph/jsonrpc2"

	"github.com/rockerboo/lsp-broker/internal/config"
	"github.com/rockerboo/lsp-broker/internal/langserver"
	"github.com/rockerboo/lsp-broker/internal/logger"
	"github.com/rockerboo/lsp-broker/utils"
)

// languageServer is the subset of *langserver.Transport a Session depends
// on. Sessions hold it as an interface, not the concrete type, so dispatch
// logic can be exercised with a recording fake in tests instead of
// spawning a real language-server process.
type languageServer interface {
	Send(id *int64, method string, params any) error
	Reply(id int64, rpcErr *jsonrpc2.Error) error
	Incoming() <-chan langserver.Message
}

// State is a session's position in the gated-startup state machine.
type State int

const (
	Starting State = iota
	AwaitingInit
	Ready
	Draining
)

// Session owns one route's handshake state, pending-request queue, response
// waitlist, and document version map. All three of its logical threads —
// editor reader, server reader, and the spawning/startup logic — share its
// mutable state (the fields below mu) under that single mutex.
type Session struct {
	route      Route
	serverCfg  config.LanguageServerConfig
	editorOut  chan<- EditorResponse
	pathMapper *utils.DockerPathMapper

	inbox chan EditorCall

	mu                sync.Mutex
	state             State
	capabilities      json.RawMessage
	pendingBeforeInit []EditorCall
	waitlist          map[int64]PendingRequest
	requestCounter    int64
	versions          map[string]uint64

	server   languageServer
	progress *ProgressTracker
}

func newSession(route Route, serverCfg config.LanguageServerConfig, inboxCap int, editorOut chan<- EditorResponse, mapper *utils.DockerPathMapper) *Session {
	return &Session{
		route:      route,
		serverCfg:  serverCfg,
		editorOut:  editorOut,
		pathMapper: mapper,
		inbox:      make(chan EditorCall, inboxCap),
		waitlist:   make(map[int64]PendingRequest),
		versions:   make(map[string]uint64),
		progress:   newProgressTracker(),
	}
}

// nextID returns the next request id and increments the counter, both
// under the session's exclusive lock, satisfying invariant 6.
func (s *Session) nextID() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.requestCounter
	s.requestCounter++
	return id
}

// run is the startup thread: it spawns the language-server transport,
// sends initialize, primes the pending queue with the request that caused
// this session to be created, and then launches the two reader loops.
func (s *Session) run(ctx context.Context, initial EditorCall) {
	server, err := langserver.Spawn(ctx, s.serverCfg.Command, s.serverCfg.Args)
	if err != nil {
		logger.Error("failed to spawn language server", "route", s.route, "error", err)
		return
	}
	s.server = server

	s.mu.Lock()
	s.state = Starting
	s.pendingBeforeInit = append(s.pendingBeforeInit, initial)
	s.mu.Unlock()

	id := s.nextID() // always 0, the first allocation
	params := map[string]any{
		"processId": os.Getpid(),
		"rootUri":   "file://" + s.route.WorkspaceRoot,
		"rootPath":  s.route.WorkspaceRoot,
		"trace":     "off",
		"capabilities": map[string]any{
			"textDocument": map[string]any{
				"completion": map[string]any{
					"completionItem": map[string]any{},
				},
			},
		},
	}

	s.mu.Lock()
	s.waitlist[id] = PendingRequest{ID: id, LSPMethod: "initialize"}
	s.state = AwaitingInit
	s.mu.Unlock()

	if err := s.server.Send(&id, "initialize", params); err != nil {
		logger.Error("failed to send initialize", "route", s.route, "error", err)
		return
	}

	go s.editorReaderLoop()
	go s.serverReaderLoop()
}

func (s *Session) editorReaderLoop() {
	for ec := range s.inbox {
		s.mu.Lock()
		ready := s.state == Ready
		if !ready {
			s.pendingBeforeInit = append(s.pendingBeforeInit, ec)
		}
		s.mu.Unlock()

		if ready {
			s.dispatchEditorRequest(ec)
		}
	}

	s.mu.Lock()
	s.state = Draining
	s.mu.Unlock()
}

func (s *Session) serverReaderLoop() {
	for msg := range s.server.Incoming() {
		switch msg.Kind {
		case langserver.KindResponse:
			s.handleServerResponse(msg)
		case langserver.KindServerRequest:
			if msg.ID == nil {
				continue
			}
			if err := s.server.Reply(*msg.ID, &jsonrpc2.Error{Code: jsonrpc2.CodeMethodNotFound, Message: "method not found"}); err != nil {
				logger.Warn("failed to reply method-not-found to server request", "route", s.route, "method", msg.Method, "error", err)
			}
		case langserver.KindServerNotification:
			s.handleServerNotification(msg)
		}
	}

	s.mu.Lock()
	s.state = Draining
	s.mu.Unlock()
	logger.Info("language server process exited, session draining", "route", s.route)
}

func (s *Session) handleServerNotification(msg langserver.Message) {
	if msg.Method == "$/progress" {
		s.progress.Update(msg.Params)
		return
	}
	logUnhandledNotification(msg.Method, msg.Params)
}

func (s *Session) handleServerResponse(msg langserver.Message) {
	if msg.ID == nil {
		logger.Warn("server response missing id", "route", s.route)
		return
	}

	s.mu.Lock()
	pending, ok := s.waitlist[*msg.ID]
	if ok {
		delete(s.waitlist, *msg.ID)
	}
	s.mu.Unlock()

	if !ok {
		logger.Debug(ErrCorrelationMiss.Error(), "route", s.route, "id", *msg.ID)
		return
	}

	if pending.LSPMethod == "initialize" {
		s.completeHandshake(msg)
		return
	}

	if msg.Error != nil {
		logger.Warn("server error response", "route", s.route, "method", pending.LSPMethod, "error", msg.Error.Message)
		return
	}

	cmd := formatResult(pending, msg.Result)
	if cmd == "" {
		return
	}
	s.editorOut <- EditorResponse{Meta: pending.EditorMeta, Command: cmd}
}

func (s *Session) completeHandshake(msg langserver.Message) {
	if msg.Error != nil {
		logger.Error("initialize failed", "route", s.route, "error", msg.Error.Message)
		s.mu.Lock()
		s.state = Draining
		s.mu.Unlock()
		return
	}

	var result struct {
		Capabilities json.RawMessage `json:"capabilities"`
	}
	_ = json.Unmarshal(msg.Result, &result)

	s.mu.Lock()
	s.capabilities = result.Capabilities
	s.state = Ready
	queued := s.pendingBeforeInit
	s.pendingBeforeInit = nil
	s.mu.Unlock()

	if err := s.server.Send(nil, "initialized", protocol.InitializedParams{}); err != nil {
		logger.Warn("failed to send initialized notification", "route", s.route, "error", err)
	}

	for _, ec := range queued {
		s.dispatchEditorRequest(ec)
	}
}
