package broker

import (
	"encoding/json"
	"os"

	"github.com/myleshyson/lsprotocol-go/protocol"

	"github.com/rockerboo/lsp-broker/internal/logger"
	"github.com/rockerboo/lsp-broker/internal/security"
	"github.com/rockerboo/lsp-broker/utils"
)

type didChangeParams struct {
	Draft string `json:"draft"`
}

// dispatchEditorRequest implements the editor-reader thread's per-message
// logic: first-touch didOpen synthesis, then the method-specific handling
// from the state-machine table.
func (s *Session) dispatchEditorRequest(ec EditorCall) {
	path := s.resolveBufferPath(ec.Meta.BufferPath)
	if path == "" {
		logger.Warn("editor request rejected by path policy", "route", s.route, "buffer", ec.Meta.BufferPath)
		return
	}

	s.mu.Lock()
	_, touched := s.versions[path]
	s.mu.Unlock()

	firstTouch := !touched
	if firstTouch {
		if err := s.synthesizeDidOpen(path, ec.Meta.DocumentVersion); err != nil {
			logger.Warn("synthetic didOpen failed", "route", s.route, "path", path, "error", err)
			return
		}
	}

	switch ec.Call.Method {
	case "textDocument/didOpen":
		// handled by the first-touch synthesis above; an explicit
		// notification here would be redundant.
	case "textDocument/didChange":
		s.handleDidChange(ec, path, firstTouch)
	case "textDocument/didClose":
		s.forwardNotification("textDocument/didClose", protocol.DidCloseTextDocumentParams{
			TextDocument: protocol.TextDocumentIdentifier{Uri: protocol.DocumentUri(utils.FilePathToURI(path))},
		})
	case "textDocument/didSave":
		s.forwardNotification("textDocument/didSave", ec.Call.Params)
	case "textDocument/completion", "textDocument/hover", "textDocument/definition":
		s.dispatchRequest(ec)
	default:
		logger.Debug("unknown editor method dropped", "route", s.route, "method", ec.Call.Method)
	}
}

// resolveBufferPath applies the optional host/container path mapping and
// allowed-directory check to a raw editor-supplied path. It returns "" if
// the path is rejected.
func (s *Session) resolveBufferPath(raw string) string {
	path := raw
	if s.pathMapper != nil && s.pathMapper.IsEnabled() {
		if mapped, err := s.pathMapper.HostToContainer(raw); err == nil {
			path = mapped
		}
	}

	clean, err := security.GetCleanAbsPath(path)
	if err != nil {
		return ""
	}

	if len(s.serverCfg.AllowedDirectories) == 0 {
		return clean
	}
	for _, dir := range s.serverCfg.AllowedDirectories {
		if security.IsWithinAllowedDirectory(clean, dir) {
			return clean
		}
	}
	return ""
}

func (s *Session) synthesizeDidOpen(path string, version uint64) error {
	text, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	err = s.server.Send(nil, "textDocument/didOpen", protocol.DidOpenTextDocumentParams{
		TextDocument: protocol.TextDocumentItem{
			Uri:        protocol.DocumentUri(utils.FilePathToURI(path)),
			LanguageId: protocol.LanguageKind(s.route.LanguageID),
			Version:    int32(version),
			Text:       string(text),
		},
	})
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.versions[path] = version
	s.mu.Unlock()
	return nil
}

// handleDidChange forwards a didChange to the language server, dropping it
// if newVersion regresses or repeats the last-announced version (invariant
// 3). firstTouch is true when this call immediately follows this same
// request's own synthetic didOpen: synthesizeDidOpen has already recorded
// ec.Meta.DocumentVersion as the buffer's version, so the ordinary gate
// would always read newVersion == current and silently drop the very
// didChange that first touch is supposed to deliver. The gate only makes
// sense once a buffer has a prior version to regress against, so first
// touch forwards unconditionally instead.
func (s *Session) handleDidChange(ec EditorCall, path string, firstTouch bool) {
	newVersion := ec.Meta.DocumentVersion

	if !firstTouch {
		s.mu.Lock()
		current := s.versions[path]
		if newVersion <= current {
			s.mu.Unlock()
			return
		}
		s.versions[path] = newVersion
		s.mu.Unlock()
	}

	var params didChangeParams
	if err := json.Unmarshal(ec.Call.Params, &params); err != nil || params.Draft == "" {
		logger.Warn("didChange missing draft path", "route", s.route, "path", path)
		return
	}

	draft := s.resolveBufferPath(params.Draft)
	if draft == "" {
		logger.Warn("draft path rejected by path policy", "route", s.route, "draft", params.Draft)
		return
	}

	text, err := os.ReadFile(draft)
	if err != nil {
		logger.Warn("failed to read draft file", "route", s.route, "draft", draft, "error", err)
		return
	}
	_ = os.Remove(draft)

	// ContentChanges is a union type in lsprotocol-go (whole-document vs.
	// incremental edit); rather than guess its exact Go shape we send the
	// wire-level object directly, which is unambiguous LSP JSON.
	err = s.server.Send(nil, "textDocument/didChange", struct {
		TextDocument   protocol.VersionedTextDocumentIdentifier `json:"textDocument"`
		ContentChanges []map[string]string                      `json:"contentChanges"`
	}{
		TextDocument: protocol.VersionedTextDocumentIdentifier{
			Uri:     protocol.DocumentUri(utils.FilePathToURI(path)),
			Version: int32(newVersion),
		},
		ContentChanges: []map[string]string{{"text": string(text)}},
	})
	if err != nil {
		logger.Warn("failed to send didChange", "route", s.route, "path", path, "error", err)
	}
}

func (s *Session) forwardNotification(method string, params any) {
	if err := s.server.Send(nil, method, params); err != nil {
		logger.Warn("failed to forward notification", "route", s.route, "method", method, "error", err)
	}
}

func (s *Session) dispatchRequest(ec EditorCall) {
	id := s.nextID()
	s.mu.Lock()
	s.waitlist[id] = PendingRequest{
		ID:             id,
		EditorMeta:     ec.Meta,
		LSPMethod:      ec.Call.Method,
		OriginalParams: ec.Call.Params,
	}
	s.mu.Unlock()

	var params any = json.RawMessage(ec.Call.Params)
	if err := s.server.Send(&id, ec.Call.Method, params); err != nil {
		logger.Warn("failed to send request", "route", s.route, "method", ec.Call.Method, "error", err)
		s.mu.Lock()
		delete(s.waitlist, id)
		s.mu.Unlock()
	}
}
