package editortransport

import (
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/rockerboo/lsp-broker/internal/broker"
	"github.com/rockerboo/lsp-broker/internal/logger"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// WebSocketServer accepts editor connections over WebSocket, one JSON
// message per frame — there is no Content-Length framing here, since
// gorilla/websocket already delivers whole messages.
type WebSocketServer struct {
	submit func(broker.EditorCall)

	mu    sync.Mutex
	conns map[string]*websocket.Conn
}

// NewWebSocketServer builds a handler to mount at the editor's WebSocket
// endpoint.
func NewWebSocketServer(submit func(broker.EditorCall)) *WebSocketServer {
	return &WebSocketServer{submit: submit, conns: make(map[string]*websocket.Conn)}
}

// ServeHTTP upgrades the connection and reads inbound frames until the
// socket closes.
func (s *WebSocketServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn("websocket editor transport: upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	session := ""
	defer func() {
		if session != "" {
			s.mu.Lock()
			delete(s.conns, session)
			s.mu.Unlock()
		}
	}()

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}

		call, err := ParseInbound(msg, &session)
		if err != nil {
			logger.Warn("websocket editor transport: malformed message", "error", err)
			continue
		}

		if session != "" {
			s.mu.Lock()
			if _, ok := s.conns[session]; !ok {
				s.conns[session] = conn
			}
			s.mu.Unlock()
		}

		s.submit(call)
	}
}

// HandleResponse writes one EditorResponse to the connection owning its
// session tag.
func (s *WebSocketServer) HandleResponse(resp broker.EditorResponse) {
	s.mu.Lock()
	conn, ok := s.conns[resp.Meta.SessionTag]
	s.mu.Unlock()
	if !ok {
		logger.Debug("dropping response for unknown/disconnected session", "session", resp.Meta.SessionTag)
		return
	}

	line, err := FormatOutbound(resp)
	if err != nil {
		return
	}
	if err := conn.WriteMessage(websocket.TextMessage, line); err != nil {
		logger.Warn("websocket editor transport: write failed", "error", err)
	}
}
