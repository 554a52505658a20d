package editortransport

import (
	"bufio"
	"context"
	"net"
	"sync"

	"github.com/rockerboo/lsp-broker/internal/broker"
	"github.com/rockerboo/lsp-broker/internal/logger"
)

// SocketServer accepts multiple concurrent editor connections over a Unix
// domain socket or TCP listener, each framed as newline-delimited JSON.
// Outbound responses are demultiplexed back to the connection that owns
// their session tag.
type SocketServer struct {
	listener net.Listener
	submit   func(broker.EditorCall)

	mu    sync.Mutex
	conns map[string]chan broker.EditorResponse
}

// Listen starts a listener for network ("unix" or "tcp") at address.
func Listen(network, address string, submit func(broker.EditorCall)) (*SocketServer, error) {
	l, err := net.Listen(network, address)
	if err != nil {
		return nil, err
	}
	return &SocketServer{listener: l, submit: submit, conns: make(map[string]chan broker.EditorResponse)}, nil
}

// Serve accepts connections until ctx is canceled or the listener closes.
func (s *SocketServer) Serve(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		s.listener.Close()
	}()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				return err
			}
		}
		go s.handleConn(conn)
	}
}

func (s *SocketServer) handleConn(conn net.Conn) {
	defer conn.Close()

	session := ""
	out := make(chan broker.EditorResponse, 64)

	defer func() {
		if session != "" {
			s.mu.Lock()
			delete(s.conns, session)
			s.mu.Unlock()
		}
		close(out)
	}()

	go func() {
		for resp := range out {
			line, err := FormatOutbound(resp)
			if err != nil {
				continue
			}
			line = append(line, '\n')
			if _, err := conn.Write(line); err != nil {
				return
			}
		}
	}()

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		call, err := ParseInbound(line, &session)
		if err != nil {
			logger.Warn("socket editor transport: malformed message", "error", err)
			continue
		}

		if session != "" {
			s.mu.Lock()
			if _, ok := s.conns[session]; !ok {
				s.conns[session] = out
			}
			s.mu.Unlock()
		}

		s.submit(call)
	}
}

// HandleResponse routes one EditorResponse from the router's shared
// outbound channel to the connection owning its session tag. Responses
// for unknown or disconnected sessions are dropped with a diagnostic.
func (s *SocketServer) HandleResponse(resp broker.EditorResponse) {
	s.mu.Lock()
	ch, ok := s.conns[resp.Meta.SessionTag]
	s.mu.Unlock()
	if !ok {
		logger.Debug("dropping response for unknown/disconnected session", "session", resp.Meta.SessionTag)
		return
	}
	ch <- resp
}
