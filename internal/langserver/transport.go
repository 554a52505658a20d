// Package langserver spawns a language-server child process and frames
// JSON-RPC 2.0 traffic over its stdio.
package langserver

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"

	"github.com/sourcegraph/jsonrpc2"

	"github.com/rockerboo/lsp-broker/internal/logger"
)

// Message is a decoded JSON-RPC 2.0 envelope read from the server. Exactly
// one of the three shapes applies, distinguished by Kind.
type Message struct {
	Kind   Kind
	ID     *int64
	Method string
	Params json.RawMessage
	Result json.RawMessage
	Error  *jsonrpc2.Error
}

// Kind classifies an inbound Message.
type Kind int

const (
	// KindResponse is a reply (success or error) to a request we sent.
	KindResponse Kind = iota
	// KindServerRequest is a request the server initiated toward us.
	KindServerRequest
	// KindServerNotification is a fire-and-forget message from the server.
	KindServerNotification
)

type wireEnvelope struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      *int64          `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *jsonrpc2.Error `json:"error,omitempty"`
}

// Transport owns one spawned language-server process and its framed
// JSON-RPC stream. Reads are delivered on Incoming; writes are safe for
// concurrent use.
type Transport struct {
	cmd    *exec.Cmd
	stream jsonrpc2.ObjectStream

	writeMu sync.Mutex

	incoming <-chan Message
}

// Incoming returns the channel of decoded messages read from the server.
func (t *Transport) Incoming() <-chan Message { return t.incoming }

type stdioRWC struct {
	in  io.WriteCloser
	out io.ReadCloser
}

func (s *stdioRWC) Read(p []byte) (int, error)  { return s.out.Read(p) }
func (s *stdioRWC) Write(p []byte) (int, error) { return s.in.Write(p) }
func (s *stdioRWC) Close() error {
	inErr := s.in.Close()
	outErr := s.out.Close()
	if inErr != nil {
		return inErr
	}
	return outErr
}

// Spawn starts command with args and begins framing JSON-RPC over its
// stdio. The child's stderr is inherited so diagnostics reach the
// broker's own log stream.
func Spawn(ctx context.Context, command string, args []string) (*Transport, error) {
	cmd := exec.CommandContext(ctx, command, args...)
	cmd.Stderr = os.Stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("stdin pipe for %s: %w", command, err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe for %s: %w", command, err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", command, err)
	}

	rwc := &stdioRWC{in: stdin, out: stdout}
	stream := jsonrpc2.NewBufferedStream(rwc, jsonrpc2.VSCodeObjectCodec{})

	ch := make(chan Message, 64)
	t := &Transport{cmd: cmd, stream: stream, incoming: ch}
	go t.readLoop(ch)
	return t, nil
}

func (t *Transport) readLoop(ch chan<- Message) {
	defer close(ch)
	for {
		var raw json.RawMessage
		if err := t.stream.ReadObject(&raw); err != nil {
			if err != io.EOF {
				logger.Warn("language server stream closed", "error", err)
			}
			return
		}

		var env wireEnvelope
		if err := json.Unmarshal(raw, &env); err != nil {
			logger.Warn("malformed JSON-RPC envelope from server", "error", err)
			continue
		}

		msg := Message{ID: env.ID, Method: env.Method, Params: env.Params, Result: env.Result, Error: env.Error}
		switch {
		case env.Method != "" && env.ID != nil:
			msg.Kind = KindServerRequest
		case env.Method != "":
			msg.Kind = KindServerNotification
		default:
			msg.Kind = KindResponse
		}
		ch <- msg
	}
}

// Send writes a request (id != nil) or notification (id == nil) to the
// server.
func (t *Transport) Send(id *int64, method string, params any) error {
	raw, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("marshal params for %s: %w", method, err)
	}
	env := wireEnvelope{JSONRPC: "2.0", ID: id, Method: method, Params: raw}
	return t.write(env)
}

// Reply answers a server-originated request with an error, the only shape
// this broker produces for unsupported server requests.
func (t *Transport) Reply(id int64, rpcErr *jsonrpc2.Error) error {
	env := wireEnvelope{JSONRPC: "2.0", ID: &id, Error: rpcErr}
	return t.write(env)
}

func (t *Transport) write(env wireEnvelope) error {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	return t.stream.WriteObject(env)
}

// Close terminates the child process and its pipes.
func (t *Transport) Close() error {
	t.stream.Close()
	if t.cmd.Process != nil {
		return t.cmd.Process.Kill()
	}
	return nil
}
