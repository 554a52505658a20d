package editortransport

import (
	"bufio"
	"context"
	"io"
	"os"

	"github.com/rockerboo/lsp-broker/internal/broker"
	"github.com/rockerboo/lsp-broker/internal/logger"
)

// Stdio is a single-session editor transport over the process's own
// stdin/stdout, newline-delimited JSON in both directions.
type Stdio struct {
	In  io.Reader
	Out io.Writer
}

// NewStdio builds a Stdio transport over os.Stdin/os.Stdout.
func NewStdio() *Stdio {
	return &Stdio{In: os.Stdin, Out: os.Stdout}
}

// Run reads inbound lines and hands them to submit until ctx is canceled or
// input ends; outbound writes happen inline as responses arrive on out.
func (s *Stdio) Run(ctx context.Context, submit func(broker.EditorCall), out <-chan broker.EditorResponse) {
	go s.writeLoop(out)

	session := ""
	scanner := bufio.NewScanner(s.In)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return
		default:
		}

		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		call, err := ParseInbound(line, &session)
		if err != nil {
			logger.Warn("stdio editor transport: malformed message", "error", err)
			continue
		}
		submit(call)
	}
}

func (s *Stdio) writeLoop(out <-chan broker.EditorResponse) {
	for resp := range out {
		line, err := FormatOutbound(resp)
		if err != nil {
			logger.Warn("stdio editor transport: failed to encode response", "error", err)
			continue
		}
		line = append(line, '\n')
		if _, err := s.Out.Write(line); err != nil {
			logger.Warn("stdio editor transport: write failed", "error", err)
			return
		}
	}
}
