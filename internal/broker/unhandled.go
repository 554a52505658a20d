package broker

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/rockerboo/lsp-broker/internal/logger"
)

// unhandledWindow and unhandledBurst bound how noisy logging gets when a
// server emits notifications this broker does not act on (e.g.
// window/logMessage, textDocument/publishDiagnostics — diagnostics
// publication is explicitly out of scope).
const (
	unhandledWindow = 10 * time.Second
	unhandledBurst  = 3
)

type unhandledBucket struct {
	windowStart time.Time
	emitted     int
	suppressed  int
}

var (
	unhandledMu      sync.Mutex
	unhandledBuckets = map[string]*unhandledBucket{}
)

func logUnhandledNotification(method string, params json.RawMessage) {
	now := time.Now()

	unhandledMu.Lock()
	b := unhandledBuckets[method]
	if b == nil {
		b = &unhandledBucket{windowStart: now}
		unhandledBuckets[method] = b
	}
	if now.Sub(b.windowStart) >= unhandledWindow {
		b.windowStart, b.emitted, b.suppressed = now, 0, 0
	}
	if b.emitted >= unhandledBurst {
		b.suppressed++
		unhandledMu.Unlock()
		return
	}
	b.emitted++
	unhandledMu.Unlock()

	logger.Debug(fmt.Sprintf("unhandled server notification: %s", method), "params_bytes", len(params))
}
