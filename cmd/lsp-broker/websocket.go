package main

import (
	"context"
	"net/http"

	"github.com/rockerboo/lsp-broker/internal/editortransport"
	"github.com/rockerboo/lsp-broker/internal/logger"
)

// runWebSocketServer mounts ws at /editor and blocks until ctx is canceled
// or the HTTP server fails.
func runWebSocketServer(ctx context.Context, addr string, ws *editortransport.WebSocketServer) {
	mux := http.NewServeMux()
	mux.Handle("/editor", ws)

	srv := &http.Server{Addr: addr, Handler: mux}

	go func() {
		<-ctx.Done()
		srv.Close()
	}()

	logger.Info("websocket editor transport listening", "address", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("websocket transport exited", "error", err)
	}
}
