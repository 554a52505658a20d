// lsp-broker is a single-binary broker that multiplexes many editor
// connections onto per-route language-server sessions, replaying the
// two-phase LSP handshake and correlating requests/responses itself instead
// of trusting each connected editor to do so.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/rockerboo/lsp-broker/internal/broker"
	"github.com/rockerboo/lsp-broker/internal/config"
	"github.com/rockerboo/lsp-broker/internal/diagnostics"
	"github.com/rockerboo/lsp-broker/internal/editortransport"
	"github.com/rockerboo/lsp-broker/internal/logger"
	"github.com/rockerboo/lsp-broker/utils"
)

func main() {
	var (
		configPath = flag.String("config", "lsp-broker.yaml", "path to the broker configuration file")
		transport  = flag.String("transport", "stdio", "editor transport: stdio, socket, or websocket")
		socketAddr = flag.String("socket", "/tmp/lsp-broker.sock", "unix socket path (transport=socket)")
		wsAddr     = flag.String("listen", ":7777", "HTTP listen address (transport=websocket)")
		diagMode   = flag.Bool("diagnostics", false, "run only the stdio diagnostics MCP tool and exit")
	)
	flag.Parse()

	logger.Configure(os.Getenv("LSP_BROKER_LOG_LEVEL"))

	watcher, err := config.NewWatcher(*configPath)
	if err != nil {
		logger.Error("failed to load configuration", "path", *configPath, "error", err)
		os.Exit(1)
	}
	defer watcher.Close()

	if lvl := watcher.Current().LogLevel; lvl != "" {
		logger.Configure(lvl)
	}

	pathMapper, err := utils.NewDockerPathMapperFromEnv()
	if err != nil || !pathMapper.IsEnabled() {
		pathMapper = nil
		if dpm := watcher.Current().DockerPathMapping; dpm != nil {
			pathMapper, err = utils.NewDockerPathMapper(dpm.HostRoot, dpm.ContainerRoot)
			if err != nil {
				logger.Warn("docker path mapping disabled", "error", err)
				pathMapper = nil
			}
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("shutting down")
		cancel()
	}()

	editorOut := make(chan broker.EditorResponse, 256)
	router := broker.NewRouter(ctx, watcher, editorOut, pathMapper)
	router.Autostart()

	if *diagMode {
		if err := diagnostics.Serve(router); err != nil {
			logger.Error("diagnostics server exited", "error", err)
			os.Exit(1)
		}
		return
	}

	switch *transport {
	case "stdio":
		t := editortransport.NewStdio()
		t.Run(ctx, func(ec broker.EditorCall) {
			if err := router.Submit(ec); err != nil {
				logger.Warn("submit failed", "error", err)
			}
		}, editorOut)

	case "socket":
		srv, err := editortransport.Listen("unix", *socketAddr, func(ec broker.EditorCall) {
			if err := router.Submit(ec); err != nil {
				logger.Warn("submit failed", "error", err)
			}
		})
		if err != nil {
			logger.Error("failed to start socket transport", "address", *socketAddr, "error", err)
			os.Exit(1)
		}
		go func() {
			for resp := range editorOut {
				srv.HandleResponse(resp)
			}
		}()
		if err := srv.Serve(ctx); err != nil {
			logger.Error("socket transport exited", "error", err)
			os.Exit(1)
		}

	case "websocket":
		ws := editortransport.NewWebSocketServer(func(ec broker.EditorCall) {
			if err := router.Submit(ec); err != nil {
				logger.Warn("submit failed", "error", err)
			}
		})
		go func() {
			for resp := range editorOut {
				ws.HandleResponse(resp)
			}
		}()
		runWebSocketServer(ctx, *wsAddr, ws)

	default:
		logger.Error("unknown transport", "transport", *transport)
		os.Exit(1)
	}
}
