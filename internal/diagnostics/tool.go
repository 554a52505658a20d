// Package diagnostics exposes an optional MCP tool that reports router and
// session state — which language servers are running, what state their
// handshake is in, and any in-flight $/progress streams — for operators
// inspecting a running broker from an MCP client.
package diagnostics

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/rockerboo/lsp-broker/internal/broker"
	"github.com/rockerboo/lsp-broker/internal/logger"
)

// ToolServer is the subset of *server.MCPServer this package depends on.
type ToolServer interface {
	AddTool(tool mcp.Tool, handler server.ToolHandlerFunc)
}

// RouteSnapshotter supplies the live router state. *broker.Router satisfies
// it.
type RouteSnapshotter interface {
	Snapshot() []broker.RouteStatus
}

func stateName(s broker.State) string {
	switch s {
	case broker.Starting:
		return "starting"
	case broker.AwaitingInit:
		return "awaiting_init"
	case broker.Ready:
		return "ready"
	case broker.Draining:
		return "draining"
	default:
		return "unknown"
	}
}

type routeStatusView struct {
	SessionTag    string                 `json:"session_tag"`
	LanguageID    string                 `json:"language_id"`
	WorkspaceRoot string                 `json:"workspace_root"`
	State         string                 `json:"state"`
	Progress      []broker.ProgressEvent `json:"progress,omitempty"`
}

// BuildStatus flattens the router's snapshot into a JSON-friendly view.
func BuildStatus(router RouteSnapshotter) []routeStatusView {
	statuses := router.Snapshot()
	out := make([]routeStatusView, 0, len(statuses))
	for _, st := range statuses {
		out = append(out, routeStatusView{
			SessionTag:    st.Route.SessionTag,
			LanguageID:    st.Route.LanguageID,
			WorkspaceRoot: st.Route.WorkspaceRoot,
			State:         stateName(st.State),
			Progress:      st.Progress,
		})
	}
	return out
}

// StatusTool builds the lsp_broker_status tool definition and handler.
func StatusTool(router RouteSnapshotter) (mcp.Tool, server.ToolHandlerFunc) {
	return mcp.NewTool("lsp_broker_status",
			mcp.WithDescription("Report every active language-server session this broker manages: its route, handshake state, and any in-flight $/progress streams."),
			mcp.WithDestructiveHintAnnotation(false),
		), func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			payload, err := json.MarshalIndent(BuildStatus(router), "", "  ")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			logger.Debug("lsp_broker_status: reported status")
			return mcp.NewToolResultText(string(payload)), nil
		}
}

// RegisterStatusTool mounts the status tool on an MCP server.
func RegisterStatusTool(mcpServer ToolServer, router RouteSnapshotter) {
	tool, handler := StatusTool(router)
	mcpServer.AddTool(tool, handler)
}

// Serve runs a stdio MCP server exposing only the status tool. It blocks
// until the transport closes, matching server.ServeStdio's own contract.
func Serve(router RouteSnapshotter) error {
	s := server.NewMCPServer("lsp-broker-diagnostics", "1.0.0")
	RegisterStatusTool(s, router)
	if err := server.ServeStdio(s); err != nil {
		return fmt.Errorf("diagnostics server: %w", err)
	}
	return nil
}
