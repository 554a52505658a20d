package broker

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/rockerboo/lsp-broker/internal/config"
	"github.com/rockerboo/lsp-broker/internal/logger"
	"github.com/rockerboo/lsp-broker/utils"
)

// DefaultInboxCapacity is the per-session bounded inbox size, sized to
// smooth bursty editor input without unbounded memory growth.
const DefaultInboxCapacity = 1024

// ConfigSource supplies the router with the live configuration, so it can
// be backed by either a static *config.Config or a hot-reloading
// *config.Watcher.
type ConfigSource interface {
	Current() *config.Config
}

type staticConfig struct{ cfg *config.Config }

func (s staticConfig) Current() *config.Config { return s.cfg }

// StaticConfigSource wraps a fixed configuration as a ConfigSource.
func StaticConfigSource(cfg *config.Config) ConfigSource { return staticConfig{cfg} }

// Router owns the route → session table. It is safe for concurrent use:
// every access to the table happens under its own mutex, and it never
// blocks on session I/O while holding it.
type Router struct {
	mu       sync.Mutex
	sessions map[Route]*Session

	cfg        ConfigSource
	editorOut  chan<- EditorResponse
	pathMapper *utils.DockerPathMapper
	inboxCap   int

	ctx context.Context
}

// NewRouter constructs a router. editorOut receives every EditorResponse
// produced by every session; it is typically backed by the editor
// transport's outbound channel.
func NewRouter(ctx context.Context, cfg ConfigSource, editorOut chan<- EditorResponse, mapper *utils.DockerPathMapper) *Router {
	return &Router{
		sessions:   make(map[Route]*Session),
		cfg:        cfg,
		editorOut:  editorOut,
		pathMapper: mapper,
		inboxCap:   DefaultInboxCapacity,
		ctx:        ctx,
	}
}

// ResolveRoute derives a Route from inbound meta: the session tag is taken
// verbatim, the language id is inferred from the buffer's extension, and
// the workspace root is the nearest ancestor directory containing a `.git`
// directory (falling back to the buffer's own directory).
func (r *Router) ResolveRoute(meta Meta) Route {
	cfg := r.cfg.Current()
	return Route{
		SessionTag:    meta.SessionTag,
		LanguageID:    languageForPath(cfg, meta.BufferPath),
		WorkspaceRoot: workspaceRootFor(meta.BufferPath),
	}
}

// Submit routes one editor call: an existing session's inbox receives it
// (blocking if full, the documented backpressure policy), or a session is
// lazily spawned for a never-seen route.
func (r *Router) Submit(ec EditorCall) error {
	route := r.ResolveRoute(ec.Meta)

	r.mu.Lock()
	sess, exists := r.sessions[route]
	if exists {
		r.mu.Unlock()
		sess.inbox <- ec
		return nil
	}

	cfg := r.cfg.Current()
	serverCfg, ok := cfg.ServerFor(route.LanguageID)
	if !ok {
		r.mu.Unlock()
		logger.Warn("no server configured for language", "language", route.LanguageID, "route", route)
		return ErrNoServerConfigured
	}

	sess = newSession(route, serverCfg, r.inboxCap, r.editorOut, r.pathMapper)
	r.sessions[route] = sess
	r.mu.Unlock()

	go sess.run(r.ctx, ec)
	return nil
}

// Autostart eagerly spawns a session for every language configured with
// autostart: true, instead of waiting for the first editor request.
func (r *Router) Autostart() {
	cfg := r.cfg.Current()
	if cfg == nil {
		return
	}
	for lang, serverCfg := range cfg.Language {
		if !serverCfg.Autostart || serverCfg.AutostartRoot == "" {
			continue
		}
		route := Route{SessionTag: "autostart", LanguageID: lang, WorkspaceRoot: serverCfg.AutostartRoot}

		r.mu.Lock()
		if _, exists := r.sessions[route]; exists {
			r.mu.Unlock()
			continue
		}
		sess := newSession(route, serverCfg, r.inboxCap, r.editorOut, r.pathMapper)
		r.sessions[route] = sess
		r.mu.Unlock()

		logger.Info("autostarting session", "route", route)
		go sess.run(r.ctx, EditorCall{Meta: Meta{SessionTag: "autostart"}, Call: Call{IsNotification: true}})
	}
}

// Snapshot returns a diagnostics-friendly view of every known route and
// its session state/progress, without exposing the sessions themselves.
func (r *Router) Snapshot() []RouteStatus {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]RouteStatus, 0, len(r.sessions))
	for route, sess := range r.sessions {
		sess.mu.Lock()
		state := sess.state
		sess.mu.Unlock()
		out = append(out, RouteStatus{
			Route:    route,
			State:    state,
			Progress: sess.progress.Snapshot(),
		})
	}
	return out
}

// RouteStatus is the diagnostics-facing view of one session.
type RouteStatus struct {
	Route    Route
	State    State
	Progress []ProgressEvent
}

func languageForPath(cfg *config.Config, path string) string {
	ext := strings.TrimPrefix(filepath.Ext(path), ".")
	return cfg.LanguageForExtension(ext)
}

func workspaceRootFor(bufferPath string) string {
	dir := filepath.Dir(bufferPath)
	for d := dir; ; {
		if _, err := os.Stat(filepath.Join(d, ".git")); err == nil {
			return d
		}
		parent := filepath.Dir(d)
		if parent == d {
			return dir
		}
		d = parent
	}
}
