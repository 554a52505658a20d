package broker

import "errors"

// ErrNoServerConfigured is the configuration-miss condition: the router has
// no language server command for a route's language id.
var ErrNoServerConfigured = errors.New("no language server configured for this language")

// ErrCorrelationMiss means a server reply named a JSON-RPC id that is not
// in the session's waitlist.
var ErrCorrelationMiss = errors.New("no pending request for this id")

// ErrSchemaViolation means an editor message failed to parse against the
// shape its method requires. It is raised at the editor-transport parsing
// stage, before the message is ever routed to a session, so a violation
// never reaches — and never affects — any Session or the Router.
var ErrSchemaViolation = errors.New("editor request violates expected schema")
