// Package engine ties identity resolution, command routing, and the
// completion gateway into the single entry point every transport
// (HTTP, Discord, the local REPL) calls.
package engine

import (
	"context"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/crimsonworks/felix/pkg/gateway"
	"github.com/crimsonworks/felix/pkg/identity"
	"github.com/crimsonworks/felix/pkg/providers"
	"github.com/crimsonworks/felix/pkg/router"
	"github.com/crimsonworks/felix/pkg/window"
)

const emptyMessageReply = "No input received 😵"

// Completer is the completion gateway surface the engine depends on.
type Completer interface {
	Complete(ctx context.Context, msgs []providers.Message) (string, error)
}

// Engine handles one inbound message end to end: resolve the caller's
// record, run the command router, and fall back to the completion
// gateway for unmatched input.
type Engine struct {
	store     *identity.Store
	router    *router.Router
	builder   *window.Builder
	completer Completer
}

func New(store *identity.Store, r *router.Router, builder *window.Builder, completer Completer) *Engine {
	return &Engine{store: store, router: r, builder: builder, completer: completer}
}

// Handle routes one message for callerKey and returns the structured
// reply. Empty input is rejected before any record is created or
// mutated.
func (e *Engine) Handle(ctx context.Context, callerKey, message string) router.Reply {
	trimmed := strings.TrimSpace(message)
	if trimmed == "" {
		return router.Reply{Text: emptyMessageReply, Status: router.StatusError}
	}

	reqID := uuid.NewString()
	log := slog.With("request_id", reqID, "caller", callerKey)

	rec := e.store.Resolve(callerKey)
	if reply, ok := e.router.Route(rec, trimmed); ok {
		log.Debug("routed to built-in command", "status", reply.Status)
		return reply
	}

	// rec is a snapshot; the store lock is not held across the
	// completion round trip. Append re-resolves under the lock, so a
	// concurrent reset between the call and the append still wins.
	msgs := e.builder.BuildContext(rec, trimmed)
	text, err := e.completer.Complete(ctx, msgs)
	if err != nil {
		log.Warn("completion failed", "err", err)
		return router.Reply{Text: gateway.DegradedReply(err), Status: router.StatusError}
	}

	e.store.Append(callerKey,
		identity.Turn{Role: identity.RoleCaller, Text: trimmed},
		identity.Turn{Role: identity.RoleAssistant, Text: text},
	)
	log.Debug("completion reply delivered", "chars", len(text))
	return router.Reply{Text: text, Status: router.StatusSuccess}
}
