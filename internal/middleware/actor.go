package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"projector-maintenance-api/internal/model"
)

const actorKey contextKey = "actor"

// ActorHeaderID and ActorHeaderRole carry the caller identity resolved by
// the upstream identity collaborator. The engine trusts these headers; it
// does not authenticate, it only checks the role against each operation.
const (
	ActorHeaderID   = "X-Actor-ID"
	ActorHeaderRole = "X-Actor-Role"
)

// ActorMiddleware resolves the acting identity from request headers and
// stores it in the request context. Requests without the headers still pass
// through; role enforcement happens in the service layer, which rejects a
// zero actor on mutating operations.
type ActorMiddleware struct{}

// NewActorMiddleware creates a new actor middleware
func NewActorMiddleware() *ActorMiddleware {
	return &ActorMiddleware{}
}

// ResolveActor extracts the actor identity from headers into the context
func (am *ActorMiddleware) ResolveActor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var actor model.Actor

		if idStr := r.Header.Get(ActorHeaderID); idStr != "" {
			if id, err := uuid.Parse(idStr); err == nil {
				actor.ID = id
			}
		}
		actor.Role = model.Role(r.Header.Get(ActorHeaderRole))

		ctx := context.WithValue(r.Context(), actorKey, actor)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// ActorFromContext returns the actor resolved by ResolveActor. The zero
// Actor is returned when no identity was supplied.
func ActorFromContext(ctx context.Context) model.Actor {
	actor, _ := ctx.Value(actorKey).(model.Actor)
	return actor
}

// ContextWithActor returns a context carrying the given actor. Used by
// tests and by internal callers that bypass the HTTP layer.
func ContextWithActor(ctx context.Context, actor model.Actor) context.Context {
	return context.WithValue(ctx, actorKey, actor)
}
