package middleware

import "context"

type contextKey string

const (
	ctxActorID   contextKey = "actor_id"
	ctxActorKind contextKey = "actor_kind"
	ctxCrewID    contextKey = "crew_id"
)

func ActorIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxActorID).(string); ok {
		return v
	}
	return ""
}

func ActorKindFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxActorKind).(string); ok {
		return v
	}
	return ""
}

func CrewIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxCrewID).(string); ok {
		return v
	}
	return ""
}

// WithActor seeds the identity values, used by tests and the auth middleware.
func WithActor(ctx context.Context, actorID, kind string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = context.WithValue(ctx, ctxActorID, actorID)
	return context.WithValue(ctx, ctxActorKind, kind)
}

// WithCrewID injects the crew identifier for downstream handlers.
func WithCrewID(ctx context.Context, crewID string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxCrewID, crewID)
}
