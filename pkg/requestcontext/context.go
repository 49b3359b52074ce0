// Package requestcontext provides transport-independent accessors for request-scoped values.
//
// The excluded API layer sets these from its session and middleware; engine services read them.
//
//	ctx = requestcontext.WithUserID(ctx, "user-42")
//	ctx = requestcontext.WithRequestID(ctx, requestID)
//	now := requestcontext.Now(ctx)
//
// Tests pin time with WithTime.
package requestcontext

import (
	"context"
	"time"

	dErrors "lexicon/pkg/domain-errors"
)

type (
	userIDKey      struct{}
	requestIDKey   struct{}
	requestTimeKey struct{}
)

// UserID returns the session user id, or "" when the request carries no session.
func UserID(ctx context.Context) string {
	if userID, ok := ctx.Value(userIDKey{}).(string); ok {
		return userID
	}
	return ""
}

// WithUserID injects the session user id.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey{}, userID)
}

// RequestID returns the correlation id, or "".
func RequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value(requestIDKey{}).(string); ok {
		return requestID
	}
	return ""
}

// WithRequestID injects a correlation id.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

// Now returns the pinned request time, or the wall clock in UTC.
func Now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(requestTimeKey{}).(time.Time); ok && !t.IsZero() {
		return t
	}
	return time.Now().UTC()
}

// WithTime pins the request time.
func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, requestTimeKey{}, t)
}

// Editor resolves the acting identity: the session user wins, the explicit editor is the
// fallback. Returns "" when neither is available.
func Editor(ctx context.Context, explicit string) string {
	if userID := UserID(ctx); userID != "" {
		return userID
	}
	return explicit
}

// RequireEditor is Editor for mutations: it fails with CodeLackingUserID when neither the
// session nor the caller names an editor.
func RequireEditor(ctx context.Context, explicit string) (string, error) {
	editor := Editor(ctx, explicit)
	if editor == "" {
		return "", dErrors.New(dErrors.CodeLackingUserID, "an editor user id is required")
	}
	return editor, nil
}
