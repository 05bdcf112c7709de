package shared

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

// Session identifies the caller's edit session. The ID is an opaque
// capability generated client side (or minted here on first contact); it is
// not an authenticated identity.
type Session struct {
	ID       string
	UserID   string
	UserName string
}

type sessionCtxKey struct{}

// HeaderSessionToken carries the session capability on every request.
const HeaderSessionToken = "X-Session-Token"

// HeaderUserID and HeaderUserName carry display attribution for locks and
// version snapshots. They are informational, supplied by the auth layer
// upstream of this service.
const (
	HeaderUserID   = "X-User-Id"
	HeaderUserName = "X-User-Name"
)

// SessionFromRequest extracts the caller session from request headers,
// minting a fresh token when none is present.
func SessionFromRequest(r *http.Request) Session {
	sess := Session{
		ID:       r.Header.Get(HeaderSessionToken),
		UserID:   r.Header.Get(HeaderUserID),
		UserName: r.Header.Get(HeaderUserName),
	}
	if sess.ID == "" {
		sess.ID = uuid.NewString()
	}
	return sess
}

// ContextWithSession stores the session in ctx.
func ContextWithSession(ctx context.Context, sess Session) context.Context {
	return context.WithValue(ctx, sessionCtxKey{}, sess)
}

// SessionFromContext returns the session stored in ctx, if any.
func SessionFromContext(ctx context.Context) (Session, bool) {
	sess, ok := ctx.Value(sessionCtxKey{}).(Session)
	return sess, ok
}
