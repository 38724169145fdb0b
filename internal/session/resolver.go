package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/sessions"
	"github.com/madhavanSPR/VDI-DASHBOARD/internal/domain"
	"golang.org/x/sync/singleflight"
)

const (
	CookieName = "vdi-session"
	keySession = "sid"

	resolveTimeout = 5 * time.Second
)

// ErrUnauthenticated means the request carries no usable session: no cookie, a
// cookie that fails verification, an unknown or expired session, or a session
// whose user no longer exists.
var ErrUnauthenticated = errors.New("not authenticated")

type userLookup interface {
	GetUser(ctx context.Context, id int64) (*domain.User, error)
}

type Resolver struct {
	cookies *sessions.CookieStore
	store   domain.SessionStore
	users   userLookup
	ttl     time.Duration
	group   singleflight.Group
}

// NewCookieStore returns the signed cookie codec. secure marks cookies HTTPS-only.
func NewCookieStore(secret []byte, maxAge time.Duration, secure bool) *sessions.CookieStore {
	cs := sessions.NewCookieStore(secret)
	cs.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   int(maxAge.Seconds()),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
	cs.MaxAge(int(maxAge.Seconds()))
	return cs
}

func NewResolver(cookies *sessions.CookieStore, store domain.SessionStore, users userLookup, ttl time.Duration) *Resolver {
	return &Resolver{cookies: cookies, store: store, users: users, ttl: ttl}
}

// Resolve returns the user behind the request's session cookie. It returns
// ErrUnauthenticated when there is none; other errors mean the session store or
// user repository failed.
func (r *Resolver) Resolve(req *http.Request) (*domain.User, error) {
	sessionID, ok := r.sessionID(req)
	if !ok {
		return nil, ErrUnauthenticated
	}

	// Joined callers share this flight, so it must outlive the first caller's request.
	v, err, _ := r.group.Do(sessionID, func() (any, error) {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(req.Context()), resolveTimeout)
		defer cancel()
		return r.load(ctx, sessionID)
	})
	if err != nil {
		return nil, err
	}
	user := *(v.(*domain.User))
	return &user, nil
}

func (r *Resolver) load(ctx context.Context, sessionID string) (*domain.User, error) {
	sess, err := r.store.Get(ctx, sessionID)
	if errors.Is(err, domain.ErrSessionNotFound) {
		return nil, ErrUnauthenticated
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}

	user, err := r.users.GetUser(ctx, sess.UserID)
	if errors.Is(err, domain.ErrUserNotFound) {
		slog.WarnContext(ctx, "Session references unknown user, invalidating", "user_id", sess.UserID)
		if delErr := r.store.Delete(ctx, sessionID); delErr != nil {
			slog.ErrorContext(ctx, "Failed to delete orphaned session", "error", delErr)
		}
		return nil, ErrUnauthenticated
	}
	if err != nil {
		return nil, fmt.Errorf("load session user: %w", err)
	}
	return user, nil
}

// Login starts a fresh session for userID and writes its cookie. Any session
// the request already carried is destroyed first.
func (r *Resolver) Login(w http.ResponseWriter, req *http.Request, userID int64) (*domain.Session, error) {
	ctx := req.Context()
	if oldID, ok := r.sessionID(req); ok {
		if err := r.store.Delete(ctx, oldID); err != nil {
			return nil, fmt.Errorf("delete previous session: %w", err)
		}
	}

	sess, err := r.store.Create(ctx, userID, r.ttl)
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	cookie, _ := r.cookies.New(req, CookieName)
	cookie.Values[keySession] = sess.ID
	if err := cookie.Save(req, w); err != nil {
		return nil, fmt.Errorf("save session cookie: %w", err)
	}
	return sess, nil
}

// Logout destroys the server-side session, if any, and expires the cookie.
func (r *Resolver) Logout(w http.ResponseWriter, req *http.Request) error {
	if sessionID, ok := r.sessionID(req); ok {
		if err := r.store.Delete(req.Context(), sessionID); err != nil {
			return fmt.Errorf("delete session: %w", err)
		}
	}

	cookie, _ := r.cookies.New(req, CookieName)
	cookie.Options.MaxAge = -1
	if err := cookie.Save(req, w); err != nil {
		return fmt.Errorf("expire session cookie: %w", err)
	}
	return nil
}

func (r *Resolver) sessionID(req *http.Request) (string, bool) {
	if _, err := req.Cookie(CookieName); err != nil {
		return "", false
	}
	cookie, err := r.cookies.New(req, CookieName)
	if err != nil {
		return "", false
	}
	id, ok := cookie.Values[keySession].(string)
	return id, ok && id != ""
}
