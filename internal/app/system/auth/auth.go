// Package auth keeps the signed-in user in a cookie session and exposes
// middleware that gates routes on sign-in and role.
package auth

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/securecookie"
	"github.com/gorilla/sessions"
	"go.uber.org/zap"
)

const (
	isAuthKey    = "is_authenticated"
	userIDKey    = "user_id"
	userNameKey  = "user_name"
	loginIDKey   = "login_id"
	userRoleKey  = "user_role"
	teacherIDKey = "teacher_id"
)

// SessionUser is what we cache in the session and inject into r.Context().
type SessionUser struct {
	ID        string
	Name      string
	LoginID   string
	Role      string
	TeacherID string // set for teacher accounts
}

// IsAdmin reports whether the user has the admin role.
func (u *SessionUser) IsAdmin() bool {
	return u != nil && strings.EqualFold(u.Role, "admin")
}

// UserFetcher reloads a session user from storage. Returning nil signs the
// user out (deleted or disabled account).
type UserFetcher interface {
	FetchUser(ctx context.Context, userID string) *SessionUser
}

// SessionManager owns the cookie store and the auth middleware.
type SessionManager struct {
	store   *sessions.CookieStore
	name    string
	logger  *zap.Logger
	fetcher UserFetcher
}

// NewSessionManager creates the cookie store. In production (secure=true)
// cookies are Secure + SameSite=None; in dev over plain http they are Lax.
func NewSessionManager(sessionKey, name, domain string, maxAge time.Duration, secure bool, logger *zap.Logger) (*SessionManager, error) {
	if sessionKey == "" {
		return nil, errors.New("session key is empty; provide 32+ random chars")
	}
	if len(sessionKey) < 32 {
		logger.Warn("session key is short; 32+ chars recommended", zap.Int("length", len(sessionKey)))
	}
	if name == "" {
		name = "schedulehub-session"
	}

	store := sessions.NewCookieStore([]byte(sessionKey))
	store.Options = &sessions.Options{
		Domain:   domain,
		Path:     "/",
		MaxAge:   int(maxAge.Seconds()),
		Secure:   secure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
	if secure {
		store.Options.SameSite = http.SameSiteNoneMode
	}

	logger.Info("session store initialized",
		zap.String("name", name),
		zap.Bool("secure", secure),
		zap.String("domain", domain),
		zap.Duration("max_age", maxAge))

	return &SessionManager{store: store, name: name, logger: logger}, nil
}

// SetUserFetcher enables a per-request refresh of the session user.
func (sm *SessionManager) SetUserFetcher(f UserFetcher) { sm.fetcher = f }

// Store exposes the underlying cookie store.
func (sm *SessionManager) Store() *sessions.CookieStore { return sm.store }

// GetSession returns the session. A cookie that fails to decode (rotated
// key, tampering) yields a fresh empty session rather than an error.
func (sm *SessionManager) GetSession(r *http.Request) (*sessions.Session, error) {
	sess, err := sm.store.Get(r, sm.name)
	if err != nil {
		var cerr securecookie.Error
		if errors.As(err, &cerr) && cerr.IsDecode() {
			sm.logger.Debug("discarding undecodable session cookie", zap.Error(err))
			return sess, nil
		}
		return sess, err
	}
	return sess, nil
}

// SignIn stores the user in the session.
func (sm *SessionManager) SignIn(w http.ResponseWriter, r *http.Request, u SessionUser) error {
	sess, err := sm.GetSession(r)
	if err != nil {
		return err
	}
	sess.Values[isAuthKey] = true
	sess.Values[userIDKey] = u.ID
	sess.Values[userNameKey] = u.Name
	sess.Values[loginIDKey] = u.LoginID
	sess.Values[userRoleKey] = u.Role
	sess.Values[teacherIDKey] = u.TeacherID
	return sess.Save(r, w)
}

// SignOut expires the session cookie.
func (sm *SessionManager) SignOut(w http.ResponseWriter, r *http.Request) error {
	sess, err := sm.GetSession(r)
	if err != nil {
		return err
	}
	for k := range sess.Values {
		delete(sess.Values, k)
	}
	sess.Options.MaxAge = -1
	return sess.Save(r, w)
}

// CurrentUser returns the user and whether one is signed in.
func CurrentUser(r *http.Request) (*SessionUser, bool) {
	u, ok := r.Context().Value(currentUserKey).(*SessionUser)
	return u, ok
}

type ctxKey string

const currentUserKey ctxKey = "currentUser"

// LoadSessionUser injects the signed-in user into the request context.
func (sm *SessionManager) LoadSessionUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, err := sm.GetSession(r)
		if err != nil || sess == nil {
			next.ServeHTTP(w, r)
			return
		}
		if isAuth, _ := sess.Values[isAuthKey].(bool); !isAuth {
			next.ServeHTTP(w, r)
			return
		}

		id := getString(sess, userIDKey)
		var u *SessionUser
		if sm.fetcher != nil {
			u = sm.fetcher.FetchUser(r.Context(), id)
			if u == nil {
				sm.logger.Info("session user no longer valid; signing out", zap.String("user_id", id))
				_ = sm.SignOut(w, r)
				next.ServeHTTP(w, r)
				return
			}
		} else {
			u = &SessionUser{
				ID:        id,
				Name:      getString(sess, userNameKey),
				LoginID:   getString(sess, loginIDKey),
				Role:      getString(sess, userRoleKey),
				TeacherID: getString(sess, teacherIDKey),
			}
		}
		next.ServeHTTP(w, withUser(r, u))
	})
}

// RequireSignedIn ensures a user is in context.
//   - HTMX: HX-Redirect to /login?return=...
//   - HTML: 303 to /login?return=...
//   - API:  401
func (sm *SessionManager) RequireSignedIn(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := CurrentUser(r); ok {
			next.ServeHTTP(w, r)
			return
		}
		denyUnauthenticated(w, r)
	})
}

// RequireRole ensures the user has one of the allowed roles (case-insensitive).
// Wrong role: HTML and HTMX go to /forbidden, API gets 403.
func (sm *SessionManager) RequireRole(allowed ...string) func(http.Handler) http.Handler {
	set := make(map[string]struct{}, len(allowed))
	for _, role := range allowed {
		set[strings.ToLower(strings.TrimSpace(role))] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			u, ok := CurrentUser(r)
			if !ok {
				denyUnauthenticated(w, r)
				return
			}
			if _, has := set[strings.ToLower(u.Role)]; !has {
				if r.Header.Get("HX-Request") == "true" {
					w.Header().Set("HX-Redirect", "/forbidden")
					w.WriteHeader(http.StatusForbidden)
					return
				}
				if wantsHTML(r) {
					http.Redirect(w, r, "/forbidden", http.StatusSeeOther)
					return
				}
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func denyUnauthenticated(w http.ResponseWriter, r *http.Request) {
	ret := url.QueryEscape(r.URL.RequestURI())
	if r.Header.Get("HX-Request") == "true" {
		w.Header().Set("HX-Redirect", "/login?return="+ret)
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	if wantsHTML(r) {
		http.Redirect(w, r, "/login?return="+ret, http.StatusSeeOther)
		return
	}
	http.Error(w, "unauthorized", http.StatusUnauthorized)
}

// WithTestUser puts u into the request context, as LoadSessionUser would.
func WithTestUser(r *http.Request, u *SessionUser) *http.Request {
	return withUser(r, u)
}

func withUser(r *http.Request, u *SessionUser) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), currentUserKey, u))
}

func getString(s *sessions.Session, key string) string {
	if v, ok := s.Values[key].(string); ok {
		return v
	}
	return ""
}

func wantsHTML(r *http.Request) bool {
	if r.Header.Get("HX-Request") == "true" {
		return true
	}
	return strings.Contains(r.Header.Get("Accept"), "text/html")
}
