// internal/app/system/auth/auth.go
package auth

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/gorilla/sessions"
	"go.uber.org/zap"
)

/*─────────────────────────────────────────────────────────────────────────────*
| Session keys                                                                |
*─────────────────────────────────────────────────────────────────────────────*/

const (
	isAuthKey = "is_authenticated"
	userIDKey = "user_id"

	// pendingUserIDKey marks an identity-proven but unverified account.
	// A session holds at most one of userIDKey / pendingUserIDKey; every
	// write path below clears the other side in the same save.
	pendingUserIDKey = "pending_user_id"
	pendingReturnKey = "pending_return_url"
)

/*─────────────────────────────────────────────────────────────────────────────*
| Current-User helper                                                         |
*─────────────────────────────────────────────────────────────────────────────*/

// SessionUser is what LoadSessionUser injects into r.Context().
type SessionUser struct {
	ID         string
	Name       string
	Email      string
	Role       string
	Verified   bool
	ProfilePic string
}

type ctxKey string

const currentUserKey ctxKey = "currentUser"

// CurrentUser returns the user & "found?" flag.
func CurrentUser(r *http.Request) (*SessionUser, bool) {
	u, ok := r.Context().Value(currentUserKey).(*SessionUser)
	return u, ok
}

// UserFetcher loads fresh user data for a bound session id. Returning nil
// means the id no longer resolves (deleted or blocked account); the
// session yields an anonymous request with no implicit revival.
type UserFetcher interface {
	FetchUser(ctx context.Context, userID string) *SessionUser
}

/*─────────────────────────────────────────────────────────────────────────────*
| SessionManager                                                              |
*─────────────────────────────────────────────────────────────────────────────*/

// SessionManager owns the cookie session store and is the only component
// allowed to bind or clear a session identity.
type SessionManager struct {
	store   *sessions.CookieStore
	name    string
	log     *zap.Logger
	fetcher UserFetcher
}

// NewSessionManager builds the cookie store. The `secure` flag controls
// whether cookies are marked Secure and which SameSite mode is used:
// prod wants Secure + SameSite=None, local dev over http wants Lax.
func NewSessionManager(sessionKey, name, domain string, secure bool, logger *zap.Logger) (*SessionManager, error) {
	if sessionKey == "" {
		return nil, fmt.Errorf("session key is empty; provide 32+ random chars")
	}
	if len(sessionKey) < 32 {
		logger.Warn("session key is short; 32+ chars recommended",
			zap.Int("length", len(sessionKey)))
	}

	store := sessions.NewCookieStore([]byte(sessionKey))
	opts := &sessions.Options{
		Domain:   domain,
		Path:     "/",
		Secure:   secure,
		HttpOnly: true,
	}
	if secure {
		opts.SameSite = http.SameSiteNoneMode
	} else {
		opts.SameSite = http.SameSiteLaxMode
	}
	store.Options = opts

	logger.Info("session store initialized",
		zap.Bool("secure", secure),
		zap.String("domain", domain))

	return &SessionManager{store: store, name: name, log: logger}, nil
}

// SetUserFetcher installs the per-request user loader used by
// LoadSessionUser. Must be called before the handler tree is built.
func (sm *SessionManager) SetUserFetcher(f UserFetcher) {
	sm.fetcher = f
}

// GetSession returns the caller's session. Decode errors yield a fresh
// session along with the error so callers can log and continue.
func (sm *SessionManager) GetSession(r *http.Request) (*sessions.Session, error) {
	return sm.store.Get(r, sm.name)
}

/*─────────────────────────────────────────────────────────────────────────────*
| Identity binding                                                            |
*─────────────────────────────────────────────────────────────────────────────*/

// Establish binds the session to userID as a logged-in identity, replacing
// any prior binding (authenticated or pending) in the same save.
func (sm *SessionManager) Establish(w http.ResponseWriter, r *http.Request, sess *sessions.Session, userID string) error {
	delete(sess.Values, pendingUserIDKey)
	delete(sess.Values, pendingReturnKey)

	sess.Values[isAuthKey] = true
	sess.Values[userIDKey] = userID

	return sess.Save(r, w)
}

// HoldForVerification binds the session to userID as a pending
// (identity-proven, unverified) marker. The session is explicitly not
// authenticated afterwards.
func (sm *SessionManager) HoldForVerification(w http.ResponseWriter, r *http.Request, sess *sessions.Session, userID, returnURL string) error {
	delete(sess.Values, isAuthKey)
	delete(sess.Values, userIDKey)

	sess.Values[pendingUserIDKey] = userID
	if returnURL != "" {
		sess.Values[pendingReturnKey] = returnURL
	} else {
		delete(sess.Values, pendingReturnKey)
	}

	return sess.Save(r, w)
}

// Teardown clears every identity binding. Safe to call on a session that
// holds nothing.
func (sm *SessionManager) Teardown(w http.ResponseWriter, r *http.Request) error {
	sess, err := sm.GetSession(r)
	if err != nil {
		// A cookie we cannot decode carries no identity worth keeping;
		// overwrite it with an empty one.
		sm.log.Warn("session decode failed during teardown", zap.Error(err))
	}

	for k := range sess.Values {
		delete(sess.Values, k)
	}
	sess.Options.MaxAge = -1

	return sess.Save(r, w)
}

// PendingUserID returns the pending-verification user id bound to the
// session, if any.
func PendingUserID(sess *sessions.Session) (string, bool) {
	id, ok := sess.Values[pendingUserIDKey].(string)
	return id, ok && id != ""
}

// PendingReturnURL returns the return URL stashed when the hold began.
func PendingReturnURL(sess *sessions.Session) string {
	ret, _ := sess.Values[pendingReturnKey].(string)
	return ret
}

/*─────────────────────────────────────────────────────────────────────────────*
| Middleware                                                                  |
*─────────────────────────────────────────────────────────────────────────────*/

// LoadSessionUser injects the user into context if they are logged in.
// The bound id is resolved through the UserFetcher on every request, so
// role changes and blocked accounts take effect immediately.
func (sm *SessionManager) LoadSessionUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, _ := sm.GetSession(r)

		if isAuth, _ := sess.Values[isAuthKey].(bool); isAuth {
			if id, _ := sess.Values[userIDKey].(string); id != "" && sm.fetcher != nil {
				if u := sm.fetcher.FetchUser(r.Context(), id); u != nil {
					r = withUser(r, u)
				}
			}
		}
		next.ServeHTTP(w, r)
	})
}

// RequireSignedIn ensures there is a user in context (set by
// LoadSessionUser). If not signed in, browser requests get a 303 to
// /login?return=..., anything else gets a plain 401.
func (sm *SessionManager) RequireSignedIn(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := CurrentUser(r); ok {
			next.ServeHTTP(w, r)
			return
		}
		redirectToLogin(w, r)
	})
}

// RequireVerified ensures the signed-in user has completed email
// verification; unverified users are sent to the verify page.
func (sm *SessionManager) RequireVerified(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, ok := CurrentUser(r)
		if !ok {
			redirectToLogin(w, r)
			return
		}
		if !u.Verified {
			http.Redirect(w, r, "/verify-email", http.StatusSeeOther)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireRole ensures there is a user with one of the allowed roles in
// context. Not signed in yields 401 semantics; wrong role yields 403.
func (sm *SessionManager) RequireRole(allowed ...string) func(http.Handler) http.Handler {
	set := make(map[string]struct{}, len(allowed))
	for _, role := range allowed {
		set[strings.ToLower(strings.TrimSpace(role))] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			u, ok := CurrentUser(r)

			if !ok {
				redirectToLogin(w, r)
				return
			}

			if _, has := set[strings.ToLower(u.Role)]; !has {
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

/*─────────────────────────────────────────────────────────────────────────────*
| Helpers                                                                     |
*─────────────────────────────────────────────────────────────────────────────*/

// WithTestUser injects a SessionUser into the request context. Test hook;
// simulates what LoadSessionUser does for a signed-in request.
func WithTestUser(r *http.Request, u *SessionUser) *http.Request {
	return withUser(r, u)
}

func withUser(r *http.Request, u *SessionUser) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), currentUserKey, u))
}

func redirectToLogin(w http.ResponseWriter, r *http.Request) {
	ret := url.QueryEscape(currentURI(r))

	if wantsHTML(r) {
		http.Redirect(w, r, "/login?return="+ret, http.StatusSeeOther)
		return
	}
	http.Error(w, "unauthorized", http.StatusUnauthorized)
}

func wantsHTML(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "text/html")
}

func currentURI(r *http.Request) string {
	u := *r.URL
	return u.RequestURI()
}
