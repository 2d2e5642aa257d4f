// internal/app/features/login/handler.go
package login

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/dalemusser/waffle/pantry/query"
	"github.com/dalemusser/waffle/pantry/templates"
	"github.com/dalemusser/waffle/pantry/urlutil"
	uierrors "github.com/rfmartin/paperpress/internal/app/features/errors"
	"github.com/rfmartin/paperpress/internal/app/system/auth"
	"github.com/rfmartin/paperpress/internal/app/system/identity"
	"github.com/rfmartin/paperpress/internal/app/system/ratelimit"
	"github.com/rfmartin/paperpress/internal/app/system/timeouts"
	"github.com/rfmartin/paperpress/internal/app/system/viewdata"
	"github.com/gorilla/securecookie"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

type Handler struct {
	DB         *mongo.Database
	Log        *zap.Logger
	SessionMgr *auth.SessionManager
	ErrLog     *uierrors.ErrorLogger
	Identity   *identity.Engine
	Limiter    *ratelimit.Limiter
	Providers  []string // enabled social sign-in providers, in display order
}

type loginFormData struct {
	viewdata.BaseVM
	Error     string
	Email     string
	ReturnURL string
	Providers []string
}

func NewHandler(
	db *mongo.Database,
	sessionMgr *auth.SessionManager,
	errLog *uierrors.ErrorLogger,
	engine *identity.Engine,
	limiter *ratelimit.Limiter,
	providers []string,
	logger *zap.Logger,
) *Handler {
	return &Handler{
		DB:         db,
		Log:        logger,
		SessionMgr: sessionMgr,
		ErrLog:     errLog,
		Identity:   engine,
		Limiter:    limiter,
		Providers:  providers,
	}
}

/*─────────────────────────────────────────────────────────────────────────────*
| GET /login                                                                  |
*─────────────────────────────────────────────────────────────────────────────*/

func (h *Handler) ServeLogin(w http.ResponseWriter, r *http.Request) {
	ret := query.Get(r, "return")

	templates.Render(w, r, "login", loginFormData{
		BaseVM:    viewdata.NewBaseVM(r, h.DB, "Login", "/"),
		Error:     socialErrorMessage(query.Get(r, "error")),
		ReturnURL: ret,
		Providers: h.Providers,
	})
}

// socialErrorMessage translates the error codes the social callback
// redirects with into user-facing text. Unknown codes get a generic
// message so the query parameter can't inject arbitrary content.
func socialErrorMessage(code string) string {
	switch code {
	case "":
		return ""
	case "email_in_use":
		return "An account with that email already exists. Sign in with your email and password instead."
	case "invalid_state", "invalid_code":
		return "The sign-in attempt expired. Please try again."
	case "token_exchange", "user_info":
		return "The provider could not complete sign-in. Please try again."
	default:
		if strings.HasSuffix(code, "_denied") {
			return "Sign-in was cancelled at the provider."
		}
		if strings.HasSuffix(code, "_not_configured") {
			return "That sign-in method is not available."
		}
		return "Sign-in failed. Please try again."
	}
}

/*─────────────────────────────────────────────────────────────────────────────*
| POST /login                                                                 |
*─────────────────────────────────────────────────────────────────────────────*/

func (h *Handler) HandleLoginPost(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.ErrLog.LogBadRequest(w, r, "parse form failed", err, "Invalid form data.", "/login")
		return
	}

	email := strings.TrimSpace(r.FormValue("email"))
	password := r.FormValue("password")
	if email == "" || password == "" {
		h.renderFormWithError(w, r, "Please enter your email and password.", email)
		return
	}

	if h.Limiter != nil && !h.Limiter.Allow(ratelimit.ClientIP(r)) {
		h.renderFormWithError(w, r, "Too many sign-in attempts. Please wait a moment and try again.", email)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	res, err := h.Identity.LoginLocal(ctx, email, password)
	switch {
	case errors.Is(err, identity.ErrUnknownAccount), errors.Is(err, identity.ErrBadCredentials):
		// One message for both so the form doesn't reveal which emails
		// have accounts.
		h.renderFormWithError(w, r, "Invalid email or password.", email)
		return
	case err != nil:
		h.ErrLog.LogServerError(w, r, "local login failed", err, "A server error occurred.", "/login")
		return
	}

	ret := strings.TrimSpace(r.FormValue("return"))

	switch res.Status {
	case identity.StatusPendingVerification:
		h.holdAndRedirect(w, r, res.User.ID.Hex(), ret, email)
	default:
		h.establishAndRedirect(w, r, res.User.ID.Hex(), ret, email)
	}
}

// establishAndRedirect binds the session to the user and sends them on.
func (h *Handler) establishAndRedirect(w http.ResponseWriter, r *http.Request, userID, returnURL, email string) {
	sess, err := h.SessionMgr.GetSession(r)
	if err != nil {
		if scErr, ok := err.(securecookie.Error); ok && scErr.IsDecode() {
			h.Log.Warn("session cookie invalid, using fresh session",
				zap.Error(err),
				zap.String("user_id", userID))
		} else {
			h.Log.Error("session store error during login, using fresh session",
				zap.Error(err),
				zap.String("user_id", userID))
		}
	}

	if err := h.SessionMgr.Establish(w, r, sess, userID); err != nil {
		h.Log.Error("save session failed", zap.Error(err), zap.String("user_id", userID))
		h.renderFormWithError(w, r, "Unable to create session. Please try again.", email)
		return
	}

	dest := urlutil.SafeReturn(returnURL, "", "/")
	http.Redirect(w, r, dest, http.StatusSeeOther)
}

// holdAndRedirect marks the session pending verification and sends the
// user to the code-entry page.
func (h *Handler) holdAndRedirect(w http.ResponseWriter, r *http.Request, userID, returnURL, email string) {
	sess, err := h.SessionMgr.GetSession(r)
	if err != nil {
		h.Log.Warn("session decode failed before verification hold", zap.Error(err))
	}

	if err := h.SessionMgr.HoldForVerification(w, r, sess, userID, urlutil.SafeReturn(returnURL, "", "")); err != nil {
		h.Log.Error("save session failed", zap.Error(err), zap.String("user_id", userID))
		h.renderFormWithError(w, r, "Unable to create session. Please try again.", email)
		return
	}

	http.Redirect(w, r, "/verify-email", http.StatusSeeOther)
}

func (h *Handler) renderFormWithError(w http.ResponseWriter, r *http.Request, msg, email string) {
	// From POST, "return" will be in the form; from GET, we might rely on the query.
	ret := strings.TrimSpace(r.FormValue("return"))
	if ret == "" {
		ret = query.Get(r, "return")
	}

	templates.Render(w, r, "login", loginFormData{
		BaseVM:    viewdata.NewBaseVM(r, h.DB, "Login", "/"),
		Error:     msg,
		Email:     email,
		ReturnURL: ret,
		Providers: h.Providers,
	})
}
