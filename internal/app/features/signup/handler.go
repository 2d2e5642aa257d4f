// internal/app/features/signup/handler.go
package signup

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/dalemusser/waffle/pantry/query"
	"github.com/dalemusser/waffle/pantry/templates"
	"github.com/dalemusser/waffle/pantry/urlutil"
	uierrors "github.com/rfmartin/paperpress/internal/app/features/errors"
	settingsstore "github.com/rfmartin/paperpress/internal/app/store/settings"
	"github.com/rfmartin/paperpress/internal/app/system/auth"
	"github.com/rfmartin/paperpress/internal/app/system/authutil"
	"github.com/rfmartin/paperpress/internal/app/system/identity"
	"github.com/rfmartin/paperpress/internal/app/system/mailer"
	"github.com/rfmartin/paperpress/internal/app/system/ratelimit"
	"github.com/rfmartin/paperpress/internal/app/system/timeouts"
	"github.com/rfmartin/paperpress/internal/app/system/verifycode"
	"github.com/rfmartin/paperpress/internal/app/system/viewdata"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

type Handler struct {
	DB         *mongo.Database
	Log        *zap.Logger
	SessionMgr *auth.SessionManager
	ErrLog     *uierrors.ErrorLogger
	Identity   *identity.Engine
	Mailer     *mailer.Mailer
	Settings   *settingsstore.Store
	Limiter    *ratelimit.Limiter
}

type signupFormData struct {
	viewdata.BaseVM
	Error         string
	Name          string
	Email         string
	ReturnURL     string
	PasswordRules string
}

func NewHandler(
	db *mongo.Database,
	sessionMgr *auth.SessionManager,
	errLog *uierrors.ErrorLogger,
	engine *identity.Engine,
	mail *mailer.Mailer,
	limiter *ratelimit.Limiter,
	logger *zap.Logger,
) *Handler {
	return &Handler{
		DB:         db,
		Log:        logger,
		SessionMgr: sessionMgr,
		ErrLog:     errLog,
		Identity:   engine,
		Mailer:     mail,
		Settings:   settingsstore.New(db),
		Limiter:    limiter,
	}
}

/*─────────────────────────────────────────────────────────────────────────────*
| GET /signup                                                                 |
*─────────────────────────────────────────────────────────────────────────────*/

func (h *Handler) ServeSignup(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	settings, err := h.Settings.Get(ctx)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "load site settings", err, "A server error occurred.", "/")
		return
	}
	if !settings.AllowRegistration {
		uierrors.RenderForbidden(w, r, "Registration is currently closed.", "/")
		return
	}

	templates.Render(w, r, "signup", signupFormData{
		BaseVM:        viewdata.NewBaseVM(r, h.DB, "Sign up", "/"),
		ReturnURL:     query.Get(r, "return"),
		PasswordRules: authutil.PasswordRules(),
	})
}

/*─────────────────────────────────────────────────────────────────────────────*
| POST /signup                                                                |
*─────────────────────────────────────────────────────────────────────────────*/

func (h *Handler) HandleSignupPost(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.ErrLog.LogBadRequest(w, r, "parse form failed", err, "Invalid form data.", "/signup")
		return
	}

	name := strings.TrimSpace(r.FormValue("name"))
	email := strings.TrimSpace(r.FormValue("email"))
	password := r.FormValue("password")
	confirm := r.FormValue("confirm_password")

	if name == "" || email == "" || password == "" {
		h.renderFormWithError(w, r, "Please fill in all fields.", name, email)
		return
	}
	if !authutil.ValidEmail(email) {
		h.renderFormWithError(w, r, "Please enter a valid email address.", name, email)
		return
	}
	if password != confirm {
		h.renderFormWithError(w, r, "Passwords do not match.", name, email)
		return
	}
	if err := authutil.ValidatePassword(password); err != nil {
		h.renderFormWithError(w, r, err.Error(), name, email)
		return
	}

	if h.Limiter != nil && !h.Limiter.Allow(ratelimit.ClientIP(r)) {
		h.renderFormWithError(w, r, "Too many signup attempts. Please wait a moment and try again.", name, email)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	settings, err := h.Settings.Get(ctx)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "load site settings", err, "A server error occurred.", "/signup")
		return
	}
	if !settings.AllowRegistration {
		uierrors.RenderForbidden(w, r, "Registration is currently closed.", "/")
		return
	}

	res, err := h.Identity.SignUp(ctx, name, email, password, settings.DefaultUserRole)
	switch {
	case errors.Is(err, identity.ErrEmailTaken):
		h.renderFormWithError(w, r, "An account with that email already exists.", name, email)
		return
	case err != nil:
		h.ErrLog.LogServerError(w, r, "signup failed", err, "A server error occurred.", "/signup")
		return
	}

	h.sendVerificationCode(res.User.Email, res.Code, settings.SiteTitle)

	ret := urlutil.SafeReturn(strings.TrimSpace(r.FormValue("return")), "", "")

	sess, err := h.SessionMgr.GetSession(r)
	if err != nil {
		h.Log.Warn("session decode failed before verification hold", zap.Error(err))
	}
	if err := h.SessionMgr.HoldForVerification(w, r, sess, res.User.ID.Hex(), ret); err != nil {
		h.Log.Error("save session failed", zap.Error(err), zap.String("user_id", res.User.ID.Hex()))
		h.renderFormWithError(w, r, "Unable to create session. Please try again.", name, email)
		return
	}

	http.Redirect(w, r, "/verify-email", http.StatusSeeOther)
}

// sendVerificationCode mails the code. Failures are logged, not surfaced;
// the user can request a resend from the verification page.
func (h *Handler) sendVerificationCode(email, code, siteName string) {
	msg := mailer.BuildVerificationEmail(mailer.VerificationEmailData{
		SiteName:  siteName,
		Code:      code,
		ExpiresIn: mailer.FormatExpiry(verifycode.Expiry),
	})
	msg.To = email

	if err := h.Mailer.Send(msg); err != nil {
		h.Log.Warn("verification email send failed",
			zap.Error(err),
			zap.String("email", email))
	}
}

func (h *Handler) renderFormWithError(w http.ResponseWriter, r *http.Request, msg, name, email string) {
	ret := strings.TrimSpace(r.FormValue("return"))
	if ret == "" {
		ret = query.Get(r, "return")
	}

	templates.Render(w, r, "signup", signupFormData{
		BaseVM:        viewdata.NewBaseVM(r, h.DB, "Sign up", "/"),
		Error:         msg,
		Name:          name,
		Email:         email,
		ReturnURL:     ret,
		PasswordRules: authutil.PasswordRules(),
	})
}
