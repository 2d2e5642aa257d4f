// internal/app/features/verifyemail/handler.go
package verifyemail

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/dalemusser/waffle/pantry/templates"
	"github.com/dalemusser/waffle/pantry/urlutil"
	uierrors "github.com/rfmartin/paperpress/internal/app/features/errors"
	userstore "github.com/rfmartin/paperpress/internal/app/store/users"
	"github.com/rfmartin/paperpress/internal/app/system/auth"
	"github.com/rfmartin/paperpress/internal/app/system/identity"
	"github.com/rfmartin/paperpress/internal/app/system/mailer"
	"github.com/rfmartin/paperpress/internal/app/system/timeouts"
	"github.com/rfmartin/paperpress/internal/app/system/verifycode"
	"github.com/rfmartin/paperpress/internal/app/system/viewdata"
	"go.mongodb.org/mongo-driver/bson/primitive"
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
	Users      *userstore.Store
}

type verifyFormData struct {
	viewdata.BaseVM
	Error  string
	Email  string // where the code went, shown as a hint
	Resent bool
}

func NewHandler(
	db *mongo.Database,
	sessionMgr *auth.SessionManager,
	errLog *uierrors.ErrorLogger,
	engine *identity.Engine,
	mail *mailer.Mailer,
	logger *zap.Logger,
) *Handler {
	return &Handler{
		DB:         db,
		Log:        logger,
		SessionMgr: sessionMgr,
		ErrLog:     errLog,
		Identity:   engine,
		Mailer:     mail,
		Users:      userstore.New(db),
	}
}

// pendingID returns the pending-verification user id bound to the session,
// or redirects to /login and reports false when there is none.
func (h *Handler) pendingID(w http.ResponseWriter, r *http.Request) (primitive.ObjectID, bool) {
	sess, err := h.SessionMgr.GetSession(r)
	if err != nil {
		h.Log.Warn("session decode failed on verification page", zap.Error(err))
	}

	idHex, ok := auth.PendingUserID(sess)
	if !ok {
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return primitive.NilObjectID, false
	}

	id, err := primitive.ObjectIDFromHex(idHex)
	if err != nil {
		h.Log.Warn("malformed pending user id in session", zap.String("pending_user_id", idHex))
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return primitive.NilObjectID, false
	}
	return id, true
}

/*─────────────────────────────────────────────────────────────────────────────*
| GET /verify-email                                                           |
*─────────────────────────────────────────────────────────────────────────────*/

func (h *Handler) ServeVerifyEmail(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.pendingID(w, r)
	if !ok {
		return
	}

	templates.Render(w, r, "verify_email", verifyFormData{
		BaseVM: viewdata.NewBaseVM(r, h.DB, "Verify your email", "/login"),
		Email:  h.pendingEmail(r.Context(), userID),
	})
}

// pendingEmail looks up the address the code was sent to, for display only.
// Lookup failures just leave the hint empty.
func (h *Handler) pendingEmail(ctx context.Context, userID primitive.ObjectID) string {
	ctx, cancel := context.WithTimeout(ctx, timeouts.Short())
	defer cancel()

	u, err := h.Users.GetByID(ctx, userID)
	if err != nil {
		return ""
	}
	return u.Email
}

/*─────────────────────────────────────────────────────────────────────────────*
| POST /verify-email                                                          |
*─────────────────────────────────────────────────────────────────────────────*/

func (h *Handler) HandleVerifySubmit(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.pendingID(w, r)
	if !ok {
		return
	}

	if err := r.ParseForm(); err != nil {
		h.ErrLog.LogBadRequest(w, r, "parse form failed", err, "Invalid form data.", "/verify-email")
		return
	}

	code := strings.TrimSpace(r.FormValue("code"))
	if code == "" {
		h.renderFormWithError(w, r, userID, "Please enter the code from your email.")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	res, err := h.Identity.CompleteVerification(ctx, userID, code)
	switch {
	case errors.Is(err, identity.ErrSessionExpired):
		// The pending account no longer exists; make them start over.
		if terr := h.SessionMgr.Teardown(w, r); terr != nil {
			h.Log.Warn("session teardown failed", zap.Error(terr))
		}
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	case errors.Is(err, identity.ErrInvalidOrExpiredCode):
		h.renderFormWithError(w, r, userID, "That code is invalid or has expired. You can request a new one below.")
		return
	case err != nil:
		h.ErrLog.LogServerError(w, r, "complete verification failed", err, "A server error occurred.", "/verify-email")
		return
	}

	sess, err := h.SessionMgr.GetSession(r)
	if err != nil {
		h.Log.Warn("session decode failed after verification", zap.Error(err))
	}
	ret := auth.PendingReturnURL(sess)

	if err := h.SessionMgr.Establish(w, r, sess, res.User.ID.Hex()); err != nil {
		h.Log.Error("save session failed", zap.Error(err), zap.String("user_id", res.User.ID.Hex()))
		h.renderFormWithError(w, r, userID, "Unable to create session. Please try again.")
		return
	}

	http.Redirect(w, r, urlutil.SafeReturn(ret, "", "/"), http.StatusSeeOther)
}

/*─────────────────────────────────────────────────────────────────────────────*
| POST /resend-code                                                           |
*─────────────────────────────────────────────────────────────────────────────*/

func (h *Handler) HandleResendCode(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.pendingID(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	res, err := h.Identity.ResendCode(ctx, userID)
	switch {
	case errors.Is(err, identity.ErrSessionExpired):
		if terr := h.SessionMgr.Teardown(w, r); terr != nil {
			h.Log.Warn("session teardown failed", zap.Error(terr))
		}
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	case errors.Is(err, identity.ErrCooldownActive):
		h.renderFormWithError(w, r, userID, "A code was sent recently. Please wait a couple of minutes before requesting another.")
		return
	case err != nil:
		h.ErrLog.LogServerError(w, r, "resend verification code failed", err, "A server error occurred.", "/verify-email")
		return
	}

	siteName := viewdata.GetSiteName(ctx, h.DB)
	msg := mailer.BuildVerificationEmail(mailer.VerificationEmailData{
		SiteName:  siteName,
		Code:      res.Code,
		ExpiresIn: mailer.FormatExpiry(verifycode.Expiry),
	})
	msg.To = res.User.Email

	if err := h.Mailer.Send(msg); err != nil {
		h.Log.Warn("verification email send failed",
			zap.Error(err),
			zap.String("email", res.User.Email))
	}

	templates.Render(w, r, "verify_email", verifyFormData{
		BaseVM: viewdata.NewBaseVM(r, h.DB, "Verify your email", "/login"),
		Email:  res.User.Email,
		Resent: true,
	})
}

func (h *Handler) renderFormWithError(w http.ResponseWriter, r *http.Request, userID primitive.ObjectID, msg string) {
	templates.Render(w, r, "verify_email", verifyFormData{
		BaseVM: viewdata.NewBaseVM(r, h.DB, "Verify your email", "/login"),
		Error:  msg,
		Email:  h.pendingEmail(r.Context(), userID),
	})
}
