// internal/app/features/logout/handler.go
package logout

import (
	"net/http"

	"github.com/rfmartin/paperpress/internal/app/system/auth"
	"go.uber.org/zap"
)

type Handler struct {
	Log        *zap.Logger
	SessionMgr *auth.SessionManager
}

func NewHandler(sessionMgr *auth.SessionManager, logger *zap.Logger) *Handler {
	return &Handler{
		Log:        logger,
		SessionMgr: sessionMgr,
	}
}

// ServeLogout ends the session and sends the user back to the login page.
// Registered for both GET (direct navigation) and POST (the header form).
func (h *Handler) ServeLogout(w http.ResponseWriter, r *http.Request) {
	if err := h.SessionMgr.Teardown(w, r); err != nil {
		// The deletion cookie usually still goes out; nothing more to do.
		h.Log.Error("logout: session teardown", zap.Error(err))
	}

	http.Redirect(w, r, "/login", http.StatusSeeOther)
}
