// internal/app/features/errors/logger.go
package errors

import (
	"net/http"

	"github.com/dalemusser/waffle/pantry/templates"
	"github.com/rfmartin/paperpress/internal/app/system/auth"
	"go.uber.org/zap"
)

// ErrorLogger logs handler errors with request context and renders a
// user-facing error response. Handlers keep a single *ErrorLogger and
// call the method matching the failure class.
type ErrorLogger struct {
	log *zap.Logger
}

// NewErrorLogger constructs an ErrorLogger backed by the given zap logger.
func NewErrorLogger(log *zap.Logger) *ErrorLogger {
	if log == nil {
		log = zap.NewNop()
	}
	return &ErrorLogger{log: log}
}

// LogServerError logs err at error level and renders a 500 page.
// logMsg is for operators; userMsg is shown on the page.
func (e *ErrorLogger) LogServerError(w http.ResponseWriter, r *http.Request, logMsg string, err error, userMsg, backURL string) {
	e.log.Error(logMsg,
		zap.Error(err),
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
	)
	e.renderPage(w, r, http.StatusInternalServerError, "Server error", userMsg, backURL)
}

// LogBadRequest logs err at warn level and renders a 400 page.
func (e *ErrorLogger) LogBadRequest(w http.ResponseWriter, r *http.Request, logMsg string, err error, userMsg, backURL string) {
	e.log.Warn(logMsg,
		zap.Error(err),
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
	)
	e.renderPage(w, r, http.StatusBadRequest, "Invalid request", userMsg, backURL)
}

// LogForbidden logs err at warn level and renders a 403 page.
func (e *ErrorLogger) LogForbidden(w http.ResponseWriter, r *http.Request, logMsg string, err error, userMsg, backURL string) {
	e.log.Warn(logMsg,
		zap.Error(err),
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
	)
	e.renderPage(w, r, http.StatusForbidden, "Access denied", userMsg, backURL)
}

func (e *ErrorLogger) renderPage(w http.ResponseWriter, r *http.Request, status int, title, userMsg, backURL string) {
	u, signed := auth.CurrentUser(r)
	role, name := "", ""
	if signed && u != nil {
		role, name = u.Role, u.Name
	}
	if backURL == "" {
		backURL = "/"
	}

	w.WriteHeader(status)
	templates.Render(w, r, "error_page", pageData{
		Title:      title,
		IsLoggedIn: signed,
		Role:       role,
		UserName:   name,
		Message:    userMsg,
		BackURL:    backURL,
	})
}
