// internal/app/bootstrap/routes.go
package bootstrap

import (
	"net/http"
	"time"

	"github.com/dalemusser/waffle/config"
	"github.com/dalemusser/waffle/pantry/fileserver"
	"github.com/dalemusser/waffle/pantry/templates"
	"github.com/go-chi/chi/v5"
	"github.com/gorilla/csrf"
	authsocialfeature "github.com/rfmartin/paperpress/internal/app/features/authsocial"
	errorsfeature "github.com/rfmartin/paperpress/internal/app/features/errors"
	healthfeature "github.com/rfmartin/paperpress/internal/app/features/health"
	homefeature "github.com/rfmartin/paperpress/internal/app/features/home"
	loginfeature "github.com/rfmartin/paperpress/internal/app/features/login"
	logoutfeature "github.com/rfmartin/paperpress/internal/app/features/logout"
	postsfeature "github.com/rfmartin/paperpress/internal/app/features/posts"
	profilefeature "github.com/rfmartin/paperpress/internal/app/features/profile"
	signupfeature "github.com/rfmartin/paperpress/internal/app/features/signup"
	verifyemailfeature "github.com/rfmartin/paperpress/internal/app/features/verifyemail"
	"github.com/rfmartin/paperpress/internal/app/store/oauthstate"
	userstore "github.com/rfmartin/paperpress/internal/app/store/users"
	"github.com/rfmartin/paperpress/internal/app/system/auth"
	"github.com/rfmartin/paperpress/internal/app/system/identity"
	"github.com/rfmartin/paperpress/internal/app/system/mailer"
	"github.com/rfmartin/paperpress/internal/app/system/ratelimit"
	"go.uber.org/zap"
)

// BuildHandler constructs the root HTTP handler (router) for this WAFFLE app.
//
// WAFFLE calls this after configuration, DB connections, schema setup, and
// any Startup hooks have completed. At this point you have access to:
//   - coreCfg: WAFFLE core configuration (ports, env, timeouts, etc.)
//   - appCfg: app-specific configuration defined in AppConfig
//   - deps: any DB or backend clients bundled in DBDeps
//   - logger: the fully configured zap.Logger for this app
//
// PaperPress initializes the template engine, applies session and CSRF
// middleware, and mounts feature routers for the public site, local and
// social authentication, email verification, and user profiles.
func BuildHandler(coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) (http.Handler, error) {
	db := deps.MongoDatabase

	// Create the session manager using app config.
	// Secure cookies are enabled in production mode.
	secure := coreCfg.Env == "prod"
	sessionMgr, err := auth.NewSessionManager(appCfg.SessionKey, appCfg.SessionName, appCfg.SessionDomain, secure, logger)
	if err != nil {
		logger.Error("session manager init failed", zap.Error(err))
		return nil, err
	}

	// Set up the UserFetcher so LoadSessionUser fetches fresh user data on each request.
	// This ensures role changes, blocked accounts, and profile updates take effect immediately.
	sessionMgr.SetUserFetcher(userstore.NewFetcher(db))

	// Initialize and boot the template engine once at startup.
	// Dev mode enables template reloading for faster iteration.
	eng := templates.New(coreCfg.Env == "dev")
	if err := eng.Boot(logger); err != nil {
		logger.Error("template engine boot failed", zap.Error(err))
		return nil, err
	}
	templates.UseEngine(eng, logger)

	// Shared service dependencies.
	errLog := errorsfeature.NewErrorLogger(logger)
	engine := identity.New(userstore.New(db), logger)

	mail := mailer.New(mailer.Config{
		Host:     appCfg.MailSMTPHost,
		Port:     appCfg.MailSMTPPort,
		User:     appCfg.MailSMTPUser,
		Password: appCfg.MailSMTPPass,
		From:     appCfg.MailFrom,
		FromName: appCfg.MailFromName,
	}, logger)

	window, err := time.ParseDuration(appCfg.AuthRateWindow)
	if err != nil || window <= 0 {
		logger.Warn("invalid auth_rate_window, using 1m", zap.String("value", appCfg.AuthRateWindow))
		window = time.Minute
	}
	limiter := ratelimit.New(appCfg.AuthRateLimit, window)

	// Social sign-in handler. Providers without credentials stay dark.
	socialHandler := authsocialfeature.NewHandler(
		db, sessionMgr, errLog, engine, oauthstate.New(db), appCfg.BaseURL,
		map[string]authsocialfeature.Credentials{
			"google":  {ClientID: appCfg.GoogleClientID, ClientSecret: appCfg.GoogleClientSecret},
			"twitter": {ClientID: appCfg.TwitterClientID, ClientSecret: appCfg.TwitterClientSecret},
			"github":  {ClientID: appCfg.GitHubClientID, ClientSecret: appCfg.GitHubClientSecret},
		},
		logger,
	)

	r := chi.NewRouter()

	// Global auth middleware: loads SessionUser into context if logged in.
	// This makes the current user available to all handlers via auth.CurrentUser(r).
	r.Use(sessionMgr.LoadSessionUser)

	// CSRF protection for all form posts. Templates embed the token via
	// viewdata's CSRFToken field.
	r.Use(csrf.Protect(
		[]byte(appCfg.SessionKey),
		csrf.Secure(secure),
		csrf.Path("/"),
	))

	// Health check endpoint for load balancers and orchestrators
	healthHandler := healthfeature.NewHandler(deps.MongoClient, logger)
	r.Mount("/health", healthfeature.Routes(healthHandler))

	// Static assets with pre-compressed file support (gzip/brotli)
	r.Handle("/static/*", fileserver.Handler("/static", "public"))

	// Public pages
	homeHandler := homefeature.NewHandler(db, logger)
	r.Mount("/", homefeature.Routes(homeHandler))

	// Post pages: reading is public, writing and commenting need a
	// verified account.
	postsHandler := postsfeature.NewHandler(db, errLog, logger)
	r.Mount("/posts", postsfeature.Routes(postsHandler, sessionMgr))

	// Authentication
	loginHandler := loginfeature.NewHandler(db, sessionMgr, errLog, engine, limiter, socialHandler.Enabled(), logger)
	r.Mount("/login", loginfeature.Routes(loginHandler))

	signupHandler := signupfeature.NewHandler(db, sessionMgr, errLog, engine, mail, limiter, logger)
	r.Mount("/signup", signupfeature.Routes(signupHandler))

	verifyHandler := verifyemailfeature.NewHandler(db, sessionMgr, errLog, engine, mail, logger)
	r.Mount("/verify-email", verifyemailfeature.Routes(verifyHandler))
	r.Post("/resend-code", verifyHandler.HandleResendCode)

	logoutHandler := logoutfeature.NewHandler(sessionMgr, logger)
	r.Mount("/logout", logoutfeature.Routes(logoutHandler, sessionMgr))

	r.Mount("/auth", authsocialfeature.Routes(socialHandler))

	// Signed-in pages
	profileHandler := profilefeature.NewHandler(db, errLog, logger)
	r.Mount("/profile", profilefeature.Routes(profileHandler, sessionMgr))

	// Error pages
	errorsHandler := errorsfeature.NewHandler()
	r.Get("/forbidden", errorsHandler.Forbidden)
	r.Get("/unauthorized", errorsHandler.Unauthorized)
	r.NotFound(errorsHandler.NotFound)

	return r, nil
}
