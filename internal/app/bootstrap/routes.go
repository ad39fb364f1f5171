// internal/app/bootstrap/routes.go
package bootstrap

import (
	"mime"
	"net/http"
	"strings"

	apifeature "github.com/dalemusser/schedulehub/internal/app/features/api"
	auditlogfeature "github.com/dalemusser/schedulehub/internal/app/features/auditlog"
	changerequestsfeature "github.com/dalemusser/schedulehub/internal/app/features/changerequests"
	dashboardfeature "github.com/dalemusser/schedulehub/internal/app/features/dashboard"
	_ "github.com/dalemusser/schedulehub/internal/app/features/dashboard/views"
	errorsfeature "github.com/dalemusser/schedulehub/internal/app/features/errors"
	healthfeature "github.com/dalemusser/schedulehub/internal/app/features/health"
	homefeature "github.com/dalemusser/schedulehub/internal/app/features/home"
	loginfeature "github.com/dalemusser/schedulehub/internal/app/features/login"
	logoutfeature "github.com/dalemusser/schedulehub/internal/app/features/logout"
	profilefeature "github.com/dalemusser/schedulehub/internal/app/features/profile"
	timetablesfeature "github.com/dalemusser/schedulehub/internal/app/features/timetables"
	userstore "github.com/dalemusser/schedulehub/internal/app/store/users"
	"github.com/dalemusser/schedulehub/internal/app/system/auth"
	"github.com/dalemusser/waffle/config"
	"github.com/dalemusser/waffle/pantry/fileserver"
	"github.com/dalemusser/waffle/pantry/templates"
	"github.com/go-chi/chi/v5"
	"github.com/gorilla/csrf"
	"go.uber.org/zap"
)

// BuildHandler constructs the root HTTP handler (router) for this WAFFLE app.
//
// WAFFLE calls this after configuration, DB connections, schema setup, and
// the Startup hook have completed. ScheduleHub boots the template engine,
// applies CSRF and session middleware, and mounts the dashboard pages, the
// timetable views, the change-request workflow and the JSON API.
func BuildHandler(coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) (http.Handler, error) {
	svc := deps.Services
	db := deps.MongoDatabase

	// Secure cookies are enabled in production mode.
	secure := coreCfg.Env == "prod"
	sessionMgr, err := auth.NewSessionManager(appCfg.SessionKey, appCfg.SessionName, appCfg.SessionDomain, appCfg.SessionMaxAge, secure, logger)
	if err != nil {
		logger.Error("session manager init failed", zap.Error(err))
		return nil, err
	}

	// Refresh the session user on each request so role changes and disabled
	// accounts take effect immediately.
	sessionMgr.SetUserFetcher(userstore.NewFetcher(db))

	// Dev mode enables template reloading.
	eng := templates.New(coreCfg.Env == "dev")
	if err := eng.Boot(logger); err != nil {
		logger.Error("template engine boot failed", zap.Error(err))
		return nil, err
	}
	templates.UseEngine(eng, logger)

	errLog := errorsfeature.NewErrorLogger(logger)
	errorsHandler := errorsfeature.NewHandler()

	r := chi.NewRouter()

	// Health check and static assets need neither a session nor a CSRF token.
	healthHandler := healthfeature.NewHandler(deps.MongoClient, logger)
	r.Mount("/health", healthfeature.Routes(healthHandler))
	r.Handle("/static/*", fileserver.Handler("/static", "public"))

	r.Group(func(app chi.Router) {
		app.Use(csrfMiddleware(appCfg.SessionKey, secure, logger)...)

		// Loads SessionUser into context when signed in.
		app.Use(sessionMgr.LoadSessionUser)

		homeHandler := homefeature.NewHandler(logger)
		app.Mount("/", homefeature.Routes(homeHandler))

		// Authentication
		loginHandler := loginfeature.NewHandler(db, sessionMgr, errLog, svc.Audit, svc.Limiter, logger)
		app.Mount("/login", loginfeature.Routes(loginHandler))

		logoutHandler := logoutfeature.NewHandler(sessionMgr, svc.Audit, logger)
		app.Mount("/logout", logoutfeature.Routes(logoutHandler, sessionMgr))

		// Error pages
		app.Get("/forbidden", errorsHandler.Forbidden)
		app.Get("/unauthorized", errorsHandler.Unauthorized)

		profileHandler := profilefeature.NewHandler(db, errLog, svc.Audit, logger)
		app.Mount("/profile", profilefeature.Routes(profileHandler, sessionMgr))

		dashboardHandler := dashboardfeature.NewHandler(db, logger)
		app.Mount("/dashboard", dashboardfeature.Routes(dashboardHandler, sessionMgr))

		timetablesHandler := timetablesfeature.NewHandler(svc.Timetable, errLog, svc.Audit, logger)
		app.Mount("/timetables", timetablesfeature.Routes(timetablesHandler, sessionMgr))

		crHandler := changerequestsfeature.NewHandler(svc.Changes, svc.Timetable, errLog, svc.Audit, logger)
		app.Mount("/change-requests", changerequestsfeature.Routes(crHandler, sessionMgr))

		auditHandler := auditlogfeature.NewHandler(db, errLog, logger)
		app.Mount("/audit", auditlogfeature.Routes(auditHandler, sessionMgr))

		apiHandler := apifeature.NewHandler(db, svc.Timetable, svc.Changes, svc.Generator, svc.Audit, logger)
		app.Mount("/api", apifeature.Routes(apiHandler, sessionMgr))
	})

	return r, nil
}

// csrfMiddleware protects form posts and HTMX requests with gorilla/csrf.
// API writes skip the token check when a cross-site browser request would
// need a CORS preflight: a JSON content type, or DELETE, PUT and PATCH with
// or without a body. Bodiless API POSTs (split, approve, reject) must send
// Content-Type: application/json or the X-CSRF-Token header, as must
// multipart uploads.
func csrfMiddleware(key string, secure bool, logger *zap.Logger) []func(http.Handler) http.Handler {
	protect := csrf.Protect(
		csrfKey(key),
		csrf.Secure(secure),
		csrf.Path("/"),
		csrf.SameSite(csrf.SameSiteLaxMode),
		csrf.ErrorHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			logger.Warn("csrf check failed",
				zap.String("path", r.URL.Path),
				zap.Error(csrf.FailureReason(r)))
			if isAPI(r) {
				http.Error(w, "csrf token invalid", http.StatusForbidden)
				return
			}
			errorsfeature.RenderForbidden(w, r, "Your form has expired. Reload the page and try again.", "")
		})),
	)

	prepare := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !secure {
				r = csrf.PlaintextHTTPRequest(r)
			}
			if isAPI(r) && (isJSON(r) || needsPreflight(r.Method)) {
				r = csrf.UnsafeSkipCheck(r)
			}
			next.ServeHTTP(w, r)
		})
	}
	return []func(http.Handler) http.Handler{prepare, protect}
}

// csrfKey derives the 32-byte CSRF auth key from the session key.
func csrfKey(sessionKey string) []byte {
	k := make([]byte, 32)
	copy(k, sessionKey)
	return k
}

func isAPI(r *http.Request) bool {
	return r.URL.Path == "/api" || strings.HasPrefix(r.URL.Path, "/api/")
}

func needsPreflight(method string) bool {
	switch method {
	case http.MethodDelete, http.MethodPut, http.MethodPatch:
		return true
	}
	return false
}

func isJSON(r *http.Request) bool {
	mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mt == "application/json"
}
