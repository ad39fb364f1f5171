// internal/app/features/login/handler.go
package login

// Terminology: User Identifiers
//   - UserID / userID / user_id: The MongoDB ObjectID (_id) that uniquely identifies a user record
//   - LoginID / loginID / login_id: The human-readable string users type to log in

import (
	"context"
	"errors"
	"net/http"
	"strings"

	uierrors "github.com/dalemusser/schedulehub/internal/app/features/errors"
	"github.com/dalemusser/schedulehub/internal/app/store/audit"
	userstore "github.com/dalemusser/schedulehub/internal/app/store/users"
	"github.com/dalemusser/schedulehub/internal/app/system/auditlog"
	"github.com/dalemusser/schedulehub/internal/app/system/auth"
	"github.com/dalemusser/schedulehub/internal/app/system/ratelimit"
	"github.com/dalemusser/schedulehub/internal/app/system/timeouts"
	"github.com/dalemusser/schedulehub/internal/app/system/viewdata"
	"github.com/dalemusser/schedulehub/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/query"
	"github.com/dalemusser/waffle/pantry/templates"
	"github.com/dalemusser/waffle/pantry/urlutil"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

type Handler struct {
	Users      *userstore.Store
	Log        *zap.Logger
	SessionMgr *auth.SessionManager
	ErrLog     *uierrors.ErrorLogger
	AuditLog   *auditlog.Logger
	Limiter    *ratelimit.LoginLimiter
}

type loginFormData struct {
	viewdata.BaseVM
	Error     string
	LoginID   string
	ReturnURL string
}

// NewHandler wires the login feature. audit and limiter may be nil.
func NewHandler(db *mongo.Database, sessionMgr *auth.SessionManager, errLog *uierrors.ErrorLogger, audit *auditlog.Logger, limiter *ratelimit.LoginLimiter, logger *zap.Logger) *Handler {
	return &Handler{
		Users:      userstore.New(db),
		Log:        logger,
		SessionMgr: sessionMgr,
		ErrLog:     errLog,
		AuditLog:   audit,
		Limiter:    limiter,
	}
}

/*─────────────────────────────────────────────────────────────────────────────*
| GET /login                                                                  |
*─────────────────────────────────────────────────────────────────────────────*/

func (h *Handler) ServeLogin(w http.ResponseWriter, r *http.Request) {
	if _, ok := auth.CurrentUser(r); ok {
		http.Redirect(w, r, urlutil.SafeReturn(query.Get(r, "return"), "", "/dashboard"), http.StatusSeeOther)
		return
	}
	templates.Render(w, r, "login", loginFormData{
		BaseVM:    viewdata.NewBaseVM(r, "Sign in", "/"),
		ReturnURL: query.Get(r, "return"),
	})
}

/*─────────────────────────────────────────────────────────────────────────────*
| POST /login                                                                 |
*─────────────────────────────────────────────────────────────────────────────*/

func (h *Handler) HandleLoginPost(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.ErrLog.LogBadRequest(w, r, "parse form failed", err, "Invalid form data.", "/login")
		return
	}

	loginID := strings.TrimSpace(r.FormValue("login_id"))
	password := r.FormValue("password")
	ret := strings.TrimSpace(r.FormValue("return"))

	if loginID == "" || password == "" {
		h.renderFormWithError(w, r, http.StatusUnprocessableEntity, "Please enter your login ID and password.", loginID, ret)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	if h.Limiter != nil {
		if ok, msg := h.Limiter.Check(r, loginID); !ok {
			h.AuditLog.LoginFailed(ctx, r, audit.EventLoginFailedRateLimit, nil, loginID, "rate limited")
			h.renderFormWithError(w, r, http.StatusTooManyRequests, msg, loginID, ret)
			return
		}
	}

	u, err := h.Users.Authenticate(ctx, loginID, password)
	switch {
	case err == nil:
	case errors.Is(err, userstore.ErrBadCredentials):
		h.AuditLog.LoginFailed(ctx, r, audit.EventLoginFailedWrongPassword, nil, loginID, "bad credentials")
		h.renderFormWithError(w, r, http.StatusUnauthorized, "Invalid login ID or password.", loginID, ret)
		return
	case errors.Is(err, userstore.ErrDisabled):
		h.AuditLog.LoginFailed(ctx, r, audit.EventLoginFailedUserDisabled, nil, loginID, "disabled")
		h.renderFormWithError(w, r, http.StatusForbidden,
			"Your account is currently disabled. Please contact an administrator.", loginID, ret)
		return
	default:
		h.ErrLog.LogServerError(w, r, "authenticate user", err, "A server error occurred.", "/login")
		return
	}

	su := auth.SessionUser{
		ID:      u.ID.Hex(),
		Name:    u.FullName,
		LoginID: u.LoginID,
		Role:    u.Role,
	}
	if u.TeacherID != nil {
		su.TeacherID = u.TeacherID.Hex()
	}
	if err := h.SessionMgr.SignIn(w, r, su); err != nil {
		h.Log.Error("save session failed", zap.Error(err), zap.String("login_id", loginID))
		h.renderFormWithError(w, r, http.StatusInternalServerError, "Unable to create session. Please try again.", loginID, ret)
		return
	}
	if h.Limiter != nil {
		h.Limiter.ResetLoginID(loginID)
	}
	h.AuditLog.LoginSuccess(ctx, r, u.ID, u.LoginID)
	h.Log.Info("user signed in", zap.String("user_id", u.ID.Hex()), zap.String("role", u.Role))

	http.Redirect(w, r, urlutil.SafeReturn(ret, "", landingFor(u)), http.StatusSeeOther)
}

// landingFor is where a user goes after signing in without a return URL.
func landingFor(u *models.User) string {
	if u.Role == models.RoleTeacher && u.TeacherID != nil {
		return "/timetables/teachers/" + u.TeacherID.Hex()
	}
	return "/dashboard"
}

func (h *Handler) renderFormWithError(w http.ResponseWriter, r *http.Request, status int, msg, loginID, ret string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	templates.Render(w, r, "login", loginFormData{
		BaseVM:    viewdata.NewBaseVM(r, "Sign in", "/"),
		Error:     msg,
		LoginID:   loginID,
		ReturnURL: ret,
	})
}
