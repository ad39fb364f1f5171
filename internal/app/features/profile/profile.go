// internal/app/features/profile/profile.go
package profile

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	uierrors "github.com/dalemusser/schedulehub/internal/app/features/errors"
	teacherstore "github.com/dalemusser/schedulehub/internal/app/store/teachers"
	userstore "github.com/dalemusser/schedulehub/internal/app/store/users"
	"github.com/dalemusser/schedulehub/internal/app/system/authz"
	"github.com/dalemusser/schedulehub/internal/app/system/timeouts"
	"github.com/dalemusser/schedulehub/internal/app/system/viewdata"
	"github.com/dalemusser/schedulehub/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/templates"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// MinPasswordLen is the shortest password accepted on change.
const MinPasswordLen = 8

type profileData struct {
	viewdata.BaseVM

	FullName    string
	LoginID     string
	RoleLabel   string
	TeacherID   string
	TeacherName string

	MinPasswordLen int

	Error   string
	Success string
}

// ServeProfile renders the signed-in user's account page.
func (h *Handler) ServeProfile(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	user, ok := h.loadUser(ctx, w, r)
	if !ok {
		return
	}
	data := h.buildData(ctx, r, user)
	if r.URL.Query().Get("success") == "password" {
		data.Success = "Password changed."
	}
	templates.Render(w, r, "profile", data)
}

// HandleChangePassword verifies the current password and stores a new one.
func (h *Handler) HandleChangePassword(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.ErrLog.LogBadRequest(w, r, "parse form failed", err, "Invalid form data.", "/profile")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	user, ok := h.loadUser(ctx, w, r)
	if !ok {
		return
	}

	current := r.PostFormValue("current_password")
	next := r.PostFormValue("new_password")
	confirm := r.PostFormValue("confirm_password")

	if msg := checkNewPassword(user, current, next, confirm); msg != "" {
		data := h.buildData(ctx, r, user)
		data.Error = msg
		w.WriteHeader(http.StatusUnprocessableEntity)
		templates.Render(w, r, "profile", data)
		return
	}

	if err := userstore.New(h.DB).SetPassword(ctx, user.ID, next); err != nil {
		h.ErrLog.LogServerError(w, r, "set password failed", err, "Failed to update password.", "/profile")
		return
	}
	h.AuditLog.PasswordChanged(r.Context(), r, user.ID)
	h.Log.Info("password changed", zap.String("user_id", user.ID.Hex()))

	http.Redirect(w, r, "/profile?success=password", http.StatusSeeOther)
}

// checkNewPassword returns a message for the user, or "" when the change may proceed.
func checkNewPassword(user *models.User, current, next, confirm string) string {
	switch {
	case !userstore.CheckPassword(user, current):
		return "Current password is incorrect."
	case len(next) < MinPasswordLen:
		return fmt.Sprintf("New password must be at least %d characters.", MinPasswordLen)
	case next != confirm:
		return "New passwords do not match."
	case next == current:
		return "New password cannot be the same as your current password."
	}
	return ""
}

func (h *Handler) loadUser(ctx context.Context, w http.ResponseWriter, r *http.Request) (*models.User, bool) {
	_, _, uid, ok := authz.UserCtx(r)
	if !ok {
		uierrors.RenderUnauthorized(w, r, "/login")
		return nil, false
	}
	user, err := userstore.New(h.DB).GetByID(ctx, uid)
	if errors.Is(err, mongo.ErrNoDocuments) {
		h.ErrLog.LogNotFound(w, r, "profile user not found", err, "User not found.", "/")
		return nil, false
	}
	if err != nil {
		h.ErrLog.LogServerError(w, r, "load profile user failed", err, "A database error occurred.", "/")
		return nil, false
	}
	return user, true
}

func (h *Handler) buildData(ctx context.Context, r *http.Request, user *models.User) profileData {
	data := profileData{
		BaseVM:         viewdata.NewBaseVM(r, "Your account", "/dashboard"),
		FullName:       user.FullName,
		LoginID:        user.LoginID,
		RoleLabel:      roleLabel(user.Role),
		MinPasswordLen: MinPasswordLen,
	}
	if user.TeacherID != nil {
		data.TeacherID = user.TeacherID.Hex()
		t, err := teacherstore.New(h.DB).GetByID(ctx, *user.TeacherID)
		if err != nil {
			h.Log.Warn("linked teacher not found", zap.String("user_id", user.ID.Hex()), zap.Error(err))
		} else {
			data.TeacherName = t.FullName
		}
	}
	return data
}

func roleLabel(role string) string {
	switch role {
	case models.RoleAdmin:
		return "Administrator"
	case models.RoleTeacher:
		return "Teacher"
	}
	return role
}
