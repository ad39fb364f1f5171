package profile_test

import (
	"net/http"
	"net/url"
	"testing"

	uierrors "github.com/dalemusser/schedulehub/internal/app/features/errors"
	"github.com/dalemusser/schedulehub/internal/app/features/profile"
	"github.com/dalemusser/schedulehub/internal/app/store/audit"
	userstore "github.com/dalemusser/schedulehub/internal/app/store/users"
	"github.com/dalemusser/schedulehub/internal/app/system/auditlog"
	"github.com/dalemusser/schedulehub/internal/domain/models"
	"github.com/dalemusser/schedulehub/internal/testutil"
	"go.uber.org/zap"
)

func TestHandleChangePassword(t *testing.T) {
	tests := []struct {
		name       string
		current    string
		next       string
		confirm    string
		wantStatus int
		wantNewPW  bool
	}{
		{"success", "old-password", "new-password", "new-password", http.StatusSeeOther, true},
		{"wrong current", "nope", "new-password", "new-password", http.StatusUnprocessableEntity, false},
		{"too short", "old-password", "short", "short", http.StatusUnprocessableEntity, false},
		{"mismatch", "old-password", "new-password", "new-passw0rd", http.StatusUnprocessableEntity, false},
		{"same as current", "old-password", "old-password", "old-password", http.StatusUnprocessableEntity, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := testutil.SetupTestDB(t)
			ctx, cancel := testutil.TestContext()
			defer cancel()

			logger := zap.NewNop()
			store := audit.New(db)
			h := profile.NewHandler(db, uierrors.NewErrorLogger(logger), auditlog.New(store, logger, auditlog.Config{Auth: "db"}), logger)

			fx := testutil.NewFixtures(t, db)
			u := fx.CreateUser(ctx, "ada", "old-password", models.RoleAdmin, nil)
			user := testutil.TestUser{ID: u.ID.Hex(), Name: u.FullName, LoginID: u.LoginID, Role: u.Role}

			form := url.Values{
				"current_password": {tt.current},
				"new_password":     {tt.next},
				"confirm_password": {tt.confirm},
			}
			req := testutil.WithUser(testutil.NewFormRequest(http.MethodPost, "/profile/password", form.Encode()), user)
			rec := testutil.NewRecorder()
			testutil.Serve(h.HandleChangePassword, rec, req)

			rec.AssertStatus(t, tt.wantStatus)

			users := userstore.New(db)
			_, errNew := users.Authenticate(ctx, "ada", "new-password")
			if tt.wantNewPW && errNew != nil {
				t.Errorf("new password rejected: %v", errNew)
			}
			if !tt.wantNewPW {
				if _, err := users.Authenticate(ctx, "ada", "old-password"); err != nil {
					t.Errorf("old password should still work: %v", err)
				}
			}

			n, _ := store.CountByFilter(ctx, audit.QueryFilter{EventType: audit.EventPasswordChanged})
			if tt.wantNewPW != (n == 1) {
				t.Errorf("password_changed events = %d", n)
			}
		})
	}
}

func TestServeProfile_Unauthenticated(t *testing.T) {
	db := testutil.SetupTestDB(t)
	logger := zap.NewNop()
	h := profile.NewHandler(db, uierrors.NewErrorLogger(logger), nil, logger)

	rec := testutil.NewRecorder()
	testutil.Serve(h.ServeProfile, rec, testutil.NewRequest(http.MethodGet, "/profile"))

	rec.AssertStatus(t, http.StatusUnauthorized)
}
