package dashboard_test

import (
	"net/http"
	"testing"
	"time"

	"github.com/dalemusser/schedulehub/internal/app/features/dashboard"
	"github.com/dalemusser/schedulehub/internal/app/system/auth"
	"github.com/dalemusser/schedulehub/internal/testutil"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

func newTestHandler(t *testing.T) *dashboard.Handler {
	t.Helper()
	db := testutil.SetupTestDB(t)
	return dashboard.NewHandler(db, zap.NewNop())
}

func TestServeDashboard_Unauthenticated(t *testing.T) {
	handler := newTestHandler(t)
	rec := testutil.NewRecorder()

	handler.ServeDashboard(rec, testutil.NewRequest("GET", "/dashboard"))

	rec.AssertRedirect(t, "/")
}

func TestServeDashboard_Roles(t *testing.T) {
	handler := newTestHandler(t)

	tests := []struct {
		name string
		user testutil.TestUser
	}{
		{"admin", testutil.AdminUser()},
		{"linked teacher", testutil.TeacherUser(primitive.NewObjectID())},
		{"unlinked teacher", testutil.TestUser{ID: primitive.NewObjectID().Hex(), Name: "New", Role: "teacher"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := testutil.NewRecorder()
			req := testutil.NewAuthenticatedRequest("GET", "/dashboard", tt.user)

			// Rendering panics without a booted template engine; the dispatch
			// must not redirect either way.
			testutil.Serve(handler.ServeDashboard, rec, req)

			if loc := rec.Header().Get("Location"); loc != "" {
				t.Errorf("unexpected redirect to %q", loc)
			}
		})
	}
}

func TestServeDashboard_UnknownRole(t *testing.T) {
	handler := newTestHandler(t)
	user := testutil.TestUser{ID: primitive.NewObjectID().Hex(), Name: "Odd", Role: "janitor"}
	rec := testutil.NewRecorder()

	handler.ServeDashboard(rec, testutil.NewAuthenticatedRequest("GET", "/dashboard", user))

	if rec.Code != http.StatusSeeOther {
		t.Errorf("expected status %d, got %d", http.StatusSeeOther, rec.Code)
	}
}

func TestRoutes(t *testing.T) {
	handler := newTestHandler(t)
	logger := zap.NewNop()

	sessionMgr, err := auth.NewSessionManager("test-session-key-for-testing-only", "test-session", "", 24*time.Hour, false, logger)
	if err != nil {
		t.Fatalf("NewSessionManager failed: %v", err)
	}

	router := dashboard.Routes(handler, sessionMgr)
	if router == nil {
		t.Fatal("Routes() returned nil")
	}
}
