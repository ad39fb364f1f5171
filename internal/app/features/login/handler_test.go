package login_test

import (
	"net/http"
	"net/url"
	"testing"
	"time"

	uierrors "github.com/dalemusser/schedulehub/internal/app/features/errors"
	"github.com/dalemusser/schedulehub/internal/app/features/login"
	"github.com/dalemusser/schedulehub/internal/app/store/audit"
	"github.com/dalemusser/schedulehub/internal/app/system/auditlog"
	"github.com/dalemusser/schedulehub/internal/app/system/auth"
	"github.com/dalemusser/schedulehub/internal/app/system/ratelimit"
	"github.com/dalemusser/schedulehub/internal/domain/models"
	"github.com/dalemusser/schedulehub/internal/testutil"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

type env struct {
	h        *login.Handler
	fixtures *testutil.Fixtures
	audit    *audit.Store
}

func newEnv(t *testing.T, limiter *ratelimit.LoginLimiter) env {
	t.Helper()
	db := testutil.SetupTestDB(t)
	logger := zap.NewNop()

	sessionMgr, err := auth.NewSessionManager("test-session-key-for-testing-only", "test-session", "", 24*time.Hour, false, logger)
	if err != nil {
		t.Fatalf("NewSessionManager failed: %v", err)
	}
	store := audit.New(db)
	al := auditlog.New(store, logger, auditlog.Config{Auth: "db"})

	h := login.NewHandler(db, sessionMgr, uierrors.NewErrorLogger(logger), al, limiter, logger)
	return env{h: h, fixtures: testutil.NewFixtures(t, db), audit: store}
}

func post(h *login.Handler, form url.Values) *testutil.ResponseRecorder {
	rec := testutil.NewRecorder()
	req := testutil.NewFormRequest(http.MethodPost, "/login", form.Encode())
	testutil.Serve(h.HandleLoginPost, rec, req)
	return rec
}

func (e env) countEvents(t *testing.T, eventType string) int64 {
	t.Helper()
	ctx, cancel := testutil.TestContext()
	defer cancel()
	n, err := e.audit.CountByFilter(ctx, audit.QueryFilter{EventType: eventType})
	if err != nil {
		t.Fatalf("CountByFilter: %v", err)
	}
	return n
}

func TestHandleLoginPost_Success(t *testing.T) {
	e := newEnv(t, ratelimit.NewLoginLimiter())
	ctx, cancel := testutil.TestContext()
	defer cancel()
	e.fixtures.CreateUser(ctx, "admin", "s3cret-pass", models.RoleAdmin, nil)

	rec := post(e.h, url.Values{"login_id": {"admin"}, "password": {"s3cret-pass"}})

	rec.AssertRedirect(t, "/dashboard")
	if rec.Header().Get("Set-Cookie") == "" {
		t.Error("expected a session cookie")
	}
	if n := e.countEvents(t, audit.EventLoginSuccess); n != 1 {
		t.Errorf("login_success events: got %d, want 1", n)
	}
}

func TestHandleLoginPost_TeacherLanding(t *testing.T) {
	e := newEnv(t, nil)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	teacherID := primitive.NewObjectID()
	e.fixtures.CreateUser(ctx, "smith", "s3cret-pass", models.RoleTeacher, &teacherID)

	rec := post(e.h, url.Values{"login_id": {"smith"}, "password": {"s3cret-pass"}})
	rec.AssertRedirect(t, "/timetables/teachers/"+teacherID.Hex())
}

func TestHandleLoginPost_ReturnURL(t *testing.T) {
	e := newEnv(t, nil)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	e.fixtures.CreateUser(ctx, "admin", "s3cret-pass", models.RoleAdmin, nil)

	tests := []struct {
		name string
		ret  string
		want string
	}{
		{"local path", "/timetables", "/timetables"},
		{"external host", "https://evil.example.com/", "/dashboard"},
		{"protocol relative", "//evil.example.com", "/dashboard"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := post(e.h, url.Values{"login_id": {"admin"}, "password": {"s3cret-pass"}, "return": {tt.ret}})
			rec.AssertRedirect(t, tt.want)
		})
	}
}

func TestHandleLoginPost_Failures(t *testing.T) {
	e := newEnv(t, nil)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	e.fixtures.CreateUser(ctx, "admin", "s3cret-pass", models.RoleAdmin, nil)

	tests := []struct {
		name   string
		form   url.Values
		status int
	}{
		{"missing password", url.Values{"login_id": {"admin"}}, http.StatusUnprocessableEntity},
		{"wrong password", url.Values{"login_id": {"admin"}, "password": {"nope"}}, http.StatusUnauthorized},
		{"unknown user", url.Values{"login_id": {"ghost"}, "password": {"nope"}}, http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := post(e.h, tt.form)
			rec.AssertStatus(t, tt.status)
			if rec.Header().Get("Set-Cookie") != "" {
				t.Error("failed login must not set a session cookie")
			}
		})
	}
	if n := e.countEvents(t, audit.EventLoginFailedWrongPassword); n != 2 {
		t.Errorf("wrong-password events: got %d, want 2", n)
	}
}

func TestHandleLoginPost_RateLimited(t *testing.T) {
	e := newEnv(t, ratelimit.NewLoginLimiterWithConfig(100, time.Minute, 2, time.Minute))
	ctx, cancel := testutil.TestContext()
	defer cancel()
	e.fixtures.CreateUser(ctx, "admin", "s3cret-pass", models.RoleAdmin, nil)

	bad := url.Values{"login_id": {"admin"}, "password": {"nope"}}
	post(e.h, bad).AssertStatus(t, http.StatusUnauthorized)
	post(e.h, bad).AssertStatus(t, http.StatusUnauthorized)

	// The right password is refused once the account bucket is empty.
	rec := post(e.h, url.Values{"login_id": {"admin"}, "password": {"s3cret-pass"}})
	rec.AssertStatus(t, http.StatusTooManyRequests)

	if n := e.countEvents(t, audit.EventLoginFailedRateLimit); n != 1 {
		t.Errorf("rate-limit events: got %d, want 1", n)
	}
}

func TestServeLogin_SignedInRedirects(t *testing.T) {
	e := newEnv(t, nil)
	req := testutil.NewAuthenticatedRequest(http.MethodGet, "/login", testutil.AdminUser())
	rec := testutil.NewRecorder()

	e.h.ServeLogin(rec, req)

	rec.AssertRedirect(t, "/dashboard")
}
