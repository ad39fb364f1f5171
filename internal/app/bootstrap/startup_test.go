package bootstrap

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dalemusser/schedulehub/internal/domain/models"
	"github.com/dalemusser/schedulehub/internal/testutil"
	"github.com/dalemusser/waffle/config"
	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap"
)

func testLogger() *zap.Logger {
	return zap.NewNop()
}

func validConfig() AppConfig {
	return AppConfig{
		MongoURI:         "mongodb://localhost:27017",
		MongoDatabase:    "schedulehub",
		MongoMaxPoolSize: 100,
		MongoMinPoolSize: 10,
		SessionKey:       strings.Repeat("k", 32),
		SessionMaxAge:    time.Hour,
		CacheTTL:         time.Minute,
	}
}

func TestValidateConfig(t *testing.T) {
	dev := &config.CoreConfig{Env: "dev"}
	prod := &config.CoreConfig{Env: "prod"}

	tests := []struct {
		name    string
		core    *config.CoreConfig
		mutate  func(*AppConfig)
		wantErr bool
	}{
		{"valid", prod, func(*AppConfig) {}, false},
		{"bad mongo uri", dev, func(c *AppConfig) { c.MongoURI = "postgres://nope" }, true},
		{"missing database", dev, func(c *AppConfig) { c.MongoDatabase = "" }, true},
		{"pool sizes inverted", dev, func(c *AppConfig) { c.MongoMinPoolSize = 200 }, true},
		{"short key in dev", dev, func(c *AppConfig) { c.SessionKey = "short" }, false},
		{"short key in prod", prod, func(c *AppConfig) { c.SessionKey = "short" }, true},
		{"generator http", dev, func(c *AppConfig) { c.GeneratorURL = "http://gen.local:8080" }, false},
		{"generator ftp", dev, func(c *AppConfig) { c.GeneratorURL = "ftp://gen.local" }, true},
		{"token url without client", dev, func(c *AppConfig) {
			c.GeneratorURL = "https://gen.local"
			c.GeneratorTokenURL = "https://auth.local/token"
		}, true},
		{"token url with client", dev, func(c *AppConfig) {
			c.GeneratorURL = "https://gen.local"
			c.GeneratorTokenURL = "https://auth.local/token"
			c.GeneratorClientID = "schedulehub"
		}, false},
		{"admin login without password", dev, func(c *AppConfig) { c.BootstrapAdminLogin = "root" }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := ValidateConfig(tt.core, cfg, testLogger())
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateConfig() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestEnsureAdmin_CreatesOnce(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	deps := DBDeps{MongoDatabase: db}
	cfg := validConfig()
	cfg.BootstrapAdminLogin = "root"
	cfg.BootstrapAdminPassword = "change-me"

	if err := ensureAdmin(ctx, deps, cfg, testLogger()); err != nil {
		t.Fatalf("ensureAdmin failed: %v", err)
	}
	if err := ensureAdmin(ctx, deps, cfg, testLogger()); err != nil {
		t.Fatalf("second ensureAdmin failed: %v", err)
	}

	n, err := db.Collection("users").CountDocuments(ctx, bson.M{"role": models.RoleAdmin})
	if err != nil {
		t.Fatalf("count admins: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 admin, got %d", n)
	}
}

func TestEnsureAdmin_SkipsWithoutLogin(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if err := ensureAdmin(ctx, DBDeps{MongoDatabase: db}, validConfig(), testLogger()); err != nil {
		t.Fatalf("ensureAdmin failed: %v", err)
	}
	n, _ := db.Collection("users").CountDocuments(ctx, bson.M{})
	if n != 0 {
		t.Errorf("expected no users, got %d", n)
	}
}

func TestBuildServices(t *testing.T) {
	db := testutil.SetupTestDB(t)
	deps := DBDeps{MongoClient: testutil.MongoClient(t), MongoDatabase: db, Services: &Services{}}

	buildServices(deps.Services, validConfig(), deps, testLogger())

	svc := deps.Services
	if svc.Cache == nil || svc.Timetable == nil || svc.Changes == nil || svc.Requests == nil {
		t.Fatal("core services not built")
	}
	if svc.Generator == nil || svc.Audit == nil || svc.Limiter == nil || svc.Runner == nil {
		t.Fatal("supporting services not built")
	}
	svc.Runner.Start(context.Background())
	svc.Runner.Stop()
}

func TestCSRFMiddleware(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) })
	var h http.Handler = ok
	mw := csrfMiddleware(strings.Repeat("k", 32), false, testLogger())
	for i := len(mw) - 1; i >= 0; i-- {
		h = mw[i](h)
	}

	tests := []struct {
		name        string
		method      string
		path        string
		contentType string
		want        int
	}{
		{"safe method", http.MethodGet, "/dashboard", "", http.StatusNoContent},
		{"api json write", http.MethodPost, "/api/rooms", "application/json; charset=utf-8", http.StatusNoContent},
		{"api bodiless delete", http.MethodDelete, "/api/rooms/x", "", http.StatusNoContent},
		{"api put without content type", http.MethodPut, "/api/rooms/x", "", http.StatusNoContent},
		{"api bodiless json post", http.MethodPost, "/api/timetables/x/split", "application/json", http.StatusNoContent},
		{"api bodiless post without type", http.MethodPost, "/api/timetables/x/split", "", http.StatusForbidden},
		{"form delete stays protected", http.MethodDelete, "/rooms/x", "", http.StatusForbidden},
		{"api multipart write", http.MethodPost, "/api/timetables/import", "multipart/form-data; boundary=x", http.StatusForbidden},
		{"form post without token", http.MethodPost, "/change-requests", "application/x-www-form-urlencoded", http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, strings.NewReader(""))
			if tt.contentType != "" {
				req.Header.Set("Content-Type", tt.contentType)
			}
			// Form posts are answered with the rendered forbidden page, which
			// needs a booted template engine.
			rec := testutil.NewRecorder()
			testutil.Serve(h.ServeHTTP, rec, req)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}
