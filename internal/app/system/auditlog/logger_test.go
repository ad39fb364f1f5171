package auditlog_test

import (
	"net/http/httptest"
	"testing"

	"github.com/dalemusser/schedulehub/internal/app/store/audit"
	"github.com/dalemusser/schedulehub/internal/app/system/auditlog"
	"github.com/dalemusser/schedulehub/internal/testutil"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

func TestLogger_NilLogger(t *testing.T) {
	var logger *auditlog.Logger
	ctx, cancel := testutil.TestContext()
	defer cancel()
	req := httptest.NewRequest("GET", "/", nil)

	logger.Log(ctx, audit.Event{EventType: "test"})
	logger.LoginSuccess(ctx, req, primitive.NewObjectID(), "test")
	logger.Logout(ctx, req, primitive.NewObjectID().Hex())
	logger.Schedule(ctx, req, audit.EventEntryCreated, "", nil, nil)
}

func TestLogger_ConfigOff(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := audit.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	logger := auditlog.New(store, zap.NewNop(), auditlog.Config{Auth: "off", Admin: "off", Schedule: "off"})
	userID := primitive.NewObjectID()
	logger.LoginSuccess(ctx, httptest.NewRequest("GET", "/", nil), userID, "ann")

	n, err := store.CountByFilter(ctx, audit.QueryFilter{})
	if err != nil {
		t.Fatalf("CountByFilter: %v", err)
	}
	if n != 0 {
		t.Errorf("expected no events with logging off, got %d", n)
	}
}

func TestLogger_LoginSuccess_ClientIP(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := audit.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	logger := auditlog.New(store, zap.NewNop(), auditlog.Config{Auth: "db"})

	tests := []struct {
		name   string
		xff    string
		xri    string
		remote string
		want   string
	}{
		{"forwarded for", "203.0.113.195, 10.0.0.1", "192.168.1.1", "127.0.0.1:1", "203.0.113.195"},
		{"real ip", "", "192.168.1.100", "127.0.0.1:1", "192.168.1.100"},
		{"remote addr", "", "", "10.0.0.5:12345", "10.0.0.5"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			userID := primitive.NewObjectID()
			req := httptest.NewRequest("POST", "/login", nil)
			if tt.xff != "" {
				req.Header.Set("X-Forwarded-For", tt.xff)
			}
			if tt.xri != "" {
				req.Header.Set("X-Real-IP", tt.xri)
			}
			req.RemoteAddr = tt.remote
			logger.LoginSuccess(ctx, req, userID, "ann")

			events, err := store.GetByUser(ctx, userID, 10)
			if err != nil {
				t.Fatalf("GetByUser: %v", err)
			}
			if len(events) != 1 {
				t.Fatalf("expected 1 event, got %d", len(events))
			}
			if events[0].IP != tt.want {
				t.Errorf("IP = %q, want %q", events[0].IP, tt.want)
			}
			if events[0].EventType != audit.EventLoginSuccess || !events[0].Success {
				t.Errorf("event = %+v", events[0])
			}
		})
	}
}

func TestLogger_LoginFailed(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := audit.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	logger := auditlog.New(store, zap.NewNop(), auditlog.Config{})
	logger.LoginFailed(ctx, httptest.NewRequest("POST", "/login", nil), audit.EventLoginFailedUserNotFound, nil, "ghost", "unknown login id")

	events, err := store.Query(ctx, audit.QueryFilter{EventType: audit.EventLoginFailedUserNotFound})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if events[0].Success || events[0].FailureReason == "" || events[0].Details["login_id"] != "ghost" {
		t.Errorf("event = %+v", events[0])
	}
}

func TestLogger_ScheduleEvents(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := audit.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	logger := auditlog.New(store, zap.NewNop(), auditlog.Config{Schedule: "db", Admin: "log"})
	actor := primitive.NewObjectID()
	entry := primitive.NewObjectID()
	req := httptest.NewRequest("POST", "/timetables/x/cell", nil)

	logger.Schedule(ctx, req, audit.EventEntryCreated, actor.Hex(), &entry, map[string]string{"day": "Monday"})
	logger.Record(ctx, req, audit.EventRecordCreated, actor.Hex(), "rooms", primitive.NewObjectID(), nil)

	events, err := store.GetByRecord(ctx, entry, 10)
	if err != nil {
		t.Fatalf("GetByRecord: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 schedule event, got %d", len(events))
	}
	e := events[0]
	if e.Collection != "timetable_entries" || e.ActorID == nil || *e.ActorID != actor {
		t.Errorf("event = %+v", e)
	}

	n, _ := store.CountByFilter(ctx, audit.QueryFilter{Category: audit.CategoryAdmin})
	if n != 0 {
		t.Errorf("admin events with \"log\" setting should not reach the store, got %d", n)
	}
}
