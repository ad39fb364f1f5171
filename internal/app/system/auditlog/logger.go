// internal/app/system/auditlog/logger.go
package auditlog

import (
	"context"
	"net/http"

	"github.com/dalemusser/schedulehub/internal/app/store/audit"
	"github.com/dalemusser/schedulehub/internal/app/system/ratelimit"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// Config selects where each category of events goes.
// Values: "all" (MongoDB + zap), "db" (MongoDB only), "log" (zap only), "off".
// An empty value means "all".
type Config struct {
	Auth     string
	Admin    string
	Schedule string
}

// Logger records audit events to the audit store and to zap.
// A nil *Logger is a no-op.
type Logger struct {
	store  *audit.Store
	zapLog *zap.Logger
	config Config
}

func New(store *audit.Store, zapLog *zap.Logger, config Config) *Logger {
	return &Logger{store: store, zapLog: zapLog, config: config}
}

func (l *Logger) setting(category string) string {
	var s string
	switch category {
	case audit.CategoryAuth:
		s = l.config.Auth
	case audit.CategoryAdmin:
		s = l.config.Admin
	case audit.CategorySchedule:
		s = l.config.Schedule
	}
	if s == "" {
		return "all"
	}
	return s
}

func (l *Logger) logToZap(event audit.Event) {
	fields := []zap.Field{
		zap.Bool("audit", true),
		zap.String("category", event.Category),
		zap.String("event_type", event.EventType),
		zap.Bool("success", event.Success),
		zap.String("ip", event.IP),
	}
	if event.UserID != nil {
		fields = append(fields, zap.String("user_id", event.UserID.Hex()))
	}
	if event.ActorID != nil {
		fields = append(fields, zap.String("actor_id", event.ActorID.Hex()))
	}
	if event.RecordID != nil {
		fields = append(fields, zap.String("collection", event.Collection), zap.String("record_id", event.RecordID.Hex()))
	}
	if event.FailureReason != "" {
		fields = append(fields, zap.String("failure_reason", event.FailureReason))
	}
	for k, v := range event.Details {
		fields = append(fields, zap.String("detail_"+k, v))
	}

	if event.Success {
		l.zapLog.Info("audit event", fields...)
	} else {
		l.zapLog.Warn("audit event", fields...)
	}
}

// Log records an event according to the category's setting.
func (l *Logger) Log(ctx context.Context, event audit.Event) {
	if l == nil {
		return
	}
	setting := l.setting(event.Category)
	if setting == "off" {
		return
	}
	if setting == "all" || setting == "log" {
		l.logToZap(event)
	}
	if setting == "all" || setting == "db" {
		if err := l.store.Log(ctx, event); err != nil {
			l.zapLog.Error("failed to store audit event",
				zap.Error(err),
				zap.String("event_type", event.EventType))
		}
	}
}

func oidPtr(hex string) *primitive.ObjectID {
	oid, err := primitive.ObjectIDFromHex(hex)
	if err != nil {
		return nil
	}
	return &oid
}

func requestEvent(r *http.Request, category, eventType string) audit.Event {
	return audit.Event{
		Category:  category,
		EventType: eventType,
		IP:        ratelimit.ClientIP(r),
		UserAgent: r.UserAgent(),
		Success:   true,
	}
}

// --- Authentication events ---

func (l *Logger) LoginSuccess(ctx context.Context, r *http.Request, userID primitive.ObjectID, loginID string) {
	if l == nil {
		return
	}
	e := requestEvent(r, audit.CategoryAuth, audit.EventLoginSuccess)
	e.UserID = &userID
	e.Details = map[string]string{"login_id": loginID}
	l.Log(ctx, e)
}

// LoginFailed records a rejected login. userID is nil when the login id is unknown.
func (l *Logger) LoginFailed(ctx context.Context, r *http.Request, eventType string, userID *primitive.ObjectID, loginID, reason string) {
	if l == nil {
		return
	}
	e := requestEvent(r, audit.CategoryAuth, eventType)
	e.UserID = userID
	e.Success = false
	e.FailureReason = reason
	e.Details = map[string]string{"login_id": loginID}
	l.Log(ctx, e)
}

func (l *Logger) Logout(ctx context.Context, r *http.Request, userID string) {
	if l == nil {
		return
	}
	e := requestEvent(r, audit.CategoryAuth, audit.EventLogout)
	e.UserID = oidPtr(userID)
	l.Log(ctx, e)
}

func (l *Logger) PasswordChanged(ctx context.Context, r *http.Request, userID primitive.ObjectID) {
	if l == nil {
		return
	}
	e := requestEvent(r, audit.CategoryAuth, audit.EventPasswordChanged)
	e.UserID = &userID
	e.ActorID = &userID
	l.Log(ctx, e)
}

// --- Admin events ---

// Record logs a create/update/delete of a catalog record.
func (l *Logger) Record(ctx context.Context, r *http.Request, eventType, actorID, collection string, recordID primitive.ObjectID, details map[string]string) {
	if l == nil {
		return
	}
	e := requestEvent(r, audit.CategoryAdmin, eventType)
	e.ActorID = oidPtr(actorID)
	e.Collection = collection
	e.RecordID = &recordID
	e.Details = details
	l.Log(ctx, e)
}

// --- Schedule events ---

// Schedule logs a timetable or change-request action. recordID may be nil
// for bulk actions such as generation.
func (l *Logger) Schedule(ctx context.Context, r *http.Request, eventType, actorID string, recordID *primitive.ObjectID, details map[string]string) {
	if l == nil {
		return
	}
	e := requestEvent(r, audit.CategorySchedule, eventType)
	e.ActorID = oidPtr(actorID)
	if recordID != nil {
		e.Collection = collectionFor(eventType)
		e.RecordID = recordID
	}
	e.Details = details
	l.Log(ctx, e)
}

func collectionFor(eventType string) string {
	switch eventType {
	case audit.EventChangeRequested, audit.EventChangeApproved, audit.EventChangeRejected:
		return "change_requests"
	}
	return "timetable_entries"
}
