// internal/app/features/api/handler.go
package api

import (
	"errors"
	"net/http"

	codevaluestore "github.com/dalemusser/schedulehub/internal/app/store/codevalues"
	roomstore "github.com/dalemusser/schedulehub/internal/app/store/rooms"
	sectionstore "github.com/dalemusser/schedulehub/internal/app/store/sections"
	studentstore "github.com/dalemusser/schedulehub/internal/app/store/students"
	subjectstore "github.com/dalemusser/schedulehub/internal/app/store/subjects"
	teacherstore "github.com/dalemusser/schedulehub/internal/app/store/teachers"
	timetablestore "github.com/dalemusser/schedulehub/internal/app/store/timetables"
	"github.com/dalemusser/schedulehub/internal/app/system/auditlog"
	"github.com/dalemusser/schedulehub/internal/app/system/authz"
	"github.com/dalemusser/schedulehub/internal/app/system/changes"
	"github.com/dalemusser/schedulehub/internal/app/system/generator"
	"github.com/dalemusser/schedulehub/internal/app/system/jsonutil"
	"github.com/dalemusser/schedulehub/internal/app/system/timetable"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Handler serves the JSON API.
type Handler struct {
	Rooms    *roomstore.Store
	Teachers *teacherstore.Store
	Students *studentstore.Store
	Subjects *subjectstore.Store
	Sections *sectionstore.Store
	Codes    *codevaluestore.Store
	Entries  *timetablestore.Store

	TT       *timetable.Service
	Changes  *changes.Service
	Gen      *generator.Client
	Log      *zap.Logger
	AuditLog *auditlog.Logger
}

func NewHandler(db *mongo.Database, tt *timetable.Service, cs *changes.Service, gen *generator.Client, audit *auditlog.Logger, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		Rooms:    roomstore.New(db),
		Teachers: teacherstore.New(db),
		Students: studentstore.New(db),
		Subjects: subjectstore.New(db),
		Sections: sectionstore.New(db),
		Codes:    codevaluestore.New(db),
		Entries:  timetablestore.New(db),
		TT:       tt,
		Changes:  cs,
		Gen:      gen,
		Log:      logger,
		AuditLog: audit,
	}
}

// Page is the envelope of every list response.
type Page[T any] struct {
	Items      []T    `json:"items"`
	HasNext    bool   `json:"has_next"`
	HasPrev    bool   `json:"has_prev"`
	NextCursor string `json:"next_cursor,omitempty"`
	PrevCursor string `json:"prev_cursor,omitempty"`
	Total      int64  `json:"total"`
}

func actorID(r *http.Request) string {
	_, _, id, ok := authz.UserCtx(r)
	if !ok {
		return ""
	}
	return id.Hex()
}

// serverError logs err and writes a generic 500.
func (h *Handler) serverError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	h.Log.Error(msg, zap.Error(err), zap.String("path", r.URL.Path))
	jsonutil.Error(w, http.StatusInternalServerError, "internal", "Something went wrong.")
}

// writeErr maps service errors onto API responses.
func (h *Handler) writeErr(w http.ResponseWriter, r *http.Request, msg string, err error) {
	var inv *changes.InvalidError
	var ue *timetable.UserError
	var ge *generator.Error
	switch {
	case errors.Is(err, mongo.ErrNoDocuments),
		errors.Is(err, timetable.ErrEntryNotFound),
		errors.Is(err, timetable.ErrSectionNotFound),
		errors.Is(err, timetable.ErrTeacherNotFound),
		errors.Is(err, changes.ErrNotFound):
		jsonutil.Error(w, http.StatusNotFound, "not_found", "Not found.")
	case errors.Is(err, changes.ErrNotPending):
		jsonutil.Error(w, http.StatusConflict, "not_pending", "This request has already been reviewed.")
	case errors.As(err, &inv):
		jsonutil.Invalid(w, inv.UserMessage(), inv.Fields())
	case errors.As(err, &ue):
		jsonutil.Error(w, http.StatusUnprocessableEntity, "rejected", ue.UserMessage())
	case errors.Is(err, generator.ErrNotConfigured):
		jsonutil.Error(w, http.StatusServiceUnavailable, "generator_unavailable", "The timetable generator is not configured.")
	case errors.As(err, &ge):
		h.Log.Warn("generator rejected request", zap.Int("status", ge.Status), zap.String("message", ge.Message))
		jsonutil.Error(w, http.StatusBadGateway, "generator", ge.UserMessage())
	default:
		h.serverError(w, r, msg, err)
	}
}

func isNoDocs(err error) bool { return errors.Is(err, mongo.ErrNoDocuments) }
