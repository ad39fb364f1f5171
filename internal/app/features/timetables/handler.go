// internal/app/features/timetables/handler.go
package timetables

import (
	"net/http"

	uierrors "github.com/dalemusser/schedulehub/internal/app/features/errors"
	"github.com/dalemusser/schedulehub/internal/app/system/auditlog"
	"github.com/dalemusser/schedulehub/internal/app/system/timetable"
	"go.uber.org/zap"
)

// ChangedEvent is the HX-Trigger event fired after any timetable write.
// The grid partial listens for it and reloads.
const ChangedEvent = "timetable-changed"

type Handler struct {
	Svc      *timetable.Service
	Log      *zap.Logger
	ErrLog   *uierrors.ErrorLogger
	AuditLog *auditlog.Logger
}

func NewHandler(svc *timetable.Service, errLog *uierrors.ErrorLogger, audit *auditlog.Logger, logger *zap.Logger) *Handler {
	return &Handler{
		Svc:      svc,
		Log:      logger,
		ErrLog:   errLog,
		AuditLog: audit,
	}
}

func isHTMX(r *http.Request) bool { return r.Header.Get("HX-Request") != "" }

// changed finishes a successful write: HTMX clients get the trigger
// event, plain form posts are sent back to the section page.
func changed(w http.ResponseWriter, r *http.Request, back string) {
	if isHTMX(r) {
		w.Header().Set("HX-Trigger", ChangedEvent)
		w.WriteHeader(http.StatusNoContent)
		return
	}
	http.Redirect(w, r, back, http.StatusSeeOther)
}
