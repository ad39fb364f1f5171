// internal/app/features/changerequests/handler.go
package changerequests

import (
	"net/http"

	uierrors "github.com/dalemusser/schedulehub/internal/app/features/errors"
	"github.com/dalemusser/schedulehub/internal/app/system/auditlog"
	"github.com/dalemusser/schedulehub/internal/app/system/authz"
	"github.com/dalemusser/schedulehub/internal/app/system/changes"
	"github.com/dalemusser/schedulehub/internal/app/system/timetable"
	"go.uber.org/zap"
)

type Handler struct {
	Changes  *changes.Service
	TT       *timetable.Service
	Log      *zap.Logger
	ErrLog   *uierrors.ErrorLogger
	AuditLog *auditlog.Logger
}

func NewHandler(cs *changes.Service, tt *timetable.Service, errLog *uierrors.ErrorLogger, audit *auditlog.Logger, logger *zap.Logger) *Handler {
	return &Handler{
		Changes:  cs,
		TT:       tt,
		Log:      logger,
		ErrLog:   errLog,
		AuditLog: audit,
	}
}

// person is the signed-in user as a requester or reviewer.
func person(r *http.Request) (changes.Person, bool) {
	_, name, id, ok := authz.UserCtx(r)
	return changes.Person{ID: id, Name: name}, ok
}
