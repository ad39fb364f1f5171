package errors_test

import (
	"errors"
	"net/http"
	"testing"

	uierrors "github.com/dalemusser/schedulehub/internal/app/features/errors"
	"github.com/dalemusser/schedulehub/internal/testutil"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestErrorLogger_HTMX(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	el := uierrors.NewErrorLogger(zap.New(core))

	tests := []struct {
		name   string
		call   func(w http.ResponseWriter, r *http.Request)
		status int
		level  string
	}{
		{"server", func(w http.ResponseWriter, r *http.Request) {
			el.LogServerError(w, r, "load grid failed", errors.New("boom"), "Unable to load timetable.", "")
		}, http.StatusInternalServerError, "error"},
		{"bad request", func(w http.ResponseWriter, r *http.Request) {
			el.LogBadRequest(w, r, "parse form failed", nil, "Unable to load timetable.", "")
		}, http.StatusBadRequest, "warn"},
		{"not found", func(w http.ResponseWriter, r *http.Request) {
			el.LogNotFound(w, r, "section missing", nil, "Unable to load timetable.", "")
		}, http.StatusNotFound, "info"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := testutil.NewRequest(http.MethodGet, "/timetables/x")
			req.Header.Set("HX-Request", "true")
			rec := testutil.NewRecorder()

			tt.call(rec, req)

			rec.AssertStatus(t, tt.status)
			rec.AssertContains(t, "Unable to load timetable.")
			if got := rec.Header().Get("HX-Reswap"); got != "none" {
				t.Errorf("HX-Reswap: got %q", got)
			}
			entries := logs.TakeAll()
			if len(entries) != 1 || entries[0].Level.String() != tt.level {
				t.Errorf("log entries: %+v", entries)
			}
		})
	}
}

func TestErrorLogger_FullPageSetsStatus(t *testing.T) {
	el := uierrors.NewErrorLogger(nil)
	req := testutil.NewRequest(http.MethodGet, "/timetables/x")
	rec := testutil.NewRecorder()

	testutil.Serve(func(w http.ResponseWriter, r *http.Request) {
		el.LogNotFound(w, r, "section missing", nil, "", "/timetables")
	}, rec, req)

	rec.AssertStatus(t, http.StatusNotFound)
}
