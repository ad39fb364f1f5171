package errors

import (
	"net/http"

	"github.com/dalemusser/schedulehub/internal/app/system/viewdata"
	"github.com/dalemusser/waffle/pantry/templates"
	"go.uber.org/zap"
)

// ErrorLogger logs a handler failure and renders the matching error page.
// HTMX requests get the message as plain text so the swap target can show it.
type ErrorLogger struct {
	log *zap.Logger
}

func NewErrorLogger(logger *zap.Logger) *ErrorLogger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ErrorLogger{log: logger}
}

// LogServerError logs at Error and responds 500.
func (e *ErrorLogger) LogServerError(w http.ResponseWriter, r *http.Request, msg string, err error, userMsg, backURL string) {
	e.log.Error(msg, e.fields(r, err)...)
	e.respond(w, r, http.StatusInternalServerError, "Something went wrong", userMsg, backURL)
}

// LogBadRequest logs at Warn and responds 400.
func (e *ErrorLogger) LogBadRequest(w http.ResponseWriter, r *http.Request, msg string, err error, userMsg, backURL string) {
	e.log.Warn(msg, e.fields(r, err)...)
	e.respond(w, r, http.StatusBadRequest, "Bad request", userMsg, backURL)
}

// LogNotFound logs at Info and responds 404.
func (e *ErrorLogger) LogNotFound(w http.ResponseWriter, r *http.Request, msg string, err error, userMsg, backURL string) {
	e.log.Info(msg, e.fields(r, err)...)
	e.respond(w, r, http.StatusNotFound, "Not found", userMsg, backURL)
}

func (e *ErrorLogger) fields(r *http.Request, err error) []zap.Field {
	fs := []zap.Field{
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
	}
	if err != nil {
		fs = append(fs, zap.Error(err))
	}
	return fs
}

func (e *ErrorLogger) respond(w http.ResponseWriter, r *http.Request, status int, title, userMsg, backURL string) {
	if userMsg == "" {
		userMsg = http.StatusText(status)
	}
	if r.Header.Get("HX-Request") == "true" {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Header().Set("HX-Reswap", "none")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(userMsg))
		return
	}
	if backURL == "" {
		backURL = "/"
	}
	data := pageData{
		BaseVM:  viewdata.NewBaseVM(r, title, backURL),
		Status:  status,
		Message: userMsg,
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	templates.Render(w, r, "error_page", data)
}
