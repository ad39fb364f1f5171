// internal/app/features/api/generator.go
package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"strconv"

	"github.com/dalemusser/schedulehub/internal/app/store/audit"
	"github.com/dalemusser/schedulehub/internal/app/system/generator"
	"github.com/dalemusser/schedulehub/internal/app/system/jsonutil"
	"github.com/dalemusser/schedulehub/internal/app/system/limits"
	"github.com/dalemusser/schedulehub/internal/app/system/timeouts"
	"go.uber.org/zap"
)

// Generate forwards a generation request upstream. Every cached timetable
// read is dropped once it succeeds.
func (h *Handler) Generate(w http.ResponseWriter, r *http.Request) {
	var req generator.GenerateRequest
	if err := jsonutil.Decode(w, r, &req); err != nil {
		jsonutil.Error(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Batch())
	defer cancel()

	res, err := h.Gen.Generate(ctx, req)
	if err != nil {
		h.writeErr(w, r, "generate timetables failed", err)
		return
	}
	h.TT.Invalidate()
	h.AuditLog.Schedule(r.Context(), r, audit.EventTimetablesGenerated, actorID(r), nil, map[string]string{
		"created": strconv.Itoa(res.Created),
		"skipped": strconv.Itoa(res.Skipped),
	})
	jsonutil.Write(w, http.StatusOK, res)
}

// Import uploads the multipart field "file" to the generator unchanged.
func (h *Handler) Import(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, limits.MaxImportFile)
	if err := r.ParseMultipartForm(limits.MaxImportFile); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			jsonutil.Error(w, http.StatusRequestEntityTooLarge, "too_large", "The file is too large.")
			return
		}
		jsonutil.Error(w, http.StatusBadRequest, "bad_request", "Expected a multipart upload with a file field.")
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	f, fh, err := r.FormFile("file")
	if err != nil {
		jsonutil.Error(w, http.StatusBadRequest, "missing_file", "Choose a file to import.")
		return
	}
	defer f.Close()

	ct := fh.Header.Get("Content-Type")
	if ct == "" {
		ct = "application/octet-stream"
	}
	name := filepath.Base(fh.Filename)

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Batch())
	defer cancel()

	res, err := h.Gen.Import(ctx, name, ct, f)
	if err != nil {
		h.writeErr(w, r, "import timetables failed", err)
		return
	}
	h.TT.Invalidate()
	h.AuditLog.Schedule(r.Context(), r, audit.EventTimetablesImported, actorID(r), nil, map[string]string{
		"filename": name,
		"imported": strconv.Itoa(res.Imported),
	})
	jsonutil.Write(w, http.StatusOK, res)
}

// Export streams the generator's export back to the client.
func (h *Handler) Export(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Batch())
	defer cancel()

	body, ct, err := h.Gen.Export(ctx)
	if err != nil {
		h.writeErr(w, r, "export timetables failed", err)
		return
	}
	defer body.Close()

	w.Header().Set("Content-Type", ct)
	w.Header().Set("Content-Disposition", `attachment; filename="timetables-export"`)
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	n, err := io.Copy(w, body)
	if err != nil {
		h.Log.Warn("export stream interrupted", zap.Error(err), zap.Int64("bytes", n))
		return
	}
	h.AuditLog.Schedule(r.Context(), r, audit.EventTimetablesExported, actorID(r), nil, map[string]string{
		"bytes": strconv.FormatInt(n, 10),
	})
}
