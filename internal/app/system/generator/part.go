package generator

import (
	"fmt"
	"net/textproto"
	"path/filepath"
	"strings"
)

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func filePartHeader(filename, contentType string) textproto.MIMEHeader {
	name := filepath.Base(filename)
	if name == "." || name == "/" || name == "" {
		name = "timetable"
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, quoteEscaper.Replace(name)))
	h.Set("Content-Type", contentType)
	return h
}
