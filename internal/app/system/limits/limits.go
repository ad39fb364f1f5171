// Package limits holds request body size caps.
package limits

const (
	// MaxJSONBody caps JSON API request bodies.
	MaxJSONBody = 1 << 20 // 1 MB

	// MaxFormBody caps urlencoded form posts.
	MaxFormBody = 64 << 10 // 64 KB

	// MaxImportFile caps timetable spreadsheets forwarded to the generator.
	MaxImportFile = 20 << 20 // 20 MB
)
