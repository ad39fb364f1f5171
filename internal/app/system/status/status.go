// Package status holds the lifecycle values shared by catalog records.
package status

const (
	Active   = "active"
	Disabled = "disabled"
)

// IsValid reports whether s is a known status.
func IsValid(s string) bool {
	return s == Active || s == Disabled
}

// Default returns s, or Active when s is empty.
func Default(s string) string {
	if s == "" {
		return Active
	}
	return s
}
