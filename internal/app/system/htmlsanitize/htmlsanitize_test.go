package htmlsanitize_test

import (
	"html/template"
	"strings"
	"testing"

	"github.com/dalemusser/schedulehub/internal/app/system/htmlsanitize"
)

func TestSanitize(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"empty", "", ""},
		{"plain", "Hello, World!", "Hello, World!"},
		{"safe markup", "<p><strong>Bold</strong> and <em>italic</em></p>", "<p><strong>Bold</strong> and <em>italic</em></p>"},
		{"script removed", "<p>Hello</p><script>alert('xss')</script>", "<p>Hello</p>"},
		{"code block", "<pre><code>x := 1</code></pre>", "<pre><code>x := 1</code></pre>"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := htmlsanitize.Sanitize(tt.input); got != tt.want {
				t.Errorf("Sanitize(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestSanitize_RemovesDangerousAttributes(t *testing.T) {
	for _, in := range []string{
		`<a href="javascript:alert('xss')">Click</a>`,
		`<img src="x" onerror="alert('xss')">`,
		`<form action="/submit"><input type="text" name="data"></form>`,
	} {
		got := htmlsanitize.Sanitize(in)
		for _, bad := range []string{"javascript:", "onerror", "<form", "<input"} {
			if strings.Contains(got, bad) {
				t.Errorf("Sanitize(%q) = %q still contains %q", in, got, bad)
			}
		}
	}
}

func TestStripTags(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"", ""},
		{"  Need room B-204 on Tuesday  ", "Need room B-204 on Tuesday"},
		{"<b>Lab</b> clash<script>x()</script>", "Lab clash"},
		{"Math & Physics", "Math & Physics"},
		{`Teacher's "office" hours`, `Teacher's "office" hours`},
	}
	for _, tt := range tests {
		if got := htmlsanitize.StripTags(tt.input); got != tt.want {
			t.Errorf("StripTags(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestIsPlainText(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"", true},
		{"Hello", true},
		{"5 < 10", true},
		{"5 > 3", true},
		{"<p>Hi</p>", false},
	}
	for _, tt := range tests {
		if got := htmlsanitize.IsPlainText(tt.input); got != tt.want {
			t.Errorf("IsPlainText(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestPlainTextToHTML(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"", ""},
		{"Hello", "<p>Hello</p>"},
		{"Line 1\nLine 2", "<p>Line 1<br>Line 2</p>"},
		{"A & B", "<p>A &amp; B</p>"},
	}
	for _, tt := range tests {
		if got := htmlsanitize.PlainTextToHTML(tt.input); got != tt.want {
			t.Errorf("PlainTextToHTML(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
	if got := htmlsanitize.PlainTextToHTML("<script>"); strings.Contains(got, "<script>") {
		t.Errorf("markup not escaped: %q", got)
	}
}

func TestPrepareForDisplay(t *testing.T) {
	tests := []struct {
		input string
		want  template.HTML
	}{
		{"", ""},
		{"Swap with Friday", "<p>Swap with Friday</p>"},
		{"Line 1\nLine 2", "<p>Line 1<br>Line 2</p>"},
		{"<p>Hello</p><script>alert('xss')</script>", "<p>Hello</p>"},
	}
	for _, tt := range tests {
		if got := htmlsanitize.PrepareForDisplay(tt.input); got != tt.want {
			t.Errorf("PrepareForDisplay(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}
