package inputval

import "testing"

func TestIsValidEmail(t *testing.T) {
	tests := []struct {
		email string
		want  bool
	}{
		{"user@example.com", true},
		{"user.name@example.com", true},
		{"user+tag@example.com", true},
		{"a@b.co", true},
		{"user@localhost", true},

		{"", false},
		{"   ", false},
		{"user", false},
		{"user@", false},
		{"@example.com", false},
		{".user@example.com", false},
		{"user..name@example.com", false},
		{"User Name <user@example.com>", false},
		{"user @example.com", false},
		{"user@exam ple.com", false},
	}

	for _, tt := range tests {
		t.Run(tt.email, func(t *testing.T) {
			if got := IsValidEmail(tt.email); got != tt.want {
				t.Errorf("IsValidEmail(%q) = %v, want %v", tt.email, got, tt.want)
			}
		})
	}
}

func TestIsValidHTTPURL(t *testing.T) {
	tests := []struct {
		url  string
		want bool
	}{
		{"http://example.com", true},
		{"https://generator.internal:8443/api", true},
		{"  https://example.com  ", true},
		{"", false},
		{"ftp://example.com", false},
		{"example.com", false},
		{"//example.com", false},
		{"not a url", false},
	}
	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			if got := IsValidHTTPURL(tt.url); got != tt.want {
				t.Errorf("IsValidHTTPURL(%q) = %v, want %v", tt.url, got, tt.want)
			}
		})
	}
}

func TestIsValidObjectID(t *testing.T) {
	tests := []struct {
		id   string
		want bool
	}{
		{"507f1f77bcf86cd799439011", true},
		{"  507f1f77bcf86cd799439011  ", true},
		{"", false},
		{"507f1f77bcf86cd79943901", false},
		{"507f1f77bcf86cd79943901g", false},
		{"12345", false},
	}
	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			if got := IsValidObjectID(tt.id); got != tt.want {
				t.Errorf("IsValidObjectID(%q) = %v, want %v", tt.id, got, tt.want)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	type roomInput struct {
		Name     string `validate:"required,max=10" label:"Room name"`
		Email    string `validate:"omitempty,email" label:"Email address"`
		Capacity int    `validate:"gte=0,lte=1000" label:"Capacity"`
	}

	tests := []struct {
		name       string
		input      roomInput
		wantErrors bool
		wantFirst  string
	}{
		{"valid", roomInput{Name: "B-101", Capacity: 30}, false, ""},
		{"missing name", roomInput{Capacity: 30}, true, "Room name is required."},
		{"name too long", roomInput{Name: "Auditorium North", Capacity: 30}, true, "Room name must be at most 10 characters."},
		{"bad email", roomInput{Name: "B-101", Email: "nope"}, true, "A valid email address is required."},
		{"capacity", roomInput{Name: "B-101", Capacity: 5000}, true, "Capacity must be 1000 or less."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := Validate(tt.input)
			if r.HasErrors() != tt.wantErrors {
				t.Fatalf("HasErrors = %v, want %v (%s)", r.HasErrors(), tt.wantErrors, r.All())
			}
			if tt.wantErrors && r.First() != tt.wantFirst {
				t.Errorf("First() = %q, want %q", r.First(), tt.wantFirst)
			}
		})
	}
}

func TestValidate_CustomRules(t *testing.T) {
	type input struct {
		ID       string `validate:"required,objectid" label:"Teacher"`
		URL      string `validate:"omitempty,httpurl" label:"Generator URL"`
		Category string `validate:"required,codecategory" label:"Category"`
		Code     string `validate:"notblank" label:"Code"`
	}

	ok := input{ID: "507f1f77bcf86cd799439011", URL: "https://gen.local", Category: "period", Code: "P1"}
	if r := Validate(ok); r.HasErrors() {
		t.Fatalf("valid input has errors: %s", r.All())
	}

	bad := input{ID: "x", URL: "gen.local", Category: "week", Code: "  "}
	r := Validate(bad)
	fields := r.Fields()
	want := map[string]string{
		"Teacher":       "Teacher is not a valid id.",
		"Generator URL": "Generator URL must be an http or https URL.",
		"Category":      "Category must be day, period or subject_type.",
		"Code":          "Code is required.",
	}
	for k, w := range want {
		if fields[k] != w {
			t.Errorf("field %q = %q, want %q", k, fields[k], w)
		}
	}
}

func TestResult_AllAndFirst(t *testing.T) {
	r := &Result{}
	if r.All() != "" || r.First() != "" {
		t.Error("empty result should render empty")
	}
	r.Errors = []FieldError{{Message: "Error 1"}, {Message: "Error 2"}}
	if r.All() != "Error 1; Error 2" {
		t.Errorf("All() = %q", r.All())
	}
	if r.First() != "Error 1" {
		t.Errorf("First() = %q", r.First())
	}
}
