package post

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"
)

func TestParseStatus(t *testing.T) {
	tests := []struct {
		in      string
		want    Status
		wantErr bool
	}{
		{"draft", Draft, false},
		{"published", Published, false},
		{"archived", Draft, true},
		{"", Draft, true},
		{"Published", Draft, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseStatus(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseStatus(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseStatus(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestStatus_JSON(t *testing.T) {
	b, err := json.Marshal(Post{ID: "x", Status: Published})
	if err != nil {
		t.Fatalf("json.Marshal() error: %v", err)
	}

	var got Post
	if err := json.Unmarshal(b, &got); err != nil {
		t.Fatalf("json.Unmarshal() error: %v", err)
	}
	if got.Status != Published {
		t.Errorf("expected published, got %v", got.Status)
	}

	if err := json.Unmarshal([]byte(`{"status":"archived"}`), &got); err == nil {
		t.Error("expected error for unknown status")
	}
}

func TestValidateDraft(t *testing.T) {
	if err := ValidateDraft("Hello"); err != nil {
		t.Errorf("ValidateDraft(\"Hello\") = %v", err)
	}

	err := ValidateDraft("   ")
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if ve.Field != "title" {
		t.Errorf("expected field title, got %q", ve.Field)
	}
}

func TestValidatePublish(t *testing.T) {
	tests := []struct {
		name      string
		title     string
		content   string
		wantField string
	}{
		{"valid", "Hello", "World", ""},
		{"blank title", "", "World", "title"},
		{"blank content", "Hello", " \n\t", "content"},
		{"both blank reports title", "", "", "title"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePublish(tt.title, tt.content)
			if tt.wantField == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			var ve *ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if ve.Field != tt.wantField {
				t.Errorf("expected field %q, got %q", tt.wantField, ve.Field)
			}
		})
	}
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"validation", &ValidationError{Field: "title"}, false},
		{"not found", fmt.Errorf("getting post: %w", ErrNotFound), false},
		{"forbidden", ErrForbidden, false},
		{"pending", ErrIdentityPending, false},
		{"storage", errors.New("database is locked"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsTransient(tt.err); got != tt.want {
				t.Errorf("IsTransient() = %v, want %v", got, tt.want)
			}
		})
	}
}
