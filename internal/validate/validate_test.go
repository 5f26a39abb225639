package validate_test

import (
	"strings"
	"testing"

	"github.com/garnizeh/prepcoach/internal/apperr"
	"github.com/garnizeh/prepcoach/internal/validate"
)

type signup struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
	Status   string `json:"status" validate:"omitempty,app_status"`
}

func TestStruct_ReportsJSONFieldNames(t *testing.T) {
	v := validate.New()

	err := v.Struct(signup{Email: "nope", Password: "short", Status: "ghosted"})
	if apperr.KindOf(err) != apperr.KindValidation {
		t.Fatalf("expected validation kind, got %v", err)
	}
	msg := apperr.PublicMessage(err)
	for _, want := range []string{"email: must be a valid email address", "password: must be at least 8 characters long", "status: must be one of"} {
		if !strings.Contains(msg, want) {
			t.Fatalf("message %q missing %q", msg, want)
		}
	}
}

func TestStruct_OK(t *testing.T) {
	v := validate.New()
	if err := v.Struct(signup{Email: "a@b.co", Password: "longenough", Status: "offered"}); err != nil {
		t.Fatalf("expected valid struct, got %v", err)
	}
}
