package service

import (
	"errors"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
	"github.com/smallbiznis/floorquote/internal/lead/domain"
)

var validate = validator.New()

type leadInput struct {
	FirstName string `validate:"required,max=100"`
	LastName  string `validate:"max=100"`
	Email     string `validate:"required,email,max=254"`
	Phone     string `validate:"required,e164"`
	Brand     string `validate:"max=100"`
	Timeline  string `validate:"required,max=64"`
}

func validateLead(in leadInput) error {
	err := validate.Struct(in)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err
	}
	switch verrs[0].Field() {
	case "FirstName", "LastName":
		return domain.ErrInvalidName
	case "Email":
		return domain.ErrInvalidEmail
	case "Phone":
		return domain.ErrInvalidPhone
	case "Brand":
		return domain.ErrInvalidBrand
	default:
		return domain.ErrInvalidTimeline
	}
}

// normalizePhone returns a North American number in E.164 form. Numbers
// already carrying a country code are kept as dialled.
func normalizePhone(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	international := strings.HasPrefix(raw, "+")
	digits := strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) {
			return r
		}
		return -1
	}, raw)

	switch {
	case international:
		return "+" + digits
	case len(digits) == 10:
		return "+1" + digits
	case len(digits) == 11 && digits[0] == '1':
		return "+" + digits
	default:
		return digits
	}
}

func normalizeTimeline(raw string) string {
	raw = strings.ToLower(strings.TrimSpace(raw))
	return strings.Join(strings.FieldsFunc(raw, func(r rune) bool {
		return r == ' ' || r == '-' || r == '_'
	}), "_")
}
