// Package enrollment validates submitted drafts and builds the confirmation record.
package enrollment

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/containerd/errdefs"
	"github.com/go-playground/validator/v10"

	"github.com/asmaf9056/afatimachtbot36/internal/domain"
)

// FieldError describes one failing form field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError is returned when a submission violates the draft invariant.
// It wraps errdefs.ErrInvalidArgument.
type ValidationError struct {
	Fields []FieldError `json:"fields"`
}

func (e *ValidationError) Error() string {
	names := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		names = append(names, f.Field)
	}
	return fmt.Sprintf("please fill in all required fields and agree to the terms (%s)", strings.Join(names, ", "))
}

func (e *ValidationError) Unwrap() error { return errdefs.ErrInvalidArgument }

var fieldMessages = map[string]string{
	"full_name":       "Full name is required",
	"email":           "Email address is required",
	"whatsapp":        "WhatsApp number is required",
	"address":         "Address is required",
	"course":          "Please select a course",
	"agreed_to_terms": "You must agree to the terms and conditions",
}

// Validator checks drafts against the submission invariant.
type Validator struct {
	v *validator.Validate
}

// NewValidator builds a validator with the course rule registered.
func NewValidator() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	// Registration only fails for empty tags or nil funcs.
	_ = v.RegisterValidation("course", func(fl validator.FieldLevel) bool {
		return domain.Course(fl.Field().String()).Selected()
	})
	return &Validator{v: v}
}

// Validate returns nil when d may be submitted and a *ValidationError otherwise.
// Contact fields made only of whitespace count as empty.
func (val *Validator) Validate(d domain.EnrollmentDraft) error {
	d.FullName = strings.TrimSpace(d.FullName)
	d.Email = strings.TrimSpace(d.Email)
	d.WhatsApp = strings.TrimSpace(d.WhatsApp)
	d.Address = strings.TrimSpace(d.Address)

	err := val.v.Struct(d)
	if err == nil {
		return nil
	}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return fmt.Errorf("validate draft: %w", err)
	}
	out := &ValidationError{Fields: make([]FieldError, 0, len(verrs))}
	for _, fe := range verrs {
		msg, ok := fieldMessages[fe.Field()]
		if !ok {
			msg = fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag())
		}
		out.Fields = append(out.Fields, FieldError{Field: fe.Field(), Message: msg})
	}
	return out
}
