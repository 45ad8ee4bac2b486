package session

import (
	"errors"

	"github.com/asmaf9056/afatimachtbot36/internal/domain"
	"github.com/asmaf9056/afatimachtbot36/internal/enrollment"
)

// Snapshot is a read-only view of a session for the UI.
type Snapshot struct {
	State             State                   `json:"state"`
	EnrollmentOffered bool                    `json:"enrollment_offered"`
	Transcript        []domain.Turn           `json:"transcript"`
	Draft             *domain.EnrollmentDraft `json:"draft,omitempty"`
	Confirmation      *domain.Confirmation    `json:"confirmation,omitempty"`
	FieldErrors       []enrollment.FieldError `json:"field_errors,omitempty"`
}

// Snapshot captures the current machine state.
func (m *Machine) Snapshot() Snapshot {
	s := Snapshot{
		State:             m.state,
		EnrollmentOffered: m.offered,
		Transcript:        m.transcript.Turns(),
	}
	if d, ok := m.Draft(); ok {
		s.Draft = &d
	}
	if c, ok := m.Confirmation(); ok {
		s.Confirmation = &c
	}
	var verr *enrollment.ValidationError
	if errors.As(m.LastValidationError(), &verr) {
		s.FieldErrors = verr.Fields
	}
	return s
}
