// Package session holds per-tab conversation state: the transcript, the enrollment intent flag and
// the enrollment form state machine, plus the registry that owns live sessions.
package session

import (
	"errors"
	"fmt"
	"strings"

	"github.com/containerd/errdefs"

	"github.com/asmaf9056/afatimachtbot36/internal/domain"
)

// State is the form state of a session.
type State string

const (
	StateIdle             State = "idle"
	StateFormOpen         State = "form_open"
	StateSubmittedValid   State = "submitted_valid"
	StateSubmittedInvalid State = "submitted_invalid"
)

// Event names, used in errors, logs and metrics.
const (
	EventUtterance = "utterance"
	EventOpen      = "open"
	EventEdit      = "edit"
	EventSubmit    = "submit"
	EventClose     = "close"
	EventReset     = "reset"
)

// Validator checks a draft before it is accepted.
type Validator interface {
	Validate(d domain.EnrollmentDraft) error
}

// Confirmer builds the record for an accepted draft.
type Confirmer interface {
	Confirm(d domain.EnrollmentDraft) domain.Confirmation
}

// Machine is the state of one session. It is not safe for concurrent use; the registry
// serializes access.
type Machine struct {
	state        State
	transcript   domain.Transcript
	offered      bool
	draft        domain.EnrollmentDraft
	confirmation *domain.Confirmation
	lastErr      error

	validator Validator
	confirmer Confirmer
}

// NewMachine returns a machine in StateIdle with an empty transcript.
func NewMachine(v Validator, c Confirmer) *Machine {
	return &Machine{state: StateIdle, validator: v, confirmer: c}
}

// State returns the current form state.
func (m *Machine) State() State { return m.state }

// EnrollmentOffered reports whether the latest utterance showed enrollment intent.
func (m *Machine) EnrollmentOffered() bool { return m.offered }

// Turns returns a copy of the transcript.
func (m *Machine) Turns() []domain.Turn { return m.transcript.Turns() }

// Draft returns the form contents and whether a form is present.
func (m *Machine) Draft() (domain.EnrollmentDraft, bool) {
	return m.draft, m.state != StateIdle
}

// Confirmation returns the record of the accepted submission, if any.
func (m *Machine) Confirmation() (domain.Confirmation, bool) {
	if m.confirmation == nil {
		return domain.Confirmation{}, false
	}
	return *m.confirmation, true
}

func illegal(event string, s State) error {
	return fmt.Errorf("cannot %s in state %s: %w", event, s, errdefs.ErrFailedPrecondition)
}

// AddUserTurn appends the visitor's utterance. Surrounding whitespace is trimmed; empty input is
// rejected and leaves the machine untouched. Utterances are accepted in every state.
func (m *Machine) AddUserTurn(text string) (domain.Turn, error) {
	t, err := domain.NewTurn(domain.RoleUser, strings.TrimSpace(text))
	if err != nil {
		return domain.Turn{}, err
	}
	m.transcript.Append(t)
	return t, nil
}

// AddAssistantTurn appends the reply to the preceding utterance and records whether that
// utterance carried enrollment intent.
func (m *Machine) AddAssistantTurn(text string, offered bool) (domain.Turn, error) {
	t, err := domain.NewTurn(domain.RoleAssistant, text)
	if err != nil {
		return domain.Turn{}, err
	}
	m.transcript.Append(t)
	m.offered = offered
	return t, nil
}

// Open shows a fresh form. It requires StateIdle and a prior enrollment intent.
func (m *Machine) Open() error {
	if m.state != StateIdle {
		return fmt.Errorf("enrollment form already shown: %w", errdefs.ErrConflict)
	}
	if !m.offered {
		return fmt.Errorf("enrollment not offered yet: %w", errdefs.ErrFailedPrecondition)
	}
	m.state = StateFormOpen
	m.draft = domain.NewDraft()
	m.confirmation = nil
	m.lastErr = nil
	return nil
}

// Edit applies p to the draft. Invalid field values are rejected and the draft is unchanged.
func (m *Machine) Edit(p domain.DraftPatch) error {
	if m.state != StateFormOpen && m.state != StateSubmittedInvalid {
		return illegal(EventEdit, m.state)
	}
	d, err := p.Apply(m.draft)
	if err != nil {
		return err
	}
	m.draft = d
	return nil
}

// Submit validates the draft. On success the draft is frozen and a confirmation is produced;
// otherwise the machine moves to StateSubmittedInvalid, keeps the draft and returns the
// validation error.
func (m *Machine) Submit() (domain.Confirmation, error) {
	if m.state != StateFormOpen && m.state != StateSubmittedInvalid {
		return domain.Confirmation{}, illegal(EventSubmit, m.state)
	}
	if err := m.validator.Validate(m.draft); err != nil {
		if !errdefs.IsInvalidArgument(err) {
			return domain.Confirmation{}, err
		}
		m.state = StateSubmittedInvalid
		m.lastErr = err
		return domain.Confirmation{}, err
	}
	conf := m.confirmer.Confirm(m.draft)
	m.state = StateSubmittedValid
	m.confirmation = &conf
	m.lastErr = nil
	return conf, nil
}

// Close hides the form and discards the draft. Closing while idle does nothing.
func (m *Machine) Close() {
	m.state = StateIdle
	m.draft = domain.EnrollmentDraft{}
	m.confirmation = nil
	m.lastErr = nil
}

// LastValidationError returns the error of the last rejected submission while the machine is in
// StateSubmittedInvalid.
func (m *Machine) LastValidationError() error {
	if m.state != StateSubmittedInvalid {
		return nil
	}
	return m.lastErr
}

// IsIllegalTransition reports whether err was caused by an event the current state does not accept.
func IsIllegalTransition(err error) bool {
	return errors.Is(err, errdefs.ErrFailedPrecondition) || errors.Is(err, errdefs.ErrConflict)
}
