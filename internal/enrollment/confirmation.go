package enrollment

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/asmaf9056/afatimachtbot36/internal/domain"
)

// Confirmer turns a validated draft into a Confirmation.
type Confirmer struct {
	NextSteps    []string
	ContactEmail string
	Now          func() time.Time
	NewID        func() string
}

// NewConfirmer returns a Confirmer using wall-clock time and random UUIDs.
func NewConfirmer(nextSteps []string, contactEmail string) *Confirmer {
	return &Confirmer{
		NextSteps:    nextSteps,
		ContactEmail: contactEmail,
		Now:          time.Now,
		NewID:        func() string { return uuid.NewString() },
	}
}

// Confirm builds the record for d. Name, course and WhatsApp are echoed verbatim.
func (c *Confirmer) Confirm(d domain.EnrollmentDraft) domain.Confirmation {
	conf := domain.Confirmation{
		ID:          c.NewID(),
		FullName:    d.FullName,
		Course:      d.Course,
		WhatsApp:    d.WhatsApp,
		SubmittedAt: c.Now().UTC(),
	}
	conf.Summary = c.summary(conf)
	return conf
}

func (c *Confirmer) summary(conf domain.Confirmation) string {
	var b strings.Builder
	b.WriteString("Enrollment submitted successfully!\n\n")
	fmt.Fprintf(&b, "Thank you %s for enrolling in %s.\n", conf.FullName, conf.Course)
	fmt.Fprintf(&b, "We will contact you on WhatsApp at %s.\n", conf.WhatsApp)
	if len(c.NextSteps) > 0 {
		b.WriteString("\nNext steps:\n")
		for i, step := range c.NextSteps {
			fmt.Fprintf(&b, "%d. %s\n", i+1, step)
		}
	}
	if c.ContactEmail != "" {
		fmt.Fprintf(&b, "\nQuestions? Contact us at %s\n", c.ContactEmail)
	}
	return b.String()
}
