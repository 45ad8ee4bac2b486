package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/containerd/errdefs"
)

// Course is one of the fixed catalog courses. The zero value is CourseUnselected.
type Course string

const (
	CourseUnselected           Course = ""
	CourseDataScience          Course = "Data Science Bootcamp"
	CourseDataAnalytics        Course = "Data Analytics Bootcamp"
	CourseBusinessIntelligence Course = "Business Intelligence Bootcamp"
	CourseGenAI                Course = "GenAI Bootcamp (Generative AI)"
	CourseUltimatePython       Course = "Ultimate Python Bootcamp"
	CourseSQLZeroToHero        Course = "SQL Zero to Hero"
	CourseExcelForEveryone     Course = "Excel for Everyone"
)

// courseSelectionPlaceholder is the first option of the course select box.
const courseSelectionPlaceholder = "Select a course..."

// Courses lists the selectable courses in catalog order.
var Courses = []Course{
	CourseDataScience,
	CourseDataAnalytics,
	CourseBusinessIntelligence,
	CourseGenAI,
	CourseUltimatePython,
	CourseSQLZeroToHero,
	CourseExcelForEveryone,
}

// Selected reports whether c names a real course.
func (c Course) Selected() bool {
	for _, known := range Courses {
		if c == known {
			return true
		}
	}
	return false
}

// ParseCourse maps a display name to a Course. Empty input and the form placeholder map to
// CourseUnselected.
func ParseCourse(s string) (Course, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, courseSelectionPlaceholder) {
		return CourseUnselected, nil
	}
	for _, c := range Courses {
		if strings.EqualFold(s, string(c)) {
			return c, nil
		}
	}
	return CourseUnselected, fmt.Errorf("unknown course %q: %w", s, errdefs.ErrInvalidArgument)
}

// ExperienceLevel is the self-reported background of an applicant.
type ExperienceLevel string

const (
	ExperienceBeginner     ExperienceLevel = "beginner"
	ExperienceIntermediate ExperienceLevel = "intermediate"
	ExperienceAdvanced     ExperienceLevel = "advanced"
)

// ExperienceLevels lists the levels with their form labels.
var ExperienceLevels = []struct {
	Level ExperienceLevel `json:"level"`
	Label string          `json:"label"`
}{
	{ExperienceBeginner, "Beginner (No prior experience)"},
	{ExperienceIntermediate, "Intermediate (Some experience)"},
	{ExperienceAdvanced, "Advanced (Experienced professional)"},
}

// ParseExperienceLevel accepts the level id or its form label.
func ParseExperienceLevel(s string) (ExperienceLevel, error) {
	s = strings.TrimSpace(s)
	for _, l := range ExperienceLevels {
		if strings.EqualFold(s, string(l.Level)) || strings.EqualFold(s, l.Label) {
			return l.Level, nil
		}
	}
	return "", fmt.Errorf("unknown experience level %q: %w", s, errdefs.ErrInvalidArgument)
}

// EnrollmentDraft is the form in progress.
type EnrollmentDraft struct {
	FullName        string          `json:"full_name" validate:"required"`
	Email           string          `json:"email" validate:"required"`
	WhatsApp        string          `json:"whatsapp" validate:"required"`
	Address         string          `json:"address" validate:"required"`
	Course          Course          `json:"course" validate:"course"`
	ExperienceLevel ExperienceLevel `json:"experience_level"`
	Motivation      string          `json:"motivation,omitempty"`
	AgreedToTerms   bool            `json:"agreed_to_terms" validate:"required"`
}

// NewDraft returns an empty draft with the form defaults.
func NewDraft() EnrollmentDraft {
	return EnrollmentDraft{
		Course:          CourseUnselected,
		ExperienceLevel: ExperienceBeginner,
	}
}

// DraftPatch carries edits to a draft. Nil fields are left untouched.
type DraftPatch struct {
	FullName        *string `json:"full_name,omitempty"`
	Email           *string `json:"email,omitempty"`
	WhatsApp        *string `json:"whatsapp,omitempty"`
	Address         *string `json:"address,omitempty"`
	Course          *string `json:"course,omitempty"`
	ExperienceLevel *string `json:"experience_level,omitempty"`
	Motivation      *string `json:"motivation,omitempty"`
	AgreedToTerms   *bool   `json:"agreed_to_terms,omitempty"`
}

// Apply returns a copy of d with the patch applied. d is not modified, even on error.
func (p DraftPatch) Apply(d EnrollmentDraft) (EnrollmentDraft, error) {
	out := d
	if p.FullName != nil {
		out.FullName = *p.FullName
	}
	if p.Email != nil {
		out.Email = *p.Email
	}
	if p.WhatsApp != nil {
		out.WhatsApp = *p.WhatsApp
	}
	if p.Address != nil {
		out.Address = *p.Address
	}
	if p.Course != nil {
		c, err := ParseCourse(*p.Course)
		if err != nil {
			return d, err
		}
		out.Course = c
	}
	if p.ExperienceLevel != nil {
		l, err := ParseExperienceLevel(*p.ExperienceLevel)
		if err != nil {
			return d, err
		}
		out.ExperienceLevel = l
	}
	if p.Motivation != nil {
		out.Motivation = *p.Motivation
	}
	if p.AgreedToTerms != nil {
		out.AgreedToTerms = *p.AgreedToTerms
	}
	return out, nil
}

// Confirmation is produced once per accepted submission.
type Confirmation struct {
	ID          string    `json:"id"`
	FullName    string    `json:"full_name"`
	Course      Course    `json:"course"`
	WhatsApp    string    `json:"whatsapp"`
	SubmittedAt time.Time `json:"submitted_at"`
	Summary     string    `json:"summary"`
}
