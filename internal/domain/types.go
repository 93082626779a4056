package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ProjectScale is the exclusive-choice size of the project
type ProjectScale string

const (
	ScaleSingleFacility ProjectScale = "SINGLE_FACILITY"
	ScaleMultiSite      ProjectScale = "MULTI_SITE"
	ScaleNational       ProjectScale = "NATIONAL"
)

// Scales returns every project scale, smallest scope first
func Scales() []ProjectScale {
	return []ProjectScale{ScaleSingleFacility, ScaleMultiSite, ScaleNational}
}

// Valid reports whether s is a known scale
func (s ProjectScale) Valid() bool {
	switch s {
	case ScaleSingleFacility, ScaleMultiSite, ScaleNational:
		return true
	}
	return false
}

// Timeline is the exclusive-choice urgency of the project
type Timeline string

const (
	TimelineImmediate   Timeline = "IMMEDIATE"
	TimelineThisQuarter Timeline = "THIS_QUARTER"
	TimelinePlanning    Timeline = "PLANNING"
)

// Timelines returns every timeline, most urgent first
func Timelines() []Timeline {
	return []Timeline{TimelineImmediate, TimelineThisQuarter, TimelinePlanning}
}

// Valid reports whether t is a known timeline
func (t Timeline) Valid() bool {
	switch t {
	case TimelineImmediate, TimelineThisQuarter, TimelinePlanning:
		return true
	}
	return false
}

// Phase is the submission lifecycle of an inquiry form
type Phase string

const (
	PhaseEditing    Phase = "editing"
	PhaseSubmitting Phase = "submitting"
	PhaseComplete   Phase = "complete"
	PhaseFailed     Phase = "failed"
)

// IsTerminal reports whether no transition leaves p
func (p Phase) IsTerminal() bool {
	return p == PhaseComplete
}

// IdentityField names one of the required contact fields
type IdentityField string

const (
	FieldName         IdentityField = "name"
	FieldOrganization IdentityField = "organization"
	FieldEmail        IdentityField = "email"
)

// IdentityFields returns the contact fields in display order
func IdentityFields() []IdentityField {
	return []IdentityField{FieldName, FieldOrganization, FieldEmail}
}

// Identity holds who is asking
type Identity struct {
	Name         string `json:"name" yaml:"name"`
	Organization string `json:"organization" yaml:"organization"`
	Email        string `json:"email" yaml:"email"`
}

// Get returns the value of field, or "" for an unknown field
func (i Identity) Get(field IdentityField) string {
	switch field {
	case FieldName:
		return i.Name
	case FieldOrganization:
		return i.Organization
	case FieldEmail:
		return i.Email
	}
	return ""
}

// Set overwrites field and reports whether the field is known
func (i *Identity) Set(field IdentityField, value string) bool {
	switch field {
	case FieldName:
		i.Name = value
	case FieldOrganization:
		i.Organization = value
	case FieldEmail:
		i.Email = value
	default:
		return false
	}
	return true
}

// Missing returns the fields that are exactly the empty string
func (i Identity) Missing() []IdentityField {
	var missing []IdentityField
	for _, f := range IdentityFields() {
		if i.Get(f) == "" {
			missing = append(missing, f)
		}
	}
	return missing
}

// Inquiry is the frozen set of answers handed over on submission
type Inquiry struct {
	Source   string       `json:"source,omitempty"`
	Domains  []DomainKey  `json:"domains"`
	Features []string     `json:"features"`
	Scale    ProjectScale `json:"scale"`
	Timeline Timeline     `json:"timeline"`
	Identity Identity     `json:"identity"`
}

// BriefStatus tracks a submitted brief through triage
type BriefStatus string

const (
	StatusNew       BriefStatus = "NEW"
	StatusReviewing BriefStatus = "REVIEWING"
	StatusArchived  BriefStatus = "ARCHIVED"
)

// ErrUnknownStatus is returned when a status string is not a BriefStatus
var ErrUnknownStatus = errors.New("unknown brief status")

// ParseBriefStatus accepts a status in any letter case
func ParseBriefStatus(s string) (BriefStatus, error) {
	switch st := BriefStatus(strings.ToUpper(strings.TrimSpace(s))); st {
	case StatusNew, StatusReviewing, StatusArchived:
		return st, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownStatus, s)
}

// OrgContext is what could be learned about the requesting organization
type OrgContext struct {
	Domain      string `json:"domain"`
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
}

// Brief is a persisted inquiry awaiting an architect
type Brief struct {
	ID             string      `json:"id"`
	CreatedAt      time.Time   `json:"created_at"`
	UpdatedAt      time.Time   `json:"updated_at"`
	Status         BriefStatus `json:"status"`
	Inquiry        Inquiry     `json:"inquiry"`
	Org            *OrgContext `json:"org,omitempty"`
	Recommendation string      `json:"recommendation,omitempty"`
}
