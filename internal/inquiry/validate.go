package inquiry

import (
	"net/mail"
	"sort"
	"strings"

	"github.com/trigonal/intake/internal/domain"
)

// FieldErrors maps a contact field to what is wrong with it
type FieldErrors map[domain.IdentityField]string

func (e FieldErrors) Error() string {
	parts := make([]string, 0, len(e))
	for field, msg := range e {
		parts = append(parts, string(field)+": "+msg)
	}
	sort.Strings(parts)
	return "invalid inquiry: " + strings.Join(parts, "; ")
}

// Validate reports per-field problems with the contact details. Unlike
// Submit it also rejects blank values and malformed e-mail addresses.
func (f *Form) Validate() FieldErrors {
	f.mu.Lock()
	id := f.identity
	f.mu.Unlock()
	return ValidateIdentity(id)
}

// ValidateIdentity returns nil when id is complete and well formed
func ValidateIdentity(id domain.Identity) FieldErrors {
	errs := FieldErrors{}
	if strings.TrimSpace(id.Name) == "" {
		errs[domain.FieldName] = "full name is required"
	}
	if strings.TrimSpace(id.Organization) == "" {
		errs[domain.FieldOrganization] = "organization name is required"
	}
	switch email := strings.TrimSpace(id.Email); {
	case email == "":
		errs[domain.FieldEmail] = "email is required"
	case !validEmail(email):
		errs[domain.FieldEmail] = "valid email is required"
	}
	if len(errs) == 0 {
		return nil
	}
	return errs
}

// validEmail accepts a bare addr-spec, not "Name <addr>"
func validEmail(s string) bool {
	addr, err := mail.ParseAddress(s)
	return err == nil && addr.Address == s && addr.Name == ""
}
