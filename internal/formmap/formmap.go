// Package formmap turns a submitted form's fields into lead data by matching
// field names against known variants of email, name, phone and company.
package formmap

import (
	"strings"

	"github.com/vincentbai/getracker/internal/models"
)

// Field is one submitted name/value pair. Value is a string for text
// controls; anything else (such as a file) is kept in the raw field set but
// never classified.
type Field struct {
	Name  string
	Value any
}

// Canonical lead fields, in classification order.
const (
	Email   = "email"
	Name    = "name"
	Phone   = "phone"
	Company = "company"
)

var canonicalFields = []string{Email, Name, Phone, Company}

// Variants lists the accepted field names for each canonical field in
// priority order.
var Variants = map[string][]string{
	Email:   {"email", "e-mail", "emailaddress", "email_address", "user_email", "mail"},
	Name:    {"name", "fullname", "full_name", "username", "user_name", "firstname", "first_name"},
	Phone:   {"phone", "telephone", "mobile", "phonenumber", "phone_number", "tel"},
	Company: {"company", "organization", "business", "companyname", "company_name"},
}

var knownNames = func() map[string]bool {
	known := make(map[string]bool)
	for _, variants := range Variants {
		for _, v := range variants {
			known[v] = true
		}
	}
	return known
}()

// IsKnown reports whether name case-insensitively equals any variant.
func IsKnown(name string) bool {
	return knownNames[strings.ToLower(name)]
}

// Result is the outcome of a successful extraction.
type Result struct {
	Lead      models.LeadData
	RawFields map[string]any
}

// Extract classifies fields. It reports false when no email was resolved,
// since a lead without an email is not captured.
func Extract(fields []Field) (Result, bool) {
	lead := models.LeadData{Custom: make(map[string]string)}
	raw := make(map[string]any, len(fields))
	for _, f := range fields {
		raw[f.Name] = f.Value
	}

	for _, canonical := range canonicalFields {
		value, ok := resolve(fields, Variants[canonical])
		if !ok {
			continue
		}
		switch canonical {
		case Email:
			lead.Email = value
		case Name:
			lead.Name = value
		case Phone:
			lead.Phone = value
		case Company:
			lead.Company = value
		}
	}

	for _, f := range fields {
		text, ok := f.Value.(string)
		if !ok || IsKnown(f.Name) {
			continue
		}
		lead.Custom[f.Name] = text
	}

	if lead.Email == "" {
		return Result{}, false
	}
	return Result{Lead: lead, RawFields: raw}, true
}

// resolve finds the value for the first variant present with a non-empty
// text value. Exact names are tried first; a second pass accepts names that
// differ only in case.
func resolve(fields []Field, variants []string) (string, bool) {
	for _, variant := range variants {
		if value, ok := lookupExact(fields, variant); ok {
			return value, true
		}
	}
	for _, variant := range variants {
		if value, ok := lookupFolded(fields, variant); ok {
			return value, true
		}
	}
	return "", false
}

// lookupExact mirrors FormData.get: only the first field named variant is
// considered.
func lookupExact(fields []Field, variant string) (string, bool) {
	for _, f := range fields {
		if f.Name == variant {
			return text(f)
		}
	}
	return "", false
}

// lookupFolded returns the first non-empty text field whose name matches
// variant ignoring case.
func lookupFolded(fields []Field, variant string) (string, bool) {
	for _, f := range fields {
		if strings.ToLower(f.Name) != variant {
			continue
		}
		if value, ok := text(f); ok {
			return value, true
		}
	}
	return "", false
}

func text(f Field) (string, bool) {
	s, ok := f.Value.(string)
	if !ok || s == "" {
		return "", false
	}
	return s, true
}
