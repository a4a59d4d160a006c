package formmap

import (
	"reflect"
	"testing"

	"github.com/vincentbai/getracker/internal/models"
)

type fileValue struct{ Name string }

func TestExtract(t *testing.T) {
	tests := []struct {
		name     string
		fields   []Field
		wantOK   bool
		wantLead models.LeadData
	}{
		{
			name: "mixed case names and custom field",
			fields: []Field{
				{Name: "Email", Value: "a@b.com"},
				{Name: "FullName", Value: "Jo"},
				{Name: "promo", Value: "X"},
			},
			wantOK: true,
			wantLead: models.LeadData{
				Email:  "a@b.com",
				Name:   "Jo",
				Custom: map[string]string{"promo": "X"},
			},
		},
		{
			name: "all canonical fields",
			fields: []Field{
				{Name: "user_email", Value: "jo@acme.io"},
				{Name: "first_name", Value: "Jo"},
				{Name: "tel", Value: "+1 555 0100"},
				{Name: "organization", Value: "Acme"},
			},
			wantOK: true,
			wantLead: models.LeadData{
				Email:   "jo@acme.io",
				Name:    "Jo",
				Phone:   "+1 555 0100",
				Company: "Acme",
				Custom:  map[string]string{},
			},
		},
		{
			name: "variant priority",
			fields: []Field{
				{Name: "mail", Value: "second@b.com"},
				{Name: "email", Value: "first@b.com"},
				{Name: "username", Value: "jo99"},
				{Name: "name", Value: "Jo"},
			},
			wantOK: true,
			wantLead: models.LeadData{
				Email:  "first@b.com",
				Name:   "Jo",
				Custom: map[string]string{},
			},
		},
		{
			name: "empty variant falls through to next",
			fields: []Field{
				{Name: "email", Value: ""},
				{Name: "e-mail", Value: "jo@b.com"},
			},
			wantOK: true,
			wantLead: models.LeadData{
				Email:  "jo@b.com",
				Custom: map[string]string{},
			},
		},
		{
			name: "exact name beats case-insensitive match",
			fields: []Field{
				{Name: "EMAIL", Value: "upper@b.com"},
				{Name: "mail", Value: "exact@b.com"},
			},
			wantOK: true,
			wantLead: models.LeadData{
				Email:  "exact@b.com",
				Custom: map[string]string{},
			},
		},
		{
			name: "case-insensitive pass skips empty duplicates",
			fields: []Field{
				{Name: "email", Value: ""},
				{Name: "EMAIL", Value: "a@b.com"},
			},
			wantOK: true,
			wantLead: models.LeadData{
				Email:  "a@b.com",
				Custom: map[string]string{},
			},
		},
		{
			name: "no email-like field",
			fields: []Field{
				{Name: "name", Value: "Jo"},
				{Name: "message", Value: "hello"},
			},
			wantOK: false,
		},
		{
			name:   "no fields",
			fields: nil,
			wantOK: false,
		},
		{
			name: "non-text email is ignored",
			fields: []Field{
				{Name: "email", Value: fileValue{Name: "a.txt"}},
			},
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Extract(tt.fields)
			if ok != tt.wantOK {
				t.Fatalf("Extract() ok = %v, want %v", ok, tt.wantOK)
			}
			if !ok {
				return
			}
			if !reflect.DeepEqual(got.Lead, tt.wantLead) {
				t.Errorf("Lead = %+v, want %+v", got.Lead, tt.wantLead)
			}
		})
	}
}

func TestExtractRawFieldsKeepEverything(t *testing.T) {
	attachment := fileValue{Name: "cv.pdf"}
	fields := []Field{
		{Name: "email", Value: "jo@b.com"},
		{Name: "attachment", Value: attachment},
		{Name: "interest", Value: "crm"},
		{Name: "interest", Value: "erp"},
	}

	got, ok := Extract(fields)
	if !ok {
		t.Fatal("Expected a result")
	}

	wantRaw := map[string]any{
		"email":      "jo@b.com",
		"attachment": attachment,
		"interest":   "erp",
	}
	if !reflect.DeepEqual(got.RawFields, wantRaw) {
		t.Errorf("RawFields = %+v, want %+v", got.RawFields, wantRaw)
	}

	if _, ok := got.Lead.Custom["attachment"]; ok {
		t.Error("Expected non-text field to be excluded from custom")
	}
	if got.Lead.Custom["interest"] != "erp" {
		t.Errorf("Expected last duplicate to win in custom, got %q", got.Lead.Custom["interest"])
	}
}

func TestIsKnown(t *testing.T) {
	for _, name := range []string{"email", "E-Mail", "Phone_Number", "COMPANY_NAME", "firstname"} {
		if !IsKnown(name) {
			t.Errorf("Expected %s to be known", name)
		}
	}
	for _, name := range []string{"promo", "message", "last_name", "emails"} {
		if IsKnown(name) {
			t.Errorf("Expected %s to be unknown", name)
		}
	}
}
