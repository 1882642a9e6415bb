// Package domain holds the connection application and its load table rows.
package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Section names in form order. Each one is stored as a free-form JSON object.
const (
	SectionApplicantDetails     = "applicant_details"
	SectionGeneralInformation   = "general_information"
	SectionSiteAddress          = "site_address"
	SectionLoadDetails          = "load_details"
	SectionOtherContact         = "other_contact"
	SectionClickQuoteData       = "click_quote_data"
	SectionProjectDetails       = "project_details"
	SectionAutoQuoteEligibility = "auto_quote_eligibility"
	SectionUploadDocs           = "upload_docs"
	SectionSummary              = "summary"
)

// SectionNames lists every application section in column order.
var SectionNames = []string{
	SectionApplicantDetails,
	SectionGeneralInformation,
	SectionSiteAddress,
	SectionLoadDetails,
	SectionOtherContact,
	SectionClickQuoteData,
	SectionProjectDetails,
	SectionAutoQuoteEligibility,
	SectionUploadDocs,
	SectionSummary,
}

// Status is the lifecycle state of an application form.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusSubmitted Status = "submitted"
)

// ErrInvalidStatus is returned by ParseStatus for anything other than draft or submitted.
var ErrInvalidStatus = errors.New("status must be draft or submitted")

// ParseStatus validates s. The empty string is returned as-is so callers can keep the current status.
func ParseStatus(s string) (Status, error) {
	switch st := Status(strings.ToLower(strings.TrimSpace(s))); st {
	case "", StatusDraft, StatusSubmitted:
		return st, nil
	default:
		return "", ErrInvalidStatus
	}
}

var emptyObject = json.RawMessage(`{}`)

// Sections maps section name to its JSON object.
type Sections map[string]json.RawMessage

// Normalize returns a copy with every known section present. Missing or null sections become {}.
// Unknown keys are dropped. A section that is not a JSON object is an error.
func (s Sections) Normalize() (Sections, error) {
	out := make(Sections, len(SectionNames))
	for _, name := range SectionNames {
		raw := bytes.TrimSpace(s[name])
		if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
			out[name] = emptyObject
			continue
		}
		if raw[0] != '{' || !json.Valid(raw) {
			return nil, fmt.Errorf("%s must be a JSON object", name)
		}
		out[name] = append(json.RawMessage(nil), raw...)
	}
	return out, nil
}

// Application is one connection application form.
type Application struct {
	ID        int64
	Sections  Sections
	Status    Status
	CreatedAt time.Time
	UpdatedAt time.Time
}

// MarshalJSON flattens the sections next to the row columns, matching the stored shape.
func (a *Application) MarshalJSON() ([]byte, error) {
	m := make(map[string]any, len(SectionNames)+4)
	for _, name := range SectionNames {
		raw := a.Sections[name]
		if len(raw) == 0 {
			raw = emptyObject
		}
		m[name] = raw
	}
	m["id"] = a.ID
	m["status"] = a.Status
	m["created_at"] = a.CreatedAt
	m["updated_at"] = a.UpdatedAt
	return json.Marshal(m)
}
