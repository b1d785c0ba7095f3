package lead

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Layouts used by the backend for dates.
const (
	DateLayout     = "2006-01-02"
	DateTimeLayout = "2006-01-02 15:04:05"
)

var timeLayouts = []string{
	DateTimeLayout,
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	DateLayout,
}

// Time is a nullable timestamp that accepts the backend's several layouts.
type Time struct {
	time.Time
}

// ParseTime parses s with any accepted layout.
func ParseTime(s string) (Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Time{}, nil
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return Time{t}, nil
		}
	}
	return Time{}, fmt.Errorf("unrecognised time %q", s)
}

func (t *Time) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		*t = Time{}
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("time must be a string: %w", err)
	}
	parsed, err := ParseTime(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

func (t Time) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.Format(DateTimeLayout))
}

// Format renders layout, or "" for a zero value.
func (t Time) Format(layout string) string {
	if t.IsZero() {
		return ""
	}
	return t.Time.Format(layout)
}

// Lead is a customer inquiry as returned by the leads endpoint.
// Classification codes are always held as integers.
type Lead struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	Email        string `json:"email,omitempty"`
	Phone        string `json:"phone,omitempty"`
	CPF          string `json:"cpf,omitempty"`
	Birthday     Time   `json:"birthday"`
	SendDate     Time   `json:"sendDate"`
	Message      string `json:"message,omitempty"`
	Subject      int    `json:"subject"`
	Status       int    `json:"status"`
	Temperature  int    `json:"temperature"`
	Portal       int    `json:"portal"`
	Vehicle      string `json:"vehicle,omitempty"`
	LicensePlate string `json:"licensePlate,omitempty"`
}

// UnmarshalJSON is the single point where classification codes enter the
// program: each may arrive as an integer or as a symbolic name.
func (l *Lead) UnmarshalJSON(b []byte) error {
	type plain Lead
	var aux struct {
		plain
		Email        *string         `json:"email"`
		Phone        *string         `json:"phone"`
		CPF          *string         `json:"cpf"`
		Message      *string         `json:"message"`
		Vehicle      *string         `json:"vehicle"`
		LicensePlate *string         `json:"licensePlate"`
		Subject      json.RawMessage `json:"subject"`
		Status       json.RawMessage `json:"status"`
		Temperature  json.RawMessage `json:"temperature"`
		Portal       json.RawMessage `json:"portal"`
	}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	out := Lead(aux.plain)
	out.Email = deref(aux.Email)
	out.Phone = deref(aux.Phone)
	out.CPF = deref(aux.CPF)
	out.Message = deref(aux.Message)
	out.Vehicle = deref(aux.Vehicle)
	out.LicensePlate = deref(aux.LicensePlate)

	var err error
	if out.Subject, err = decodeCode(Subject, aux.Subject); err != nil {
		return err
	}
	if out.Status, err = decodeCode(Status, aux.Status); err != nil {
		return err
	}
	if out.Temperature, err = decodeCode(Temperature, aux.Temperature); err != nil {
		return err
	}
	if out.Portal, err = decodeCode(Portal, aux.Portal); err != nil {
		return err
	}
	*l = out
	return nil
}

// decodeCode keeps unknown integers so they render as UnknownLabel; unknown
// symbols are rejected because nothing could display them.
func decodeCode(a *Axis, raw json.RawMessage) (int, error) {
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return 0, nil
	}
	var n int
	if err := json.Unmarshal(raw, &n); err == nil {
		return n, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0, fmt.Errorf("%s: expected integer or string, got %s", a.Name(), string(raw))
	}
	if s == "" {
		return 0, nil
	}
	code, err := a.Parse(s)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", a.Name(), err)
	}
	return code, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// PageInfo is the pagination metadata of a Page.
type PageInfo struct {
	Size          int   `json:"size"`
	Number        int   `json:"number"`
	TotalElements int64 `json:"totalElements"`
	TotalPages    int   `json:"totalPages"`
}

// Page is one server-side page of leads.
type Page struct {
	Content []Lead    `json:"content"`
	Page    *PageInfo `json:"page"`
}

// Validate rejects envelopes missing content or pagination metadata.
func (p *Page) Validate() error {
	if p.Content == nil {
		return fmt.Errorf("page envelope missing content")
	}
	if p.Page == nil {
		return fmt.Errorf("page envelope missing page metadata")
	}
	if p.Page.TotalPages < 0 {
		return fmt.Errorf("page envelope has negative totalPages")
	}
	return nil
}

// TotalPages returns the page count, zero when metadata is missing.
func (p *Page) TotalPages() int {
	if p == nil || p.Page == nil {
		return 0
	}
	return p.Page.TotalPages
}
