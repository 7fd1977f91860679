package ghl

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// Appointment statuses in the CRM's vocabulary.
const (
	StatusNew       = "new"
	StatusConfirmed = "confirmed"
	StatusShowed    = "showed"
	StatusNoShow    = "noshow"
	StatusCancelled = "cancelled"
	StatusInvalid   = "invalid"
)

type Contact struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
}

// DisplayName prefers the full name field, then first and last name joined.
// It returns "" when the contact carries no name at all.
func (c Contact) DisplayName() string {
	if name := strings.TrimSpace(c.Name); name != "" {
		return name
	}
	return strings.TrimSpace(strings.TrimSpace(c.FirstName) + " " + strings.TrimSpace(c.LastName))
}

type Calendar struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Appointment is a calendar event as returned by both the calendar events and
// the contact appointments endpoints. StartTime and EndTime keep the raw
// timestamp text; use Start and End to parse them.
type Appointment struct {
	ID         string `json:"id"`
	CalendarID string `json:"calendarId"`
	ContactID  string `json:"contactId"`
	Title      string `json:"title"`
	Status     string `json:"appointmentStatus"`
	StartTime  string `json:"startTime"`
	EndTime    string `json:"endTime"`
	Notes      string `json:"notes"`
}

// UnmarshalJSON accepts the misspelled appoinmentStatus key some endpoints
// emit, preferring the correct spelling, and numeric epoch-millisecond times.
func (a *Appointment) UnmarshalJSON(data []byte) error {
	var raw struct {
		ID                string          `json:"id"`
		CalendarID        string          `json:"calendarId"`
		ContactID         string          `json:"contactId"`
		Title             string          `json:"title"`
		AppointmentStatus string          `json:"appointmentStatus"`
		AppoinmentStatus  string          `json:"appoinmentStatus"`
		StartTime         json.RawMessage `json:"startTime"`
		EndTime           json.RawMessage `json:"endTime"`
		Notes             string          `json:"notes"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*a = Appointment{
		ID:         raw.ID,
		CalendarID: raw.CalendarID,
		ContactID:  raw.ContactID,
		Title:      raw.Title,
		Status:     raw.AppointmentStatus,
		Notes:      raw.Notes,
	}
	if a.Status == "" {
		a.Status = raw.AppoinmentStatus
	}

	var err error
	if a.StartTime, err = timeText(raw.StartTime); err != nil {
		return err
	}
	if a.EndTime, err = timeText(raw.EndTime); err != nil {
		return err
	}
	return nil
}

func timeText(raw json.RawMessage) (string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", nil
	}
	if raw[0] == '"' {
		var s string
		err := json.Unmarshal(raw, &s)
		return s, err
	}
	ms, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil {
		return "", err
	}
	return time.UnixMilli(ms).UTC().Format(time.RFC3339Nano), nil
}

// Start parses StartTime.
func (a Appointment) Start() (time.Time, error) { return ParseTime(a.StartTime) }

// End parses EndTime.
func (a Appointment) End() (time.Time, error) { return ParseTime(a.EndTime) }
