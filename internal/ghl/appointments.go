package ghl

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// NewAppointment describes an appointment to create on a calendar.
type NewAppointment struct {
	CalendarID  string
	ContactID   string
	Title       string
	Status      string
	Start       time.Time
	ServiceName string
	Price       decimal.Decimal
	DepositPaid bool
	Notes       string
}

// ListCalendarEvents lists one calendar's appointments starting in [start, end].
func (c *Client) ListCalendarEvents(ctx context.Context, calendarID string, start, end time.Time) ([]Appointment, error) {
	q := url.Values{}
	q.Set("locationId", c.LocationID)
	q.Set("calendarId", calendarID)
	q.Set("startTime", strconv.FormatInt(start.UnixMilli(), 10))
	q.Set("endTime", strconv.FormatInt(end.UnixMilli(), 10))

	var resp struct {
		Events []Appointment `json:"events"`
	}
	if err := c.do(ctx, "calendars.events", http.MethodGet, "/calendars/events", q, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Events, nil
}

// ListContactAppointments lists a contact's appointments. The endpoint has no
// range filter, so results outside [start, end] or with unparseable start
// times are dropped here. A deleted contact has no appointments.
func (c *Client) ListContactAppointments(ctx context.Context, contactID string, start, end time.Time) ([]Appointment, error) {
	var resp struct {
		Events []Appointment `json:"events"`
	}
	path := "/contacts/" + url.PathEscape(contactID) + "/appointments"
	err := c.do(ctx, "contacts.appointments", http.MethodGet, path, nil, nil, &resp)
	if IsNotFound(err) {
		return []Appointment{}, nil
	}
	if err != nil {
		return nil, err
	}

	out := make([]Appointment, 0, len(resp.Events))
	for _, a := range resp.Events {
		t, err := a.Start()
		if err != nil {
			continue
		}
		if t.Before(start) || t.After(end) {
			continue
		}
		out = append(out, a)
	}
	return out, nil
}

// CreateAppointment books an appointment without notifying the contact and
// returns the new appointment id.
func (c *Client) CreateAppointment(ctx context.Context, na NewAppointment) (string, error) {
	status := na.Status
	if status == "" {
		status = StatusNew
	}
	body := map[string]any{
		"calendarId":        na.CalendarID,
		"locationId":        c.LocationID,
		"contactId":         na.ContactID,
		"startTime":         na.Start.UTC().Format(time.RFC3339),
		"endTime":           na.Start.Add(DefaultAppointmentDuration).UTC().Format(time.RFC3339),
		"title":             na.Title,
		"appointmentStatus": status,
		"notes":             BuildNotes(na.ServiceName, na.Price, na.DepositPaid, na.Notes),
		"toNotify":          false,
	}

	var resp struct {
		ID          string `json:"id"`
		Appointment struct {
			ID string `json:"id"`
		} `json:"appointment"`
	}
	const path = "/calendars/events/appointments"
	if err := c.do(ctx, "appointments.create", http.MethodPost, path, nil, body, &resp); err != nil {
		return "", err
	}
	id := resp.ID
	if id == "" {
		id = resp.Appointment.ID
	}
	if id == "" {
		return "", &APIError{Method: http.MethodPost, Path: path, StatusCode: http.StatusOK, Err: errors.New("response carried no appointment id")}
	}
	return id, nil
}
