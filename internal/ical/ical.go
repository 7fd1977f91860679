// Package ical renders booking confirmations as iCalendar documents.
package ical

import (
	"crypto/sha256"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/velvetbrow/studio/internal/store"
)

const (
	prodID          = "-//Velvet Brow Studio//Bookings//EN"
	defaultDuration = 3 * time.Hour
	defaultTime     = "10:00"
	maxLineOctets   = 75
)

// EventOptions holds optional VEVENT properties.
type EventOptions struct {
	Location  string
	Organizer string
	// Duration overrides the default three hour slot.
	Duration time.Duration
	// Reminders are minutes before the start.
	Reminders []int
	Now       time.Time
}

// StartTime interprets the record's local date and time in loc. A blank time
// defaults to 10:00.
func StartTime(a store.Appointment, loc *time.Location) (time.Time, error) {
	t := strings.TrimSpace(a.Time)
	if t == "" {
		t = defaultTime
	}
	if loc == nil {
		loc = time.UTC
	}
	return time.ParseInLocation("2006-01-02 15:04", strings.TrimSpace(a.Date)+" "+t, loc)
}

// UID is stable per record so re-downloading replaces the calendar entry.
func UID(a store.Appointment) string {
	h := sha256.Sum256([]byte(a.Collection + "/" + a.ID))
	return fmt.Sprintf("%x@velvetbrow", h[:12])
}

// BuildAppointment constructs a single-event VCALENDAR for the record.
func BuildAppointment(a store.Appointment, loc *time.Location, opts *EventOptions) (string, error) {
	start, err := StartTime(a, loc)
	if err != nil {
		return "", fmt.Errorf("appointment %s/%s has invalid date %q %q: %w", a.Collection, a.ID, a.Date, a.Time, err)
	}
	if opts == nil {
		opts = &EventOptions{}
	}
	duration := opts.Duration
	if duration <= 0 {
		duration = defaultDuration
	}
	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}

	summary := strings.TrimSpace(a.ServiceName)
	if summary == "" {
		summary = "Appointment"
	}

	var lines []string
	lines = append(lines, "UID:"+UID(a))
	lines = append(lines, "DTSTAMP:"+formatUTC(now))
	lines = append(lines, "DTSTART:"+formatUTC(start))
	lines = append(lines, "DTEND:"+formatUTC(start.Add(duration)))
	lines = append(lines, "SUMMARY:"+EscapeValue(summary))
	if loc := sanitizeText(opts.Location); loc != "" {
		lines = append(lines, "LOCATION:"+EscapeValue(loc))
	}
	if desc := description(a); desc != "" {
		lines = append(lines, "DESCRIPTION:"+EscapeValue(desc))
	}
	lines = append(lines, "STATUS:"+eventStatus(a.Status))
	if line := mailtoLine("ORGANIZER", opts.Organizer); line != "" {
		lines = append(lines, line)
	}
	if a.ClientEmail != "" {
		if line := mailtoLine("ATTENDEE", fmt.Sprintf("%s <%s>", a.ClientName, a.ClientEmail)); line != "" {
			lines = append(lines, line)
		}
	}
	for _, minutes := range opts.Reminders {
		if minutes < 0 {
			continue
		}
		lines = append(lines,
			"BEGIN:VALARM",
			"ACTION:DISPLAY",
			"DESCRIPTION:Reminder",
			fmt.Sprintf("TRIGGER:-PT%dM", minutes),
			"END:VALARM",
		)
	}

	var sb strings.Builder
	sb.WriteString("BEGIN:VCALENDAR\r\n")
	sb.WriteString("VERSION:2.0\r\n")
	sb.WriteString("PRODID:" + prodID + "\r\n")
	sb.WriteString("METHOD:PUBLISH\r\n")
	sb.WriteString("BEGIN:VEVENT\r\n")
	for _, line := range lines {
		sb.WriteString(foldLine(line))
	}
	sb.WriteString("END:VEVENT\r\n")
	sb.WriteString("END:VCALENDAR\r\n")
	return sb.String(), nil
}

// Filename is the download name for the record's confirmation.
func Filename(a store.Appointment) string {
	date := strings.ReplaceAll(strings.TrimSpace(a.Date), "-", "")
	if date == "" {
		date = "appointment"
	}
	return "velvetbrow-" + date + ".ics"
}

func description(a store.Appointment) string {
	var parts []string
	if a.ClientName != "" {
		parts = append(parts, "Client: "+a.ClientName)
	}
	if !a.Price.IsZero() {
		parts = append(parts, "Price: $"+a.Price.StringFixedBank(2))
	}
	if a.DepositPaid {
		parts = append(parts, "Deposit: Paid")
	} else if a.Status == store.StatusPendingDeposit {
		parts = append(parts, "Deposit: Pending")
	}
	return sanitizeText(strings.Join(parts, "\n"))
}

func eventStatus(status string) string {
	switch status {
	case store.StatusCancelled:
		return "CANCELLED"
	case store.StatusConfirmed, store.StatusCompleted:
		return "CONFIRMED"
	default:
		return "TENTATIVE"
	}
}

func formatUTC(t time.Time) string {
	return t.UTC().Format("20060102T150405Z")
}

func mailtoLine(prop, value string) string {
	name, email := parseNameEmail(value)
	if email == "" || strings.ContainsAny(email, "\r\n") {
		return ""
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address == "" {
		return ""
	}
	line := prop
	if safeName := sanitizeText(name); safeName != "" {
		line += ";CN=" + EscapeValue(safeName)
	}
	return line + ":mailto:" + addr.Address
}

func parseNameEmail(value string) (name, email string) {
	value = strings.TrimSpace(value)
	if lt := strings.Index(value, "<"); lt != -1 {
		if gt := strings.Index(value, ">"); gt > lt {
			return strings.TrimSpace(value[:lt]), strings.TrimSpace(value[lt+1 : gt])
		}
	}
	return "", value
}

func sanitizeText(value string) string {
	value = strings.TrimSpace(value)
	value = strings.ReplaceAll(value, "\r\n", "\n")
	value = strings.ReplaceAll(value, "\r", "\n")
	for _, r := range value {
		if r == '\n' || r == '\t' {
			continue
		}
		if r < 0x20 || r == 0x7f {
			return ""
		}
	}
	return value
}

// EscapeValue escapes special characters for iCalendar TEXT values.
func EscapeValue(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, ";", "\\;")
	s = strings.ReplaceAll(s, ",", "\\,")
	s = strings.ReplaceAll(s, "\n", "\\n")
	return s
}

// foldLine splits content lines longer than 75 octets, never inside a rune.
func foldLine(line string) string {
	if len(line) <= maxLineOctets {
		return line + "\r\n"
	}
	var sb strings.Builder
	limit := maxLineOctets
	width := 0
	for _, r := range line {
		n := len(string(r))
		if width+n > limit {
			sb.WriteString("\r\n ")
			width = 0
			limit = maxLineOctets - 1
		}
		sb.WriteRune(r)
		width += n
	}
	sb.WriteString("\r\n")
	return sb.String()
}
