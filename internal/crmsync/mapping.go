package crmsync

import (
	"strings"

	"github.com/velvetbrow/studio/internal/ghl"
	"github.com/velvetbrow/studio/internal/store"
)

const (
	unknownClient  = "Unknown"
	defaultService = "Appointment"
	defaultTime    = "10:00"
)

var crmToLocalStatus = map[string]string{
	ghl.StatusNew:       store.StatusPending,
	ghl.StatusConfirmed: store.StatusConfirmed,
	ghl.StatusShowed:    store.StatusCompleted,
	ghl.StatusNoShow:    store.StatusCancelled,
	ghl.StatusCancelled: store.StatusCancelled,
	ghl.StatusInvalid:   store.StatusCancelled,
}

var localToCRMStatus = map[string]string{
	store.StatusPendingDeposit: ghl.StatusNew,
	store.StatusPending:        ghl.StatusNew,
	store.StatusConfirmed:      ghl.StatusConfirmed,
	store.StatusCompleted:      ghl.StatusShowed,
	store.StatusCancelled:      ghl.StatusCancelled,
}

// LocalStatus maps a CRM appointment status to the local vocabulary.
// Unrecognized values map to pending.
func LocalStatus(crmStatus string) string {
	if s, ok := crmToLocalStatus[strings.ToLower(strings.TrimSpace(crmStatus))]; ok {
		return s
	}
	return store.StatusPending
}

// CRMStatus maps a local status to the CRM vocabulary. Unrecognized values map to new.
func CRMStatus(localStatus string) string {
	if s, ok := localToCRMStatus[localStatus]; ok {
		return s
	}
	return ghl.StatusNew
}

// ServiceFromTitle takes the part of an appointment title before the first hyphen.
func ServiceFromTitle(title string) string {
	service := title
	if i := strings.Index(title, "-"); i >= 0 {
		service = title[:i]
	}
	if service = strings.TrimSpace(service); service != "" {
		return service
	}
	return defaultService
}

func clientName(c *ghl.Contact) string {
	if c == nil {
		return unknownClient
	}
	if name := c.DisplayName(); name != "" {
		return name
	}
	return unknownClient
}

func appointmentTitle(a store.Appointment) string {
	service := strings.TrimSpace(a.ServiceName)
	if service == "" {
		service = defaultService
	}
	return service + " - " + strings.TrimSpace(a.ClientName)
}
