package crmsync

import "errors"

// ErrNotConfigured means no API key and location id could be resolved. No
// CRM call is attempted.
var ErrNotConfigured = errors.New("crm credentials not configured")

// ErrSyncInProgress is returned when a run of the same direction is already
// active in this process.
var ErrSyncInProgress = errors.New("sync already in progress")

// ErrNoCalendar means the location has no calendar to book into.
var ErrNoCalendar = errors.New("no crm calendar available")

// ErrAPIKeyRequired is returned when settings are saved without any API key.
var ErrAPIKeyRequired = errors.New("crm api key is required")
