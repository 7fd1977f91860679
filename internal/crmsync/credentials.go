package crmsync

import (
	"context"
	"errors"
	"log"

	"github.com/velvetbrow/studio/internal/store"
)

// LegacySettingsID is the settings row older deployments wrote credentials to.
const LegacySettingsID = "ghl"

// Credential sources reported by Resolve.
const (
	SourceSettings = "settings"
	SourceEnv      = "env"
)

type Credentials struct {
	APIKey     string
	LocationID string
	CalendarID string

	// Source is where the API key came from; SettingsID is set when that was a settings row.
	Source     string
	SettingsID string
}

// Configured reports whether the credentials are enough to call the CRM.
func (c Credentials) Configured() bool {
	return c.APIKey != "" && c.LocationID != ""
}

// CredentialResolver prefers persisted settings over the environment.
type CredentialResolver struct {
	Settings store.CRMSettingsRepository
	Env      Credentials
	Logger   *log.Logger
}

func (r *CredentialResolver) lg() *log.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return log.Default()
}

// Resolve returns the first usable credential set. Settings read failures are
// logged and fall through to the environment; an empty result is not an error.
func (r *CredentialResolver) Resolve(ctx context.Context) (Credentials, error) {
	if err := ctx.Err(); err != nil {
		return Credentials{}, err
	}

	if r.Settings != nil {
		if s := r.lookup("first settings row", func() (*store.CRMSettings, error) { return r.Settings.First(ctx) }); s != nil {
			return r.fromSettings(s), nil
		}
		if s := r.lookup("legacy settings row", func() (*store.CRMSettings, error) { return r.Settings.GetByID(ctx, LegacySettingsID) }); s != nil {
			return r.fromSettings(s), nil
		}
	}

	creds := r.Env
	creds.SettingsID = ""
	creds.Source = ""
	if creds.APIKey != "" {
		creds.Source = SourceEnv
	}
	return creds, nil
}

func (r *CredentialResolver) lookup(what string, fetch func() (*store.CRMSettings, error)) *store.CRMSettings {
	s, err := fetch()
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		r.lg().Printf("[WARN] [crmsync] read %s: %v", what, err)
		return nil
	}
	if s == nil || s.APIKey == "" {
		return nil
	}
	return s
}

// fromSettings fills blank location and calendar ids from the environment.
func (r *CredentialResolver) fromSettings(s *store.CRMSettings) Credentials {
	creds := Credentials{
		APIKey:     s.APIKey,
		LocationID: s.LocationID,
		CalendarID: s.CalendarID,
		Source:     SourceSettings,
		SettingsID: s.ID,
	}
	if creds.LocationID == "" {
		creds.LocationID = r.Env.LocationID
	}
	if creds.CalendarID == "" {
		creds.CalendarID = r.Env.CalendarID
	}
	return creds
}
