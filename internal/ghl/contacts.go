package ghl

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
)

// SourceTag marks contacts created by the booking sync.
const SourceTag = "website-sync"

type NewContact struct {
	Name  string
	Email string
	Phone string
}

// SearchContacts runs a free-text contact search (email or phone).
func (c *Client) SearchContacts(ctx context.Context, query string) ([]Contact, error) {
	q := url.Values{}
	q.Set("locationId", c.LocationID)
	q.Set("query", query)

	var resp struct {
		Contacts []Contact `json:"contacts"`
	}
	if err := c.do(ctx, "contacts.search", http.MethodGet, "/contacts/", q, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Contacts, nil
}

// CreateContact creates a contact and returns its id.
func (c *Client) CreateContact(ctx context.Context, nc NewContact) (string, error) {
	first, last := splitName(nc.Name)
	body := map[string]any{
		"firstName":  first,
		"lastName":   last,
		"locationId": c.LocationID,
		"source":     SourceTag,
	}
	if nc.Email != "" {
		body["email"] = nc.Email
	}
	if nc.Phone != "" {
		body["phone"] = nc.Phone
	}

	var resp struct {
		Contact Contact `json:"contact"`
	}
	if err := c.do(ctx, "contacts.create", http.MethodPost, "/contacts/", nil, body, &resp); err != nil {
		return "", err
	}
	if resp.Contact.ID == "" {
		return "", &APIError{Method: http.MethodPost, Path: "/contacts/", StatusCode: http.StatusOK, Err: errors.New("response carried no contact id")}
	}
	return resp.Contact.ID, nil
}

// GetContact fetches one contact. A missing contact is (nil, nil).
func (c *Client) GetContact(ctx context.Context, id string) (*Contact, error) {
	var resp struct {
		Contact Contact `json:"contact"`
	}
	err := c.do(ctx, "contacts.get", http.MethodGet, "/contacts/"+url.PathEscape(id), nil, nil, &resp)
	if IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &resp.Contact, nil
}

func splitName(name string) (first, last string) {
	parts := strings.Fields(name)
	switch len(parts) {
	case 0:
		return "", ""
	case 1:
		return parts[0], ""
	default:
		return parts[0], strings.Join(parts[1:], " ")
	}
}
