package ghl

import (
	"context"
	"net/http"
	"net/url"
)

// ListCalendars returns every calendar of the location.
func (c *Client) ListCalendars(ctx context.Context) ([]Calendar, error) {
	q := url.Values{}
	q.Set("locationId", c.LocationID)

	var resp struct {
		Calendars []Calendar `json:"calendars"`
	}
	if err := c.do(ctx, "calendars.list", http.MethodGet, "/calendars/", q, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Calendars, nil
}
