package api

import (
	"context"
	"net/http"

	"github.com/nilcar/leads-console/internal/lead"
)

// ListLeads fetches one page of leads for q.
func (c *Client) ListLeads(ctx context.Context, q lead.Query) (*lead.Page, error) {
	var page lead.Page
	if err := c.do(ctx, http.MethodGet, "/leads", q.Values(), nil, &page); err != nil {
		return nil, err
	}
	if err := page.Validate(); err != nil {
		return nil, &DecodeError{Endpoint: "GET /leads", Err: err}
	}
	return &page, nil
}
