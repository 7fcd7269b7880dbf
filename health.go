package outfit

import (
	"context"
	"net/http"
)

// Health checks that the backend is up. No session is needed.
func (c *Client) Health(ctx context.Context) (*HealthStatus, error) {
	var status HealthStatus
	if err := c.doJSON(ctx, request{
		method:    http.MethodGet,
		path:      "/api/health",
		endpoint:  "health",
		anonymous: true,
	}, &status); err != nil {
		return nil, err
	}
	return &status, nil
}
