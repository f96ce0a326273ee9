package zendesk

import (
	"context"
	"fmt"
	"net/http"
)

// GetUser reads a user profile.
func (c *Client) GetUser(ctx context.Context, userID int64) (*UserRecord, error) {
	var envelope struct {
		User UserRecord `json:"user"`
	}
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/users/%d.json", userID), nil, &envelope); err != nil {
		return nil, err
	}
	return &envelope.User, nil
}
