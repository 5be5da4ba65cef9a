package api

import (
	"context"
	"time"
)

// SessionStartLimit is the remaining Identify budget of the application.
type SessionStartLimit struct {
	Total          int   `json:"total"`
	Remaining      int   `json:"remaining"`
	ResetAfter     int64 `json:"reset_after"` // milliseconds
	MaxConcurrency int   `json:"max_concurrency"`
}

// ResetIn returns ResetAfter as a duration.
func (l SessionStartLimit) ResetIn() time.Duration {
	return time.Duration(l.ResetAfter) * time.Millisecond
}

// GatewayInfo is the response of GET /gateway/bot.
type GatewayInfo struct {
	URL               string            `json:"url"`
	Shards            int               `json:"shards"`
	SessionStartLimit SessionStartLimit `json:"session_start_limit"`
}

// GetGatewayInfo returns the gateway URL, the recommended shard count and the
// session start limit.
func (c *Client) GetGatewayInfo(ctx context.Context) (GatewayInfo, error) {
	var info GatewayInfo
	if err := c.get(ctx, "/gateway/bot", nil, &info); err != nil {
		return GatewayInfo{}, err
	}
	if info.SessionStartLimit.MaxConcurrency < 1 {
		info.SessionStartLimit.MaxConcurrency = 1
	}
	return info, nil
}
