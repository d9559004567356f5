package internal

import "time"

// View is a logged countdown page view.
type View struct {
	ID        int64     `json:"id"`
	Target    string    `json:"target"`
	Label     string    `json:"label,omitempty"`
	ViewedAt  time.Time `json:"viewed_at"`
	UserAgent string    `json:"user_agent"`
	IPAddress string    `json:"ip_address"`
}

// TargetStats aggregates views of a single countdown target.
type TargetStats struct {
	Target       string     `json:"target"`
	Views        int64      `json:"views"`
	LastViewedAt *time.Time `json:"last_viewed_at"`
}
