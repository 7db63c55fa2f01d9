package models

import "time"

// AuditLog records a change made through the dashboard: schedule edits,
// threshold updates, agent registrations and user management.
type AuditLog struct {
	ID         int       `json:"id"`
	ActorID    int       `json:"actor_id"`
	Action     string    `json:"action"`
	TargetType string    `json:"target_type"`
	TargetID   string    `json:"target_id,omitempty"`
	Metadata   string    `json:"metadata,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}
