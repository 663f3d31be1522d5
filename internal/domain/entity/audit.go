package entity

import "time"

// AuditLog is an immutable record of one action taken on an entity.
type AuditLog struct {
	ID         AuditID        `json:"id"`
	EntityType string         `json:"entity"`
	EntityID   string         `json:"entity_id"`
	Action     string         `json:"action"`
	ActorEmail string         `json:"actor_email"`
	Details    map[string]any `json:"details"`
	Timestamp  time.Time      `json:"timestamp"`
}
