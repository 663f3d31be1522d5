package entity

import (
	"slices"
	"time"
)

// Notification is an outbox message awaiting delivery to its recipients.
type Notification struct {
	ID         NotificationID `json:"id"`
	Recipients []string       `json:"recipients"`
	Delivered  []string       `json:"delivered,omitempty"`
	Subject    string         `json:"subject"`
	Body       string         `json:"body"`
	Status     string         `json:"status"`
	Attempts   int            `json:"attempts"`
	LastError  string         `json:"last_error,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
	SentAt     *time.Time     `json:"sent_at,omitempty"`
}

// Undelivered returns the recipients not yet reached by an earlier attempt
func (n *Notification) Undelivered() []string {
	out := make([]string, 0, len(n.Recipients))
	for _, r := range n.Recipients {
		if !slices.Contains(n.Delivered, r) {
			out = append(out, r)
		}
	}
	return out
}
