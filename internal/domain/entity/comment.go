package entity

import "time"

// Comment is an append-only discussion entry on a justification.
type Comment struct {
	ID              CommentID       `json:"id"`
	JustificationID JustificationID `json:"justification_id"`
	AuthorEmail     string          `json:"author_email"`
	Message         string          `json:"message"`
	IsInternal      bool            `json:"is_internal"`
	CreatedAt       time.Time       `json:"created_at"`
}
