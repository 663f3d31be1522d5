package entity

import "time"

// Justification is a requester's spend justification moving through approval.
type Justification struct {
	ID             JustificationID     `json:"id"`
	Title          string              `json:"title"`
	TypeCode       string              `json:"type_code"`
	Department     string              `json:"department"`
	CostCentre     string              `json:"cost_centre"`
	RequesterEmail string              `json:"requester_email"`
	Urgency        string              `json:"urgency"`
	Description    string              `json:"description"`
	BusinessImpact string              `json:"business_impact,omitempty"`
	Alternatives   string              `json:"alternatives,omitempty"`
	CostEstimate   *float64            `json:"cost_estimate,omitempty"`
	RequiredDate   string              `json:"required_date,omitempty"`
	DynamicValues  map[string]any      `json:"dynamic_values"`
	Attachments    []Attachment        `json:"attachments"`
	Status         JustificationStatus `json:"status"`

	// Version is bumped on every status write and guards compare-and-set updates.
	Version int64 `json:"version"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Attachment references a supporting document stored elsewhere.
type Attachment struct {
	Name        string `json:"name"`
	URL         string `json:"url"`
	ContentType string `json:"content_type,omitempty"`
}

// SpendOrZero returns the cost estimate, treating an absent estimate as zero.
func (j *Justification) SpendOrZero() float64 {
	if j.CostEstimate == nil {
		return 0
	}
	return *j.CostEstimate
}
