package domain

import "time"

// NewsletterStatus is the lifecycle state of a letter
type NewsletterStatus string

// newsletter lifecycle states. StatusSending is a transient claim held by the
// dispatch engine while a send is in flight, it never survives a dispatch attempt.
const (
	StatusDraft     NewsletterStatus = "draft"
	StatusScheduled NewsletterStatus = "scheduled"
	StatusSending   NewsletterStatus = "sending"
	StatusSent      NewsletterStatus = "sent"
)

// Newsletter represents a dispatchable letter document
type Newsletter struct {
	ID            int64            `json:"id"`
	Title         string           `json:"title"`
	LetterBody    string           `json:"letter_body,omitempty"`
	CuratorNote   string           `json:"curator_note,omitempty"`
	Status        NewsletterStatus `json:"status"`
	ScheduledAt   *time.Time       `json:"scheduled_at,omitempty"`
	SentAt        *time.Time       `json:"sent_at,omitempty"`
	CampaignID    string           `json:"campaign_id,omitempty"` // delivery provider correlation id, set on successful send
	PublishedDate string           `json:"published_date"`
	CreatedAt     time.Time        `json:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at"`
}

// Sent reports whether the letter reached its terminal state
func (n *Newsletter) Sent() bool { return n.Status == StatusSent }

// NewsletterFilter represents filtering criteria for newsletter listing
type NewsletterFilter struct {
	Status NewsletterStatus
	Limit  int
	Offset int
}

// NewsletterStats holds per-status letter counts
type NewsletterStats struct {
	Total     int `json:"total"`
	Draft     int `json:"draft"`
	Scheduled int `json:"scheduled"`
	Sent      int `json:"sent"`
}

// SendResult reports the outcome of a dispatch attempt. For the broadcast mode
// CampaignID carries the provider correlation id; for the personalized fan-out
// mode SentCount and FailedEmails carry per-recipient accounting.
type SendResult struct {
	Success      bool     `json:"success"`
	CampaignID   string   `json:"campaign_id,omitempty"`
	SentCount    int      `json:"sent_count"`
	FailedEmails []string `json:"failed_emails,omitempty"`
	Error        string   `json:"error,omitempty"`
}
