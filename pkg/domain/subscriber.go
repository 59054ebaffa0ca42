package domain

import "time"

// SubscriberStatus is the subscription state of a recipient
type SubscriberStatus string

const (
	SubscriberActive       SubscriberStatus = "active"
	SubscriberUnsubscribed SubscriberStatus = "unsubscribed"
	SubscriberBounced      SubscriberStatus = "bounced"
)

// Subscriber represents a newsletter recipient. The record is mirrored into the
// delivery provider's list, the mirror is eventually consistent.
type Subscriber struct {
	ID              int64            `json:"id"`
	Email           string           `json:"email"`
	Name            string           `json:"name,omitempty"`
	Phone           string           `json:"phone,omitempty"`
	Company         string           `json:"company,omitempty"`
	Position        string           `json:"position,omitempty"`
	Status          SubscriberStatus `json:"status"`
	PrivacyAgreed   bool             `json:"privacy_agreed"`
	PrivacyAgreedAt *time.Time       `json:"privacy_agreed_at,omitempty"`
	SubscribedAt    time.Time        `json:"subscribed_at"`
	UpdatedAt       time.Time        `json:"updated_at"`
}

// SubscriberFilter represents filtering criteria for subscriber listing
type SubscriberFilter struct {
	Status SubscriberStatus
	Search string // matches email, name or company
	Limit  int
	Offset int
}

// SubscriberStats holds per-status subscriber counts
type SubscriberStats struct {
	Total        int `json:"total"`
	Active       int `json:"active"`
	Unsubscribed int `json:"unsubscribed"`
	Bounced      int `json:"bounced"`
}
