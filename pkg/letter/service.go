// Package letter implements the newsletter lifecycle: draft editing, item
// selection, scheduling and the dispatch engine that delivers due letters.
package letter

import (
	"context"
	"fmt"
	"time"

	"github.com/letter4ceo/morning-letter/pkg/domain"
)

// NewsletterStore provides newsletter persistence
type NewsletterStore interface {
	CreateNewsletter(ctx context.Context, n *domain.Newsletter) error
	GetNewsletter(ctx context.Context, id int64) (*domain.Newsletter, error)
	ListNewsletters(ctx context.Context, filter domain.NewsletterFilter) ([]*domain.Newsletter, error)
	UpdateNewsletter(ctx context.Context, n *domain.Newsletter) error
	DeleteNewsletter(ctx context.Context, id int64) error
	Schedule(ctx context.Context, id int64, at time.Time) error
	CancelSchedule(ctx context.Context, id int64) error
	Stats(ctx context.Context) (*domain.NewsletterStats, error)
}

// NewsStore provides the news item operations the letter lifecycle needs
type NewsStore interface {
	GetNews(ctx context.Context, id int64) (*domain.NewsItem, error)
	SelectNews(ctx context.Context, id, newsletterID int64, displayOrder int) error
	DeselectNews(ctx context.Context, id int64) error
	SelectedNews(ctx context.Context, newsletterID int64) ([]*domain.NewsItem, error)
	ClearNewsletterRefs(ctx context.Context, newsletterID int64) error
}

// Service manages the newsletter state machine
type Service struct {
	newsletters NewsletterStore
	news        NewsStore
}

// NewService creates a newsletter service
func NewService(newsletters NewsletterStore, news NewsStore) *Service {
	return &Service{newsletters: newsletters, news: news}
}

// Create stores a new draft letter. The published date defaults to today.
func (s *Service) Create(ctx context.Context, n *domain.Newsletter) error {
	if n.Title == "" {
		return domain.NewValidationError("title is required")
	}
	if n.PublishedDate == "" {
		n.PublishedDate = time.Now().Format("2006-01-02")
	}
	n.Status = domain.StatusDraft
	return s.newsletters.CreateNewsletter(ctx, n)
}

// Get retrieves a letter by id
func (s *Service) Get(ctx context.Context, id int64) (*domain.Newsletter, error) {
	return s.newsletters.GetNewsletter(ctx, id)
}

// List retrieves letters matching the filter
func (s *Service) List(ctx context.Context, filter domain.NewsletterFilter) ([]*domain.Newsletter, error) {
	return s.newsletters.ListNewsletters(ctx, filter)
}

// Update modifies a letter's editable fields, sent letters are immutable
func (s *Service) Update(ctx context.Context, n *domain.Newsletter) error {
	existing, err := s.newsletters.GetNewsletter(ctx, n.ID)
	if err != nil {
		return err
	}
	if existing.Sent() {
		return domain.NewValidationError("newsletter already sent")
	}
	if n.Title == "" {
		return domain.NewValidationError("title is required")
	}
	return s.newsletters.UpdateNewsletter(ctx, n)
}

// Delete removes a letter and detaches its selected items. Sent letters stay
// as the permanent dispatch record.
func (s *Service) Delete(ctx context.Context, id int64) error {
	existing, err := s.newsletters.GetNewsletter(ctx, id)
	if err != nil {
		return err
	}
	if existing.Sent() {
		return domain.NewValidationError("newsletter already sent")
	}
	if err := s.news.ClearNewsletterRefs(ctx, id); err != nil {
		return fmt.Errorf("detach news items: %w", err)
	}
	return s.newsletters.DeleteNewsletter(ctx, id)
}

// Schedule moves a letter to the scheduled state. The dispatch time must be
// strictly in the future.
func (s *Service) Schedule(ctx context.Context, id int64, at time.Time) error {
	existing, err := s.newsletters.GetNewsletter(ctx, id)
	if err != nil {
		return err
	}
	if existing.Sent() {
		return domain.NewValidationError("newsletter already sent")
	}
	if !at.After(time.Now()) {
		return domain.NewValidationError("scheduled time must be in the future")
	}
	return s.newsletters.Schedule(ctx, id, at)
}

// CancelSchedule returns a scheduled letter to draft
func (s *Service) CancelSchedule(ctx context.Context, id int64) error {
	existing, err := s.newsletters.GetNewsletter(ctx, id)
	if err != nil {
		return err
	}
	if existing.Status != domain.StatusScheduled {
		return domain.NewValidationError("newsletter is not scheduled")
	}
	return s.newsletters.CancelSchedule(ctx, id)
}

// SelectItem assigns a news item to a letter at the given render position
func (s *Service) SelectItem(ctx context.Context, newsletterID, newsID int64, displayOrder int) error {
	existing, err := s.newsletters.GetNewsletter(ctx, newsletterID)
	if err != nil {
		return err
	}
	if existing.Sent() {
		return domain.NewValidationError("newsletter already sent")
	}
	return s.news.SelectNews(ctx, newsID, newsletterID, displayOrder)
}

// DeselectItem clears a news item's letter assignment
func (s *Service) DeselectItem(ctx context.Context, newsID int64) error {
	return s.news.DeselectNews(ctx, newsID)
}

// Stats returns per-status letter counts
func (s *Service) Stats(ctx context.Context) (*domain.NewsletterStats, error) {
	return s.newsletters.Stats(ctx)
}
