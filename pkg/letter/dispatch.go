package letter

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/letter4ceo/morning-letter/pkg/config"
	"github.com/letter4ceo/morning-letter/pkg/domain"
)

// DispatchStore provides the newsletter claim lifecycle used while a send is
// in flight
type DispatchStore interface {
	GetNewsletter(ctx context.Context, id int64) (*domain.Newsletter, error)
	GetDue(ctx context.Context, now time.Time) ([]*domain.Newsletter, error)
	ClaimForSending(ctx context.Context, id int64) error
	RevertClaim(ctx context.Context, id int64) error
	MarkSent(ctx context.Context, id int64, sentAt time.Time, campaignID string) error
}

// SubscriberStore provides recipients for the personalized fan-out mode
type SubscriberStore interface {
	ActiveSubscribers(ctx context.Context) ([]*domain.Subscriber, error)
}

// EmailSender delivers rendered letters through the email provider
type EmailSender interface {
	IsConfigured() bool
	HasAutoEmail() bool
	CreateAndSendEmail(ctx context.Context, subject, content, previewText string) (string, error)
	SendAutoEmail(ctx context.Context, email string, vars map[string]string) error
}

// Dispatcher delivers due letters and manages their state transitions
type Dispatcher struct {
	newsletters DispatchStore
	news        NewsStore
	subscribers SubscriberStore
	sender      EmailSender
	cfg         config.DispatchConfig
}

// NewDispatcher creates a dispatch engine
func NewDispatcher(newsletters DispatchStore, news NewsStore, subscribers SubscriberStore,
	sender EmailSender, cfg config.DispatchConfig) *Dispatcher {
	return &Dispatcher{
		newsletters: newsletters,
		news:        news,
		subscribers: subscribers,
		sender:      sender,
		cfg:         cfg,
	}
}

// Send delivers one letter immediately. A scheduled letter is claimed first so
// an overlapping tick cannot double-send it, a failed delivery reverts the
// claim and leaves the letter untouched.
func (d *Dispatcher) Send(ctx context.Context, id int64) (*domain.SendResult, error) {
	n, err := d.newsletters.GetNewsletter(ctx, id)
	if err != nil {
		return nil, err
	}
	if n.Sent() {
		return nil, domain.NewValidationError("newsletter already sent")
	}
	if n.Status == domain.StatusSending {
		return nil, domain.NewValidationError("newsletter is already being sent")
	}

	claimed := false
	if n.Status == domain.StatusScheduled {
		if err := d.newsletters.ClaimForSending(ctx, id); err != nil {
			if errors.Is(err, domain.ErrNotClaimed) {
				return nil, domain.NewValidationError("newsletter is already being sent")
			}
			return nil, err
		}
		claimed = true
	}

	result, err := d.deliver(ctx, n)
	if err != nil || !result.Success {
		if claimed {
			if revertErr := d.newsletters.RevertClaim(ctx, id); revertErr != nil {
				log.Printf("[ERROR] failed to revert claim for newsletter %d: %v", id, revertErr)
			}
		}
		if err != nil {
			return nil, err
		}
		return result, nil
	}

	if err := d.newsletters.MarkSent(ctx, id, time.Now(), result.CampaignID); err != nil {
		return nil, fmt.Errorf("mark sent: %w", err)
	}
	return result, nil
}

// ProcessDue delivers every scheduled letter whose time has passed, oldest
// first. A letter another tick already claimed is skipped, per-letter failures
// never abort the pass.
func (d *Dispatcher) ProcessDue(ctx context.Context, now time.Time) (sent int, err error) {
	due, err := d.newsletters.GetDue(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("get due newsletters: %w", err)
	}

	for _, n := range due {
		if err := d.newsletters.ClaimForSending(ctx, n.ID); err != nil {
			if errors.Is(err, domain.ErrNotClaimed) {
				log.Printf("[DEBUG] newsletter %d claimed elsewhere, skipping", n.ID)
				continue
			}
			log.Printf("[ERROR] failed to claim newsletter %d: %v", n.ID, err)
			continue
		}

		result, deliverErr := d.deliver(ctx, n)
		if deliverErr != nil || !result.Success {
			if revertErr := d.newsletters.RevertClaim(ctx, n.ID); revertErr != nil {
				log.Printf("[ERROR] failed to revert claim for newsletter %d: %v", n.ID, revertErr)
			}
			if deliverErr != nil {
				log.Printf("[ERROR] failed to deliver newsletter %d: %v", n.ID, deliverErr)
			} else {
				log.Printf("[ERROR] failed to deliver newsletter %d: %s", n.ID, result.Error)
			}
			continue
		}

		if err := d.newsletters.MarkSent(ctx, n.ID, time.Now(), result.CampaignID); err != nil {
			log.Printf("[ERROR] failed to mark newsletter %d sent: %v", n.ID, err)
			continue
		}
		log.Printf("[INFO] newsletter %d sent, campaign %q", n.ID, result.CampaignID)
		sent++
	}
	return sent, nil
}

// SendTest delivers a rendered letter to one address without touching its
// state. Without an auto-email endpoint the rendered HTML is returned so the
// caller can inspect it instead.
func (d *Dispatcher) SendTest(ctx context.Context, id int64, email string) (html string, delivered bool, err error) {
	html, _, err = d.render(ctx, id)
	if err != nil {
		return "", false, err
	}

	if !d.sender.HasAutoEmail() {
		return html, false, nil
	}

	n, err := d.newsletters.GetNewsletter(ctx, id)
	if err != nil {
		return "", false, err
	}
	vars := map[string]string{
		"title":           n.Title,
		"content":         html,
		"curator_note":    n.CuratorNote,
		"subscriber_name": "Test",
		"unsubscribe_url": d.cfg.UnsubscribeURL,
	}
	if err := d.sender.SendAutoEmail(ctx, email, vars); err != nil {
		return "", false, fmt.Errorf("send test email: %w", err)
	}
	return html, true, nil
}

// Preview returns the rendered HTML email for a letter
func (d *Dispatcher) Preview(ctx context.Context, id int64) (string, error) {
	html, _, err := d.render(ctx, id)
	return html, err
}

// deliver renders the letter and pushes it through the configured mode
func (d *Dispatcher) deliver(ctx context.Context, n *domain.Newsletter) (*domain.SendResult, error) {
	items, err := d.news.SelectedNews(ctx, n.ID)
	if err != nil {
		return nil, fmt.Errorf("load selected news: %w", err)
	}
	html, err := RenderEmail(n, items, d.cfg.UnsubscribeURL)
	if err != nil {
		return nil, err
	}

	if d.cfg.Mode == config.ModeFanout {
		return d.deliverFanout(ctx, n, html)
	}
	return d.deliverBroadcast(ctx, n, html)
}

// deliverBroadcast creates a provider campaign for the whole list and sends
// it, both steps must succeed
func (d *Dispatcher) deliverBroadcast(ctx context.Context, n *domain.Newsletter, html string) (*domain.SendResult, error) {
	if !d.sender.IsConfigured() {
		return nil, fmt.Errorf("email provider not configured")
	}

	preview := n.CuratorNote
	if preview == "" {
		preview = n.Title
	}
	campaignID, err := d.sender.CreateAndSendEmail(ctx, n.Title, html, preview)
	if err != nil {
		return &domain.SendResult{Success: false, CampaignID: campaignID, Error: err.Error()}, nil
	}
	return &domain.SendResult{Success: true, CampaignID: campaignID}, nil
}

// deliverFanout sends one personalized email per active subscriber with a
// fixed delay between sends. Success means zero failures, partial delivery
// still counts the sends that went out.
func (d *Dispatcher) deliverFanout(ctx context.Context, n *domain.Newsletter, html string) (*domain.SendResult, error) {
	if !d.sender.HasAutoEmail() {
		return nil, fmt.Errorf("auto email endpoint not configured")
	}

	subscribers, err := d.subscribers.ActiveSubscribers(ctx)
	if err != nil {
		return nil, fmt.Errorf("load subscribers: %w", err)
	}

	result := &domain.SendResult{}
	for i, s := range subscribers {
		if i > 0 && d.cfg.SendDelay > 0 {
			select {
			case <-ctx.Done():
				result.Error = ctx.Err().Error()
				return result, nil
			case <-time.After(d.cfg.SendDelay):
			}
		}

		vars := map[string]string{
			"title":           n.Title,
			"content":         html,
			"curator_note":    n.CuratorNote,
			"subscriber_name": s.Name,
			"unsubscribe_url": d.cfg.UnsubscribeURL,
		}
		if err := d.sender.SendAutoEmail(ctx, s.Email, vars); err != nil {
			log.Printf("[WARN] failed to send to %s: %v", s.Email, err)
			result.FailedEmails = append(result.FailedEmails, s.Email)
			continue
		}
		result.SentCount++
	}

	result.Success = len(result.FailedEmails) == 0
	if !result.Success {
		result.Error = fmt.Sprintf("%d of %d sends failed", len(result.FailedEmails), len(subscribers))
	}
	return result, nil
}

// render loads a letter with its items and produces the HTML email
func (d *Dispatcher) render(ctx context.Context, id int64) (html string, n *domain.Newsletter, err error) {
	n, err = d.newsletters.GetNewsletter(ctx, id)
	if err != nil {
		return "", nil, err
	}
	items, err := d.news.SelectedNews(ctx, n.ID)
	if err != nil {
		return "", nil, fmt.Errorf("load selected news: %w", err)
	}
	html, err = RenderEmail(n, items, d.cfg.UnsubscribeURL)
	if err != nil {
		return "", nil, err
	}
	return html, n, nil
}
