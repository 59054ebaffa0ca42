package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/go-pkgz/repeater/v2"
	"github.com/jmoiron/sqlx"

	"github.com/letter4ceo/morning-letter/pkg/domain"
)

// NewsletterRepository handles newsletter database operations
type NewsletterRepository struct {
	db *sqlx.DB
}

// NewNewsletterRepository creates a new newsletter repository
func NewNewsletterRepository(db *sqlx.DB) *NewsletterRepository {
	return &NewsletterRepository{db: db}
}

// dbNewsletter mirrors the newsletters table
type dbNewsletter struct {
	ID            int64        `db:"id"`
	Title         string       `db:"title"`
	LetterBody    string       `db:"letter_body"`
	CuratorNote   string       `db:"curator_note"`
	Status        string       `db:"status"`
	ScheduledAt   sql.NullTime `db:"scheduled_at"`
	SentAt        sql.NullTime `db:"sent_at"`
	CampaignID    string       `db:"campaign_id"`
	PublishedDate string       `db:"published_date"`
	CreatedAt     time.Time    `db:"created_at"`
	UpdatedAt     time.Time    `db:"updated_at"`
}

// CreateNewsletter inserts a new letter in draft state
func (r *NewsletterRepository) CreateNewsletter(ctx context.Context, n *domain.Newsletter) error {
	if n.Status == "" {
		n.Status = domain.StatusDraft
	}
	query := `
		INSERT INTO newsletters (title, letter_body, curator_note, status, published_date)
		VALUES (?, ?, ?, ?, ?)
	`
	result, err := r.db.ExecContext(ctx, query, n.Title, n.LetterBody, n.CuratorNote, n.Status, n.PublishedDate)
	if err != nil {
		return fmt.Errorf("create newsletter: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("get insert id: %w", err)
	}
	n.ID = id
	return nil
}

// GetNewsletter retrieves a letter by ID
func (r *NewsletterRepository) GetNewsletter(ctx context.Context, id int64) (*domain.Newsletter, error) {
	var row dbNewsletter
	err := r.db.GetContext(ctx, &row, "SELECT * FROM newsletters WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NewNotFoundError("newsletter")
	}
	if err != nil {
		return nil, fmt.Errorf("get newsletter: %w", err)
	}
	return r.toDomain(&row), nil
}

// ListNewsletters retrieves letters, newest first
func (r *NewsletterRepository) ListNewsletters(ctx context.Context, filter domain.NewsletterFilter) ([]*domain.Newsletter, error) {
	builder := sq.Select("*").From("newsletters").OrderBy("created_at DESC")
	if filter.Status != "" {
		builder = builder.Where(sq.Eq{"status": filter.Status})
	}
	if filter.Limit > 0 {
		builder = builder.Limit(uint64(filter.Limit)).Offset(uint64(filter.Offset))
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build newsletter query: %w", err)
	}

	var rows []dbNewsletter
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list newsletters: %w", err)
	}

	letters := make([]*domain.Newsletter, len(rows))
	for i := range rows {
		letters[i] = r.toDomain(&rows[i])
	}
	return letters, nil
}

// UpdateNewsletter updates the editable letter fields
func (r *NewsletterRepository) UpdateNewsletter(ctx context.Context, n *domain.Newsletter) error {
	query := `
		UPDATE newsletters
		SET title = ?, letter_body = ?, curator_note = ?, published_date = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`
	result, err := r.db.ExecContext(ctx, query, n.Title, n.LetterBody, n.CuratorNote, n.PublishedDate, n.ID)
	if err != nil {
		return fmt.Errorf("update newsletter: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return domain.NewNotFoundError("newsletter")
	}
	return nil
}

// DeleteNewsletter removes a letter, item references are cleared by the caller
func (r *NewsletterRepository) DeleteNewsletter(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM newsletters WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete newsletter: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return domain.NewNotFoundError("newsletter")
	}
	return nil
}

// Schedule moves a letter into the scheduled state with a dispatch time
func (r *NewsletterRepository) Schedule(ctx context.Context, id int64, at time.Time) error {
	query := `
		UPDATE newsletters
		SET status = ?, scheduled_at = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`
	result, err := r.db.ExecContext(ctx, query, domain.StatusScheduled, at, id)
	if err != nil {
		return fmt.Errorf("schedule newsletter: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return domain.NewNotFoundError("newsletter")
	}
	return nil
}

// CancelSchedule returns a scheduled letter to draft and clears its dispatch time
func (r *NewsletterRepository) CancelSchedule(ctx context.Context, id int64) error {
	query := `
		UPDATE newsletters
		SET status = ?, scheduled_at = NULL, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`
	result, err := r.db.ExecContext(ctx, query, domain.StatusDraft, id)
	if err != nil {
		return fmt.Errorf("cancel schedule: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return domain.NewNotFoundError("newsletter")
	}
	return nil
}

// GetDue returns scheduled letters whose dispatch time has passed, oldest first
func (r *NewsletterRepository) GetDue(ctx context.Context, now time.Time) ([]*domain.Newsletter, error) {
	var rows []dbNewsletter
	err := r.db.SelectContext(ctx, &rows, `
		SELECT * FROM newsletters
		WHERE status = ? AND scheduled_at IS NOT NULL AND scheduled_at <= ?
		ORDER BY scheduled_at ASC
	`, domain.StatusScheduled, now)
	if err != nil {
		return nil, fmt.Errorf("get due newsletters: %w", err)
	}

	letters := make([]*domain.Newsletter, len(rows))
	for i := range rows {
		letters[i] = r.toDomain(&rows[i])
	}
	return letters, nil
}

// ClaimForSending atomically moves a scheduled letter to the transient sending
// state. Returns ErrNotClaimed when the letter is no longer scheduled, which
// closes the race between overlapping dispatch ticks.
func (r *NewsletterRepository) ClaimForSending(ctx context.Context, id int64) error {
	retrier := repeater.NewBackoff(5, 50*time.Millisecond, repeater.WithMaxDelay(2*time.Second))

	return retrier.Do(ctx, func() error {
		query := `
			UPDATE newsletters
			SET status = ?, updated_at = CURRENT_TIMESTAMP
			WHERE id = ? AND status = ?
		`
		result, err := r.db.ExecContext(ctx, query, domain.StatusSending, id, domain.StatusScheduled)
		if err != nil {
			if isLockError(err) {
				return err // retry
			}
			return &criticalError{err: fmt.Errorf("claim newsletter: %w", err)}
		}
		if rows, _ := result.RowsAffected(); rows == 0 {
			return &criticalError{err: domain.ErrNotClaimed}
		}
		return nil
	}, domain.ErrNotClaimed)
}

// RevertClaim returns a claimed letter to the scheduled state after a failed
// dispatch so the next tick retries it
func (r *NewsletterRepository) RevertClaim(ctx context.Context, id int64) error {
	retrier := repeater.NewBackoff(5, 50*time.Millisecond, repeater.WithMaxDelay(2*time.Second))

	return retrier.Do(ctx, func() error {
		query := `
			UPDATE newsletters
			SET status = ?, updated_at = CURRENT_TIMESTAMP
			WHERE id = ? AND status = ?
		`
		_, err := r.db.ExecContext(ctx, query, domain.StatusScheduled, id, domain.StatusSending)
		if err != nil {
			if isLockError(err) {
				return err // retry
			}
			return &criticalError{err: fmt.Errorf("revert claim: %w", err)}
		}
		return nil
	})
}

// MarkSent finalizes a claimed letter with the send timestamp and the provider
// correlation id
func (r *NewsletterRepository) MarkSent(ctx context.Context, id int64, sentAt time.Time, campaignID string) error {
	retrier := repeater.NewBackoff(5, 50*time.Millisecond, repeater.WithMaxDelay(2*time.Second))

	return retrier.Do(ctx, func() error {
		query := `
			UPDATE newsletters
			SET status = ?, sent_at = ?, campaign_id = ?, scheduled_at = NULL, updated_at = CURRENT_TIMESTAMP
			WHERE id = ?
		`
		result, err := r.db.ExecContext(ctx, query, domain.StatusSent, sentAt, campaignID, id)
		if err != nil {
			if isLockError(err) {
				return err // retry
			}
			return &criticalError{err: fmt.Errorf("mark newsletter sent: %w", err)}
		}
		if rows, _ := result.RowsAffected(); rows == 0 {
			return &criticalError{err: domain.NewNotFoundError("newsletter")}
		}
		return nil
	})
}

// Stats returns per-status letter counts
func (r *NewsletterRepository) Stats(ctx context.Context) (*domain.NewsletterStats, error) {
	var stats domain.NewsletterStats
	err := r.db.GetContext(ctx, &stats, `
		SELECT
			COUNT(*) AS total,
			COALESCE(SUM(CASE WHEN status = 'draft' THEN 1 ELSE 0 END), 0) AS draft,
			COALESCE(SUM(CASE WHEN status = 'scheduled' THEN 1 ELSE 0 END), 0) AS scheduled,
			COALESCE(SUM(CASE WHEN status = 'sent' THEN 1 ELSE 0 END), 0) AS sent
		FROM newsletters
	`)
	if err != nil {
		return nil, fmt.Errorf("newsletter stats: %w", err)
	}
	return &stats, nil
}

// toDomain converts a table row to the domain type
func (r *NewsletterRepository) toDomain(row *dbNewsletter) *domain.Newsletter {
	n := &domain.Newsletter{
		ID:            row.ID,
		Title:         row.Title,
		LetterBody:    row.LetterBody,
		CuratorNote:   row.CuratorNote,
		Status:        domain.NewsletterStatus(row.Status),
		CampaignID:    row.CampaignID,
		PublishedDate: row.PublishedDate,
		CreatedAt:     row.CreatedAt,
		UpdatedAt:     row.UpdatedAt,
	}
	if row.ScheduledAt.Valid {
		t := row.ScheduledAt.Time
		n.ScheduledAt = &t
	}
	if row.SentAt.Valid {
		t := row.SentAt.Time
		n.SentAt = &t
	}
	return n
}
