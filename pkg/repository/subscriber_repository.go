package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"

	"github.com/letter4ceo/morning-letter/pkg/domain"
)

// SubscriberRepository handles subscriber database operations
type SubscriberRepository struct {
	db *sqlx.DB
}

// NewSubscriberRepository creates a new subscriber repository
func NewSubscriberRepository(db *sqlx.DB) *SubscriberRepository {
	return &SubscriberRepository{db: db}
}

// dbSubscriber mirrors the subscribers table
type dbSubscriber struct {
	ID              int64        `db:"id"`
	Email           string       `db:"email"`
	Name            string       `db:"name"`
	Phone           string       `db:"phone"`
	Company         string       `db:"company"`
	Position        string       `db:"position"`
	Status          string       `db:"status"`
	PrivacyAgreed   bool         `db:"privacy_agreed"`
	PrivacyAgreedAt sql.NullTime `db:"privacy_agreed_at"`
	SubscribedAt    time.Time    `db:"subscribed_at"`
	UpdatedAt       time.Time    `db:"updated_at"`
}

// CreateSubscriber inserts a new subscriber
func (r *SubscriberRepository) CreateSubscriber(ctx context.Context, s *domain.Subscriber) error {
	if s.Status == "" {
		s.Status = domain.SubscriberActive
	}
	var agreedAt any
	if s.PrivacyAgreedAt != nil {
		agreedAt = *s.PrivacyAgreedAt
	}
	query := `
		INSERT INTO subscribers (email, name, phone, company, position, status, privacy_agreed, privacy_agreed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	result, err := r.db.ExecContext(ctx, query,
		s.Email, s.Name, s.Phone, s.Company, s.Position, s.Status, s.PrivacyAgreed, agreedAt)
	if err != nil {
		return fmt.Errorf("create subscriber: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("get insert id: %w", err)
	}
	s.ID = id
	return nil
}

// GetSubscriber retrieves a subscriber by ID
func (r *SubscriberRepository) GetSubscriber(ctx context.Context, id int64) (*domain.Subscriber, error) {
	var row dbSubscriber
	err := r.db.GetContext(ctx, &row, "SELECT * FROM subscribers WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NewNotFoundError("subscriber")
	}
	if err != nil {
		return nil, fmt.Errorf("get subscriber: %w", err)
	}
	return r.toDomain(&row), nil
}

// GetSubscriberByEmail retrieves a subscriber by email address
func (r *SubscriberRepository) GetSubscriberByEmail(ctx context.Context, email string) (*domain.Subscriber, error) {
	var row dbSubscriber
	err := r.db.GetContext(ctx, &row, "SELECT * FROM subscribers WHERE email = ?", email)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NewNotFoundError("subscriber")
	}
	if err != nil {
		return nil, fmt.Errorf("get subscriber by email: %w", err)
	}
	return r.toDomain(&row), nil
}

// ListSubscribers retrieves subscribers with optional status and search filters,
// newest first
func (r *SubscriberRepository) ListSubscribers(ctx context.Context, filter domain.SubscriberFilter) ([]*domain.Subscriber, error) {
	builder := sq.Select("*").From("subscribers").OrderBy("subscribed_at DESC")
	builder = applySubscriberFilter(builder, filter)
	if filter.Limit > 0 {
		builder = builder.Limit(uint64(filter.Limit)).Offset(uint64(filter.Offset))
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build subscriber query: %w", err)
	}

	var rows []dbSubscriber
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list subscribers: %w", err)
	}

	subscribers := make([]*domain.Subscriber, len(rows))
	for i := range rows {
		subscribers[i] = r.toDomain(&rows[i])
	}
	return subscribers, nil
}

// CountSubscribers returns the number of subscribers matching the filter
func (r *SubscriberRepository) CountSubscribers(ctx context.Context, filter domain.SubscriberFilter) (int, error) {
	builder := applySubscriberFilter(sq.Select("COUNT(*)").From("subscribers"), filter)
	query, args, err := builder.ToSql()
	if err != nil {
		return 0, fmt.Errorf("build count query: %w", err)
	}

	var count int
	if err := r.db.GetContext(ctx, &count, query, args...); err != nil {
		return 0, fmt.Errorf("count subscribers: %w", err)
	}
	return count, nil
}

// applySubscriberFilter adds the filter predicates shared by list and count
func applySubscriberFilter(builder sq.SelectBuilder, filter domain.SubscriberFilter) sq.SelectBuilder {
	if filter.Status != "" {
		builder = builder.Where(sq.Eq{"status": filter.Status})
	}
	if filter.Search != "" {
		pattern := "%" + filter.Search + "%"
		builder = builder.Where(sq.Or{
			sq.Like{"email": pattern},
			sq.Like{"name": pattern},
			sq.Like{"company": pattern},
		})
	}
	return builder
}

// UpdateSubscriber updates the editable subscriber fields
func (r *SubscriberRepository) UpdateSubscriber(ctx context.Context, s *domain.Subscriber) error {
	query := `
		UPDATE subscribers
		SET name = ?, phone = ?, company = ?, position = ?, status = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`
	result, err := r.db.ExecContext(ctx, query, s.Name, s.Phone, s.Company, s.Position, s.Status, s.ID)
	if err != nil {
		return fmt.Errorf("update subscriber: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return domain.NewNotFoundError("subscriber")
	}
	return nil
}

// UpdateStatus changes a subscriber's subscription state by email, used by the
// unsubscribe flow
func (r *SubscriberRepository) UpdateStatus(ctx context.Context, email string, status domain.SubscriberStatus) error {
	query := "UPDATE subscribers SET status = ?, updated_at = CURRENT_TIMESTAMP WHERE email = ?"
	result, err := r.db.ExecContext(ctx, query, status, email)
	if err != nil {
		return fmt.Errorf("update subscriber status: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return domain.NewNotFoundError("subscriber")
	}
	return nil
}

// DeleteSubscriber removes a subscriber
func (r *SubscriberRepository) DeleteSubscriber(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM subscribers WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete subscriber: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return domain.NewNotFoundError("subscriber")
	}
	return nil
}

// ActiveSubscribers returns every subscriber eligible for dispatch
func (r *SubscriberRepository) ActiveSubscribers(ctx context.Context) ([]*domain.Subscriber, error) {
	var rows []dbSubscriber
	err := r.db.SelectContext(ctx, &rows,
		"SELECT * FROM subscribers WHERE status = ? ORDER BY subscribed_at ASC", domain.SubscriberActive)
	if err != nil {
		return nil, fmt.Errorf("active subscribers: %w", err)
	}

	subscribers := make([]*domain.Subscriber, len(rows))
	for i := range rows {
		subscribers[i] = r.toDomain(&rows[i])
	}
	return subscribers, nil
}

// Stats returns per-status subscriber counts
func (r *SubscriberRepository) Stats(ctx context.Context) (*domain.SubscriberStats, error) {
	var stats domain.SubscriberStats
	err := r.db.GetContext(ctx, &stats, `
		SELECT
			COUNT(*) AS total,
			COALESCE(SUM(CASE WHEN status = 'active' THEN 1 ELSE 0 END), 0) AS active,
			COALESCE(SUM(CASE WHEN status = 'unsubscribed' THEN 1 ELSE 0 END), 0) AS unsubscribed,
			COALESCE(SUM(CASE WHEN status = 'bounced' THEN 1 ELSE 0 END), 0) AS bounced
		FROM subscribers
	`)
	if err != nil {
		return nil, fmt.Errorf("subscriber stats: %w", err)
	}
	return &stats, nil
}

// toDomain converts a table row to the domain type
func (r *SubscriberRepository) toDomain(row *dbSubscriber) *domain.Subscriber {
	s := &domain.Subscriber{
		ID:            row.ID,
		Email:         row.Email,
		Name:          row.Name,
		Phone:         row.Phone,
		Company:       row.Company,
		Position:      row.Position,
		Status:        domain.SubscriberStatus(row.Status),
		PrivacyAgreed: row.PrivacyAgreed,
		SubscribedAt:  row.SubscribedAt,
		UpdatedAt:     row.UpdatedAt,
	}
	if row.PrivacyAgreedAt.Valid {
		t := row.PrivacyAgreedAt.Time
		s.PrivacyAgreedAt = &t
	}
	return s
}
