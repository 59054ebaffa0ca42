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

// NewsRepository handles news item database operations
type NewsRepository struct {
	db *sqlx.DB
}

// NewNewsRepository creates a new news repository
func NewNewsRepository(db *sqlx.DB) *NewsRepository {
	return &NewsRepository{db: db}
}

// dbNews mirrors the news_items table
type dbNews struct {
	ID              int64         `db:"id"`
	SourceURL       string        `db:"source_url"`
	SourceName      string        `db:"source_name"`
	Title           string        `db:"title"`
	OriginalSummary string        `db:"original_summary"`
	AISummary       string        `db:"ai_summary"`
	ThumbnailURL    string        `db:"thumbnail_url"`
	Category        string        `db:"category"`
	PublishedAt     time.Time     `db:"published_at"`
	NewsletterID    sql.NullInt64 `db:"newsletter_id"`
	IsSelected      bool          `db:"is_selected"`
	DisplayOrder    int           `db:"display_order"`
	CreatedAt       time.Time     `db:"created_at"`
	UpdatedAt       time.Time     `db:"updated_at"`
}

// CreateNews inserts a new news item
func (r *NewsRepository) CreateNews(ctx context.Context, item *domain.NewsItem) error {
	query := `
		INSERT INTO news_items (
			source_url, source_name, title, original_summary, ai_summary,
			thumbnail_url, category, published_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	result, err := r.db.ExecContext(ctx, query,
		item.SourceURL, item.SourceName, item.Title, item.OriginalSummary,
		item.AISummary, item.ThumbnailURL, item.Category, item.PublishedAt)
	if err != nil {
		return fmt.Errorf("create news item: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("get insert id: %w", err)
	}
	item.ID = id
	return nil
}

// GetNews retrieves a news item by ID
func (r *NewsRepository) GetNews(ctx context.Context, id int64) (*domain.NewsItem, error) {
	var row dbNews
	err := r.db.GetContext(ctx, &row, "SELECT * FROM news_items WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NewNotFoundError("news item")
	}
	if err != nil {
		return nil, fmt.Errorf("get news item: %w", err)
	}
	return r.toDomain(&row), nil
}

// ListNews retrieves news items with optional filters, newest first
func (r *NewsRepository) ListNews(ctx context.Context, filter domain.NewsFilter) ([]*domain.NewsItem, error) {
	builder := sq.Select("*").From("news_items").OrderBy("created_at DESC")
	builder = applyNewsFilter(builder, filter)
	if filter.Limit > 0 {
		builder = builder.Limit(uint64(filter.Limit)).Offset(uint64(filter.Offset))
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build news query: %w", err)
	}

	var rows []dbNews
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list news items: %w", err)
	}

	items := make([]*domain.NewsItem, len(rows))
	for i := range rows {
		items[i] = r.toDomain(&rows[i])
	}
	return items, nil
}

// CountNews returns the number of news items matching the filter
func (r *NewsRepository) CountNews(ctx context.Context, filter domain.NewsFilter) (int, error) {
	builder := applyNewsFilter(sq.Select("COUNT(*)").From("news_items"), filter)
	query, args, err := builder.ToSql()
	if err != nil {
		return 0, fmt.Errorf("build count query: %w", err)
	}

	var count int
	if err := r.db.GetContext(ctx, &count, query, args...); err != nil {
		return 0, fmt.Errorf("count news items: %w", err)
	}
	return count, nil
}

// applyNewsFilter adds the filter predicates shared by list and count
func applyNewsFilter(builder sq.SelectBuilder, filter domain.NewsFilter) sq.SelectBuilder {
	if filter.Category != "" {
		builder = builder.Where(sq.Eq{"category": filter.Category})
	}
	if filter.NewsletterID != nil {
		builder = builder.Where(sq.Eq{"newsletter_id": *filter.NewsletterID})
	}
	if filter.SelectedOnly {
		builder = builder.Where(sq.Eq{"is_selected": true})
	}
	return builder
}

// NewsExistsBySourceURL checks whether an item with the normalized URL exists
func (r *NewsRepository) NewsExistsBySourceURL(ctx context.Context, sourceURL string) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists,
		"SELECT EXISTS(SELECT 1 FROM news_items WHERE source_url = ?)", sourceURL)
	if err != nil {
		return false, fmt.Errorf("check news exists: %w", err)
	}
	return exists, nil
}

// SelectNews assigns an item to a newsletter with a render position
func (r *NewsRepository) SelectNews(ctx context.Context, id, newsletterID int64, displayOrder int) error {
	query := `
		UPDATE news_items
		SET newsletter_id = ?, is_selected = 1, display_order = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`
	return r.mustUpdateOne(ctx, query, newsletterID, displayOrder, id)
}

// DeselectNews clears an item's newsletter assignment
func (r *NewsRepository) DeselectNews(ctx context.Context, id int64) error {
	query := `
		UPDATE news_items
		SET newsletter_id = NULL, is_selected = 0, display_order = 0, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`
	return r.mustUpdateOne(ctx, query, id)
}

// UpdateAISummary stores the on-demand AI summary for an item
func (r *NewsRepository) UpdateAISummary(ctx context.Context, id int64, summary string) error {
	query := "UPDATE news_items SET ai_summary = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?"
	return r.mustUpdateOne(ctx, query, summary, id)
}

// DeleteNews removes a news item
func (r *NewsRepository) DeleteNews(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM news_items WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete news item: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return domain.NewNotFoundError("news item")
	}
	return nil
}

// RecentNewsTitles returns the titles of the most recently created items
func (r *NewsRepository) RecentNewsTitles(ctx context.Context, limit int) ([]string, error) {
	var titles []string
	err := r.db.SelectContext(ctx, &titles,
		"SELECT title FROM news_items ORDER BY created_at DESC LIMIT ?", limit)
	if err != nil {
		return nil, fmt.Errorf("recent news titles: %w", err)
	}
	return titles, nil
}

// SelectedNews returns a letter's items ordered by their render sequence
func (r *NewsRepository) SelectedNews(ctx context.Context, newsletterID int64) ([]*domain.NewsItem, error) {
	var rows []dbNews
	err := r.db.SelectContext(ctx, &rows, `
		SELECT * FROM news_items
		WHERE newsletter_id = ? AND is_selected = 1
		ORDER BY display_order ASC
	`, newsletterID)
	if err != nil {
		return nil, fmt.Errorf("get selected news: %w", err)
	}

	items := make([]*domain.NewsItem, len(rows))
	for i := range rows {
		items[i] = r.toDomain(&rows[i])
	}
	return items, nil
}

// ClearNewsletterRefs detaches all items from a newsletter, used when the
// letter itself is deleted
func (r *NewsRepository) ClearNewsletterRefs(ctx context.Context, newsletterID int64) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE news_items
		SET newsletter_id = NULL, is_selected = 0, updated_at = CURRENT_TIMESTAMP
		WHERE newsletter_id = ?
	`, newsletterID)
	if err != nil {
		return fmt.Errorf("clear newsletter refs: %w", err)
	}
	return nil
}

// mustUpdateOne runs an update that must touch exactly one row
func (r *NewsRepository) mustUpdateOne(ctx context.Context, query string, args ...any) error {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update news item: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return domain.NewNotFoundError("news item")
	}
	return nil
}

// toDomain converts a table row to the domain type
func (r *NewsRepository) toDomain(row *dbNews) *domain.NewsItem {
	item := &domain.NewsItem{
		ID:              row.ID,
		SourceURL:       row.SourceURL,
		SourceName:      row.SourceName,
		Title:           row.Title,
		OriginalSummary: row.OriginalSummary,
		AISummary:       row.AISummary,
		ThumbnailURL:    row.ThumbnailURL,
		Category:        row.Category,
		PublishedAt:     row.PublishedAt,
		IsSelected:      row.IsSelected,
		DisplayOrder:    row.DisplayOrder,
		CreatedAt:       row.CreatedAt,
		UpdatedAt:       row.UpdatedAt,
	}
	if row.NewsletterID.Valid {
		id := row.NewsletterID.Int64
		item.NewsletterID = &id
	}
	return item
}
