package items

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/swapcircle/catalog-backend/internal/repo"
	"github.com/swapcircle/catalog-backend/pkg/db/models"
	"github.com/swapcircle/catalog-backend/pkg/enums"
)

// Repository wires together read-model persistence for items. The table it
// manages is fully derived from the event log; only the projector and the
// rebuild path write to it.
type Repository struct {
	base repo.Base
}

// NewRepository builds a repository tied to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{base: repo.NewBase(db)}
}

// WithTx returns a repository bound to the provided transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{base: repo.NewBase(tx)}
}

// FindByID loads a single read-model row.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Item, error) {
	var item models.Item
	if err := r.base.DB(ctx).First(&item, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &item, nil
}

// Save upserts the projected row. Create-or-replace keeps the projector
// idempotent: re-applying a fold result is harmless.
func (r *Repository) Save(ctx context.Context, item *models.Item) error {
	return r.base.DB(ctx).Save(item).Error
}

// Delete removes the row ahead of a rebuild. This is the only delete the read
// model ever sees; the event log itself is untouched.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.base.DB(ctx).Where("id = ?", id).Delete(&models.Item{}).Error
}

// ListByOwner returns all items for an owner, optionally filtered by status.
func (r *Repository) ListByOwner(ctx context.Context, ownerID string, status *enums.ItemStatus) ([]models.Item, error) {
	query := r.base.DB(ctx).Where("owner_id = ?", ownerID)
	if status != nil {
		query = query.Where("status = ?", *status)
	}

	var rows []models.Item
	if err := query.Order("created_at ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// ListByCategory returns items in a category with the given status.
func (r *Repository) ListByCategory(ctx context.Context, category string, status enums.ItemStatus) ([]models.Item, error) {
	var rows []models.Item
	if err := r.base.DB(ctx).
		Where("category = ? AND status = ?", category, status).
		Order("created_at ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// SearchFilter narrows a catalog search.
type SearchFilter struct {
	Term     string
	Category string
	Status   enums.ItemStatus
	Limit    int
	After    *SearchCursor
}

// SearchCursor is the decoded pagination cursor for Search.
type SearchCursor struct {
	CreatedAt time.Time
	ID        uuid.UUID
}

// Search runs a filtered catalog query over the read model.
func (r *Repository) Search(ctx context.Context, filter SearchFilter) ([]models.Item, error) {
	query := r.base.DB(ctx).Where("status = ?", filter.Status)

	if filter.Term != "" {
		// Case-insensitive on both Postgres and the sqlite test harness.
		pattern := "%" + strings.ToLower(filter.Term) + "%"
		query = query.Where("LOWER(name) LIKE ? OR LOWER(description) LIKE ?", pattern, pattern)
	}
	if filter.Category != "" {
		query = query.Where("category = ?", filter.Category)
	}
	if filter.After != nil {
		query = query.Where(
			"created_at > ? OR (created_at = ? AND id > ?)",
			filter.After.CreatedAt, filter.After.CreatedAt, filter.After.ID,
		)
	}

	var rows []models.Item
	if err := query.
		Order("created_at ASC").
		Order("id ASC").
		Limit(filter.Limit).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// CountByStatus returns the number of rows holding the given status.
func (r *Repository) CountByStatus(ctx context.Context, status enums.ItemStatus) (int64, error) {
	var count int64
	if err := r.base.DB(ctx).
		Model(&models.Item{}).
		Where("status = ?", status).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// CountAll returns the total number of read-model rows.
func (r *Repository) CountAll(ctx context.Context) (int64, error) {
	var count int64
	if err := r.base.DB(ctx).Model(&models.Item{}).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// CategoryCount pairs a category with how many items it holds.
type CategoryCount struct {
	Category string
	Count    int64
}

// CountByCategory groups the catalog by category.
func (r *Repository) CountByCategory(ctx context.Context) ([]CategoryCount, error) {
	var rows []CategoryCount
	if err := r.base.DB(ctx).
		Model(&models.Item{}).
		Select("category AS category, COUNT(id) AS count").
		Group("category").
		Order("category ASC").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
