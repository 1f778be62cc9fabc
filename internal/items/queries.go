package items

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/swapcircle/catalog-backend/pkg/enums"
	pkgerrors "github.com/swapcircle/catalog-backend/pkg/errors"
	"github.com/swapcircle/catalog-backend/pkg/pagination"
)

// QueryService is the read side of the catalog. It serves every query from
// the denormalized items table and never touches the event log.
type QueryService interface {
	GetItem(ctx context.Context, id uuid.UUID) (*ItemDTO, error)
	ListByOwner(ctx context.Context, ownerID string, status *enums.ItemStatus) ([]ItemDTO, error)
	ListByCategory(ctx context.Context, category string, status enums.ItemStatus) ([]ItemDTO, error)
	Search(ctx context.Context, input SearchInput) (*SearchResult, error)
	Statistics(ctx context.Context) (*CatalogStatistics, error)
}

// SearchInput filters and pages a catalog search.
type SearchInput struct {
	Term     string
	Category string
	Status   enums.ItemStatus
	Page     pagination.Params
}

// SearchResult is one page of matching items plus the cursor for the next.
type SearchResult struct {
	Items      []ItemDTO `json:"items"`
	NextCursor string    `json:"next_cursor,omitempty"`
}

// CatalogStatistics summarizes the read model.
type CatalogStatistics struct {
	TotalItems   int64            `json:"total_items"`
	ActiveItems  int64            `json:"active_items"`
	SwappedItems int64            `json:"swapped_items"`
	ByCategory   map[string]int64 `json:"by_category"`
}

type queryService struct {
	repo *Repository
}

// NewQueryService builds the read-side query handler.
func NewQueryService(repo *Repository) (QueryService, error) {
	if repo == nil {
		return nil, fmt.Errorf("items repository required")
	}
	return &queryService{repo: repo}, nil
}

func (s *queryService) GetItem(ctx context.Context, id uuid.UUID) (*ItemDTO, error) {
	item, err := s.repo.FindByID(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("item %s not found", id))
	}
	if err != nil {
		return nil, err
	}
	return toItemDTO(item), nil
}

func (s *queryService) ListByOwner(ctx context.Context, ownerID string, status *enums.ItemStatus) ([]ItemDTO, error) {
	if ownerID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "owner id is required")
	}
	rows, err := s.repo.ListByOwner(ctx, ownerID, status)
	if err != nil {
		return nil, err
	}
	return toItemDTOs(rows), nil
}

func (s *queryService) ListByCategory(ctx context.Context, category string, status enums.ItemStatus) ([]ItemDTO, error) {
	if category == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "category is required")
	}
	if status == "" {
		status = enums.ItemStatusActive
	}
	rows, err := s.repo.ListByCategory(ctx, category, status)
	if err != nil {
		return nil, err
	}
	return toItemDTOs(rows), nil
}

func (s *queryService) Search(ctx context.Context, input SearchInput) (*SearchResult, error) {
	status := input.Status
	if status == "" {
		status = enums.ItemStatusActive
	}

	cursor, err := pagination.ParseCursor(input.Page.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}

	filter := SearchFilter{
		Term:     input.Term,
		Category: input.Category,
		Status:   status,
		Limit:    pagination.LimitWithBuffer(input.Page.Limit),
	}
	if cursor != nil {
		filter.After = &SearchCursor{CreatedAt: cursor.CreatedAt, ID: cursor.ID}
	}

	rows, err := s.repo.Search(ctx, filter)
	if err != nil {
		return nil, err
	}

	result := &SearchResult{}
	limit := pagination.NormalizeLimit(input.Page.Limit)
	if len(rows) > limit {
		rows = rows[:limit]
		last := rows[len(rows)-1]
		result.NextCursor = pagination.EncodeCursor(pagination.Cursor{
			CreatedAt: last.CreatedAt,
			ID:        last.ID,
		})
	}
	result.Items = toItemDTOs(rows)
	return result, nil
}

func (s *queryService) Statistics(ctx context.Context) (*CatalogStatistics, error) {
	total, err := s.repo.CountAll(ctx)
	if err != nil {
		return nil, err
	}
	active, err := s.repo.CountByStatus(ctx, enums.ItemStatusActive)
	if err != nil {
		return nil, err
	}
	swapped, err := s.repo.CountByStatus(ctx, enums.ItemStatusSwapped)
	if err != nil {
		return nil, err
	}
	counts, err := s.repo.CountByCategory(ctx)
	if err != nil {
		return nil, err
	}

	byCategory := make(map[string]int64, len(counts))
	for _, row := range counts {
		byCategory[row.Category] = row.Count
	}

	return &CatalogStatistics{
		TotalItems:   total,
		ActiveItems:  active,
		SwappedItems: swapped,
		ByCategory:   byCategory,
	}, nil
}
