package repository

import (
	"context"

	"connections-portal/backend/internal/application/domain"
)

// Repository defines persistence for applications and their load items.
type Repository interface {
	// Create inserts a and sets its ID, Status and timestamps from the stored row.
	Create(ctx context.Context, a *domain.Application) error
	// GetByID returns the application for id, or nil if not found.
	GetByID(ctx context.Context, id int64) (*domain.Application, error)
	// Update overwrites every section of the application a.ID. An empty Status keeps the stored one.
	// Returns false if no such application exists.
	Update(ctx context.Context, a *domain.Application) (bool, error)
	ListLoadItems(ctx context.Context, appID int64) ([]*domain.LoadItem, error)
	// AddLoadItem inserts item and sets its ID.
	AddLoadItem(ctx context.Context, item *domain.LoadItem) error
	// DeleteLoadItem removes itemID if it belongs to appID. Returns false if nothing was deleted.
	DeleteLoadItem(ctx context.Context, appID, itemID int64) (bool, error)
}
