package catalog

import "context"

// Repository supplies raw product records from the remote store.
type Repository interface {
	ListAll(ctx context.Context) ([]RawProduct, error)
	GetByID(ctx context.Context, id string) (RawProduct, error)
	ListByCategory(ctx context.Context, category string) ([]RawProduct, error)
}
