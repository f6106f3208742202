package storage

import (
	"context"

	"poolquote/internal/model"
)

// Storage is an output sink for resolved pools and the quote journal.
type Storage interface {
	PutPools(ctx context.Context, pools []model.Pool) error
	PutQuotes(ctx context.Context, quotes []model.QuoteRecord) error
	Close() error
}
