package notify

import (
	"context"

	"retex/internal/domain"
)

// StockNotifier feeds the stock-sync queue that registers and the inventory
// dashboard consume. Delivery is best effort: a committed exchange never
// fails because the queue is unreachable.
type StockNotifier interface {
	StockChanged(ctx context.Context, changes []domain.StockChange) error
}

type NoopStockNotifier struct{}

func (NoopStockNotifier) StockChanged(_ context.Context, _ []domain.StockChange) error {
	return nil
}
