package store

import (
	"context"
	"errors"

	"retex/internal/domain"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrInvalidExchange   = errors.New("invalid exchange")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrConflict          = errors.New("conflict")
	ErrDuplicateExchange = errors.New("duplicate exchange")
)

type Repository interface {
	GetSale(ctx context.Context, id string) (*domain.Sale, error)
	GetProductsByIDs(ctx context.Context, ids []string) (map[string]domain.Product, error)
	GetOnHand(ctx context.Context, productIDs []string) (map[string]int, error)
	ReturnedQtyBySale(ctx context.Context, saleID string) (map[string]int, error)
	FindReturnByIdempotency(ctx context.Context, key string) (*domain.ReturnRecord, error)
	CreateExchange(ctx context.Context, set domain.ExchangeSet) (*domain.ExchangeOutcome, error)
	GetExchange(ctx context.Context, returnID string) (*domain.ExchangeDetail, error)
	StoreCreditCodeExists(ctx context.Context, code string) (bool, error)
	CreateAuditLog(ctx context.Context, entry domain.AuditLog) error
	Ping(ctx context.Context) error
}
