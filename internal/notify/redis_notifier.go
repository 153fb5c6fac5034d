package notify

import (
	"context"
	"encoding/json"
	"time"

	redis "github.com/redis/go-redis/v9"

	"retex/internal/domain"
)

type RedisStockNotifier struct {
	client *redis.Client
	queue  string
}

func NewRedisStockNotifier(addr string, password string, db int, queue string) *RedisStockNotifier {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	return &RedisStockNotifier{client: client, queue: queue}
}

func (n *RedisStockNotifier) Ping(ctx context.Context) error {
	return n.client.Ping(ctx).Err()
}

func (n *RedisStockNotifier) Close() error {
	return n.client.Close()
}

type stockEvent struct {
	ProductID string    `json:"productId"`
	SKU       string    `json:"sku"`
	Delta     int       `json:"delta"`
	OnHand    int       `json:"onHand"`
	Source    string    `json:"source"`
	ReturnID  string    `json:"returnId,omitempty"`
	SaleID    string    `json:"saleId,omitempty"`
	At        time.Time `json:"at"`
}

func (n *RedisStockNotifier) StockChanged(ctx context.Context, changes []domain.StockChange) error {
	if len(changes) == 0 {
		return nil
	}

	at := time.Now().UTC()
	payloads := make([]any, 0, len(changes))
	for _, change := range changes {
		payload, err := json.Marshal(stockEvent{
			ProductID: change.ProductID,
			SKU:       change.SKU,
			Delta:     change.Delta,
			OnHand:    change.OnHand,
			Source:    change.Source,
			ReturnID:  change.ReturnID,
			SaleID:    change.SaleID,
			At:        at,
		})
		if err != nil {
			return err
		}
		payloads = append(payloads, payload)
	}

	return n.client.LPush(ctx, n.queue, payloads...).Err()
}
