package postgres

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"retex/internal/domain"
	"retex/internal/store"
)

func TestCreateExchangePersistsEverything(t *testing.T) {
	databaseURL := os.Getenv("RETEX_TEST_DATABASE_URL")
	if databaseURL == "" {
		t.Skip("set RETEX_TEST_DATABASE_URL to run postgres integration test")
	}

	ctx := context.Background()
	s, err := New(ctx, databaseURL)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(func() {
		_ = s.Close()
	})

	stamp := time.Now().UnixNano()
	productID := fmt.Sprintf("it-prod-%d", stamp)
	saleID := fmt.Sprintf("it-sale-%d", stamp)
	itemID := fmt.Sprintf("it-item-%d", stamp)
	returnID := fmt.Sprintf("it-ret-%d", stamp)
	newSaleID := fmt.Sprintf("it-exsale-%d", stamp)
	idempotencyKey := fmt.Sprintf("it-idem-%d", stamp)

	t.Cleanup(func() {
		_, _ = s.db.ExecContext(ctx, `DELETE FROM settlements WHERE return_id = $1`, returnID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM return_lines WHERE return_id = $1`, returnID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM returns WHERE id = $1`, returnID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM sale_items WHERE sale_id IN ($1, $2)`, saleID, newSaleID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM sale_tax_lines WHERE sale_id IN ($1, $2)`, saleID, newSaleID)
		_, _ = s.db.ExecContext(ctx, `UPDATE sales SET exchange_sale_id = NULL WHERE id = $1`, saleID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM sales WHERE id IN ($1, $2)`, newSaleID, saleID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM inventory_stocks WHERE product_id = $1`, productID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, productID)
	})

	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO products (id, sku, name, price_cents, taxable, active)
		VALUES ($1, $2, 'Integration Chair', 5000, true, true)
	`, productID, fmt.Sprintf("IT-CHAIR-%d", stamp)); err != nil {
		t.Fatalf("insert product: %v", err)
	}

	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO inventory_stocks (product_id, on_hand, updated_at)
		VALUES ($1, 10, now())
		ON CONFLICT (product_id)
		DO UPDATE SET on_hand = 10, updated_at = now()
	`, productID); err != nil {
		t.Fatalf("seed stock: %v", err)
	}

	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO sales (
			id, number, customer_id, register_id, region, status,
			subtotal_cents, tax_cents, total_cents, is_exchange,
			return_id, exchange_sale_id, notes, created_at
		)
		VALUES ($1, $2, NULL, 'front-1', 'ON', 'completed', 10000, 1300, 11300, false, NULL, NULL, NULL, now())
	`, saleID, fmt.Sprintf("IT-INV-%d", stamp)); err != nil {
		t.Fatalf("insert sale: %v", err)
	}

	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO sale_items (
			id, sale_id, product_id, name, unit_price_cents, qty,
			discount_cents, tax_cents, taxable
		)
		VALUES ($1, $2, $3, 'Integration Chair', 5000, 2, 0, 1300, true)
	`, itemID, saleID, productID); err != nil {
		t.Fatalf("insert sale item: %v", err)
	}

	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO sale_tax_lines (sale_id, ordinal, name, rate, amount_cents)
		VALUES ($1, 0, 'HST', 0.13, 1300)
	`, saleID); err != nil {
		t.Fatalf("insert sale tax line: %v", err)
	}

	hst := decimal.RequireFromString("0.13")
	set := domain.ExchangeSet{
		Return: domain.ReturnRecord{
			ID:             returnID,
			SaleID:         saleID,
			ReturnType:     domain.ReturnTypePartial,
			Status:         domain.ReturnStatusProcessing,
			SubtotalCents:  5000,
			TaxCents:       650,
			TotalCents:     5650,
			Exchange:       true,
			IdempotencyKey: idempotencyKey,
			Lines: []domain.ReturnLine{
				{
					ID:              fmt.Sprintf("it-rline-%d", stamp),
					SaleItemID:      itemID,
					ProductID:       productID,
					Quantity:        1,
					UnitCreditCents: 5000,
					CreditCents:     5000,
					ReasonCode:      "wrong_size",
					Condition:       domain.ConditionSellable,
				},
			},
		},
		NewSale: domain.Sale{
			ID:            newSaleID,
			RegisterID:    "front-1",
			Region:        "ON",
			Status:        domain.SaleStatusCompleted,
			SubtotalCents: 5000,
			TaxCents:      650,
			TaxLines:      []domain.TaxLine{{Name: "HST", Rate: hst, AmountCents: 650}},
			TotalCents:    5650,
			Exchange:      true,
			Items: []domain.SaleItem{
				{
					ID:             fmt.Sprintf("it-sitem-%d", stamp),
					ProductID:      productID,
					Name:           "Integration Chair",
					UnitPriceCents: 5000,
					Quantity:       1,
					TaxCents:       650,
					Taxable:        true,
				},
			},
		},
		Settlement: domain.Settlement{
			ID:        fmt.Sprintf("it-settle-%d", stamp),
			Direction: domain.SettlementEven,
			Method:    domain.MethodNone,
		},
		Restock: []domain.StockDelta{{ProductID: productID, Quantity: 1}},
		Deduct:  []domain.StockDelta{{ProductID: productID, Quantity: 1}},
	}

	outcome, err := s.CreateExchange(ctx, set)
	if err != nil {
		t.Fatalf("create exchange: %v", err)
	}

	if outcome.Return.Status != domain.ReturnStatusCompleted {
		t.Fatalf("expected completed return, got %s", outcome.Return.Status)
	}
	if !strings.HasPrefix(outcome.Return.Number, "SR-") {
		t.Fatalf("expected SR return number, got %s", outcome.Return.Number)
	}
	if !strings.HasPrefix(outcome.NewSale.Number, "EX-") {
		t.Fatalf("expected EX sale number, got %s", outcome.NewSale.Number)
	}
	if len(outcome.StockChanges) != 2 {
		t.Fatalf("expected two stock changes, got %d", len(outcome.StockChanges))
	}

	var onHand int
	if err := s.db.QueryRowContext(ctx, `
		SELECT on_hand FROM inventory_stocks WHERE product_id = $1
	`, productID).Scan(&onHand); err != nil {
		t.Fatalf("query stock: %v", err)
	}
	if onHand != 10 {
		t.Fatalf("even exchange of the same product must leave stock at 10, got %d", onHand)
	}

	var status string
	var completedAt *time.Time
	if err := s.db.QueryRowContext(ctx, `
		SELECT status, completed_at FROM returns WHERE id = $1
	`, returnID).Scan(&status, &completedAt); err != nil {
		t.Fatalf("query return: %v", err)
	}
	if status != domain.ReturnStatusCompleted || completedAt == nil {
		t.Fatalf("expected completed return row, got %s / %v", status, completedAt)
	}

	var exchangeSaleID string
	if err := s.db.QueryRowContext(ctx, `
		SELECT exchange_sale_id FROM sales WHERE id = $1
	`, saleID).Scan(&exchangeSaleID); err != nil {
		t.Fatalf("query original sale: %v", err)
	}
	if exchangeSaleID != newSaleID {
		t.Fatalf("expected original sale to reference %s, got %s", newSaleID, exchangeSaleID)
	}

	// Resubmitting the same idempotency key must not create a second exchange.
	if _, err := s.CreateExchange(ctx, set); !errors.Is(err, store.ErrDuplicateExchange) {
		t.Fatalf("expected duplicate exchange on replay, got %v", err)
	}

	detail, err := s.GetExchange(ctx, returnID)
	if err != nil {
		t.Fatalf("get exchange: %v", err)
	}
	if detail.NewSale.ID != newSaleID {
		t.Fatalf("expected detail sale %s, got %s", newSaleID, detail.NewSale.ID)
	}
	if detail.Settlement.Direction != domain.SettlementEven {
		t.Fatalf("expected even settlement on detail, got %s", detail.Settlement.Direction)
	}
}
