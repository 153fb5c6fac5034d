package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"retex/internal/domain"
	"retex/internal/store"
	"retex/internal/xid"
)

type Store struct {
	db *sql.DB
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) GetSale(ctx context.Context, id string) (*domain.Sale, error) {
	if id == "" {
		return nil, store.ErrNotFound
	}

	var sale domain.Sale
	var customerID, registerID, returnID, exchangeSaleID, notes sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT id, number, customer_id, register_id, region, status,
			subtotal_cents, tax_cents, total_cents, is_exchange,
			return_id, exchange_sale_id, notes, created_at
		FROM sales
		WHERE id = $1
	`, id).Scan(&sale.ID, &sale.Number, &customerID, &registerID, &sale.Region, &sale.Status,
		&sale.SubtotalCents, &sale.TaxCents, &sale.TotalCents, &sale.Exchange,
		&returnID, &exchangeSaleID, &notes, &sale.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	sale.CustomerID = customerID.String
	sale.RegisterID = registerID.String
	sale.ReturnID = returnID.String
	sale.ExchangeSaleID = exchangeSaleID.String
	sale.Notes = notes.String

	items, err := s.saleItems(ctx, sale.ID)
	if err != nil {
		return nil, err
	}
	sale.Items = items

	taxLines, err := s.saleTaxLines(ctx, sale.ID)
	if err != nil {
		return nil, err
	}
	sale.TaxLines = taxLines

	return &sale, nil
}

func (s *Store) saleItems(ctx context.Context, saleID string) ([]domain.SaleItem, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, sale_id, product_id, name, unit_price_cents, qty, discount_cents, tax_cents, taxable
		FROM sale_items
		WHERE sale_id = $1
		ORDER BY id ASC
	`, saleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]domain.SaleItem, 0, 8)
	for rows.Next() {
		var item domain.SaleItem
		if err := rows.Scan(&item.ID, &item.SaleID, &item.ProductID, &item.Name,
			&item.UnitPriceCents, &item.Quantity, &item.DiscountCents, &item.TaxCents, &item.Taxable); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) saleTaxLines(ctx context.Context, saleID string) ([]domain.TaxLine, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name, rate, amount_cents
		FROM sale_tax_lines
		WHERE sale_id = $1
		ORDER BY ordinal ASC
	`, saleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	lines := make([]domain.TaxLine, 0, 2)
	for rows.Next() {
		var line domain.TaxLine
		if err := rows.Scan(&line.Name, &line.Rate, &line.AmountCents); err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return lines, nil
}

func (s *Store) GetProductsByIDs(ctx context.Context, ids []string) (map[string]domain.Product, error) {
	products := make(map[string]domain.Product, len(ids))
	if len(ids) == 0 {
		return products, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, sku, name, price_cents, taxable, active
		FROM products
		WHERE id = ANY($1)
	`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var p domain.Product
		if err := rows.Scan(&p.ID, &p.SKU, &p.Name, &p.PriceCents, &p.Taxable, &p.Active); err != nil {
			return nil, err
		}
		products[p.ID] = p
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return products, nil
}

func (s *Store) GetOnHand(ctx context.Context, productIDs []string) (map[string]int, error) {
	onHand := make(map[string]int, len(productIDs))
	if len(productIDs) == 0 {
		return onHand, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT product_id, on_hand
		FROM inventory_stocks
		WHERE product_id = ANY($1)
	`, productIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var productID string
		var qty int
		if err := rows.Scan(&productID, &qty); err != nil {
			return nil, err
		}
		onHand[productID] = qty
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, id := range productIDs {
		if _, ok := onHand[id]; !ok {
			onHand[id] = 0
		}
	}

	return onHand, nil
}

func (s *Store) ReturnedQtyBySale(ctx context.Context, saleID string) (map[string]int, error) {
	result := make(map[string]int)
	rows, err := s.db.QueryContext(ctx, `
		SELECT rl.sale_item_id, COALESCE(SUM(rl.qty), 0)::int
		FROM return_lines rl
		JOIN returns r ON r.id = rl.return_id
		WHERE r.sale_id = $1
		GROUP BY rl.sale_item_id
	`, saleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var saleItemID string
		var qty int
		if err := rows.Scan(&saleItemID, &qty); err != nil {
			return nil, err
		}
		result[saleItemID] = qty
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Store) FindReturnByIdempotency(ctx context.Context, key string) (*domain.ReturnRecord, error) {
	return s.findReturn(ctx, "idempotency_key", key)
}

func (s *Store) findReturn(ctx context.Context, column string, value string) (*domain.ReturnRecord, error) {
	if value == "" {
		return nil, store.ErrNotFound
	}
	if column != "id" && column != "idempotency_key" {
		return nil, fmt.Errorf("unsupported lookup column %q", column)
	}

	var ret domain.ReturnRecord
	var newSaleID, idempotencyKey, notes sql.NullString
	var completedAt sql.NullTime
	err := s.db.QueryRowContext(ctx, fmt.Sprintf(`
		SELECT id, number, sale_id, new_sale_id, return_type, status,
			subtotal_cents, tax_cents, total_cents, idempotency_key, notes,
			created_at, completed_at
		FROM returns
		WHERE %s = $1
	`, column), value).Scan(&ret.ID, &ret.Number, &ret.SaleID, &newSaleID, &ret.ReturnType, &ret.Status,
		&ret.SubtotalCents, &ret.TaxCents, &ret.TotalCents, &idempotencyKey, &notes,
		&ret.CreatedAt, &completedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	ret.NewSaleID = newSaleID.String
	ret.IdempotencyKey = idempotencyKey.String
	ret.Notes = notes.String
	if completedAt.Valid {
		completed := completedAt.Time
		ret.CompletedAt = &completed
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, return_id, sale_item_id, product_id, qty,
			unit_credit_cents, credit_cents, reason_code, reason_notes, condition
		FROM return_lines
		WHERE return_id = $1
		ORDER BY id ASC
	`, ret.ID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var line domain.ReturnLine
		var reasonNotes sql.NullString
		if err := rows.Scan(&line.ID, &line.ReturnID, &line.SaleItemID, &line.ProductID, &line.Quantity,
			&line.UnitCreditCents, &line.CreditCents, &line.ReasonCode, &reasonNotes, &line.Condition); err != nil {
			return nil, err
		}
		line.ReasonNotes = reasonNotes.String
		ret.Lines = append(ret.Lines, line)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &ret, nil
}

func (s *Store) CreateExchange(ctx context.Context, set domain.ExchangeSet) (*domain.ExchangeOutcome, error) {
	ret := set.Return
	sale := set.NewSale
	if ret.ID == "" || sale.ID == "" || len(ret.Lines) == 0 || len(sale.Items) == 0 {
		return nil, store.ErrInvalidExchange
	}

	pgTx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = pgTx.Rollback() }()

	if ret.IdempotencyKey != "" {
		var existingID string
		err := pgTx.QueryRowContext(ctx, `
			SELECT id FROM returns WHERE idempotency_key = $1
		`, ret.IdempotencyKey).Scan(&existingID)
		if err == nil {
			return nil, store.ErrDuplicateExchange
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return nil, txError(err)
		}
	}

	var saleStatus string
	err = pgTx.QueryRowContext(ctx, `
		SELECT status FROM sales WHERE id = $1 FOR UPDATE
	`, ret.SaleID).Scan(&saleStatus)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("sale %s: %w", ret.SaleID, store.ErrNotFound)
	}
	if err != nil {
		return nil, txError(err)
	}
	if saleStatus != domain.SaleStatusCompleted {
		return nil, fmt.Errorf("sale %s is %s: %w", ret.SaleID, saleStatus, store.ErrConflict)
	}

	originalQty, err := itemQuantities(ctx, pgTx, ret.SaleID)
	if err != nil {
		return nil, txError(err)
	}

	returnedQty, err := returnedQuantities(ctx, pgTx, ret.SaleID)
	if err != nil {
		return nil, txError(err)
	}

	requested := make(map[string]int, len(ret.Lines))
	for _, line := range ret.Lines {
		if line.Quantity < 1 {
			return nil, store.ErrInvalidExchange
		}
		requested[line.SaleItemID] += line.Quantity
	}
	for saleItemID, qty := range requested {
		sold, ok := originalQty[saleItemID]
		if !ok {
			return nil, fmt.Errorf("sale item %s: %w", saleItemID, store.ErrNotFound)
		}
		remaining := sold - returnedQty[saleItemID]
		if qty > remaining {
			return nil, fmt.Errorf("sale item %s has %d unit(s) left to return: %w",
				saleItemID, remaining, store.ErrConflict)
		}
	}

	changes := make([]domain.StockChange, 0, len(set.Restock)+len(set.Deduct))
	for _, delta := range set.Restock {
		var onHand int
		err := pgTx.QueryRowContext(ctx, `
			INSERT INTO inventory_stocks (product_id, on_hand, updated_at)
			VALUES ($1, $2, now())
			ON CONFLICT (product_id)
			DO UPDATE SET on_hand = inventory_stocks.on_hand + EXCLUDED.on_hand, updated_at = now()
			RETURNING on_hand
		`, delta.ProductID, delta.Quantity).Scan(&onHand)
		if err != nil {
			return nil, txError(err)
		}
		changes = append(changes, domain.StockChange{
			ProductID: delta.ProductID,
			SKU:       delta.SKU,
			Delta:     delta.Quantity,
			OnHand:    onHand,
			Source:    domain.StockSourceExchangeReturn,
			ReturnID:  ret.ID,
		})
	}
	for _, delta := range set.Deduct {
		var onHand int
		err := pgTx.QueryRowContext(ctx, `
			UPDATE inventory_stocks
			SET on_hand = on_hand - $1, updated_at = now()
			WHERE product_id = $2 AND on_hand >= $1
			RETURNING on_hand
		`, delta.Quantity, delta.ProductID).Scan(&onHand)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("product %s: %w", delta.ProductID, store.ErrInsufficientStock)
		}
		if err != nil {
			return nil, txError(err)
		}
		changes = append(changes, domain.StockChange{
			ProductID: delta.ProductID,
			SKU:       delta.SKU,
			Delta:     -delta.Quantity,
			OnHand:    onHand,
			Source:    domain.StockSourceExchangeSale,
			SaleID:    sale.ID,
		})
	}

	now := time.Now().UTC()
	yearStart := time.Date(now.Year(), time.January, 1, 0, 0, 0, 0, time.UTC)

	var returnSeq int
	err = pgTx.QueryRowContext(ctx, `
		SELECT COUNT(*) + 1 FROM returns WHERE created_at >= $1
	`, yearStart).Scan(&returnSeq)
	if err != nil {
		return nil, txError(err)
	}
	ret.Number = fmt.Sprintf("SR-%d-%05d", now.Year(), returnSeq)

	var saleSeq int
	err = pgTx.QueryRowContext(ctx, `
		SELECT COUNT(*) + 1 FROM sales WHERE is_exchange = true AND created_at >= $1
	`, yearStart).Scan(&saleSeq)
	if err != nil {
		return nil, txError(err)
	}
	sale.Number = fmt.Sprintf("EX-%d-%05d", now.Year(), saleSeq)

	if ret.CreatedAt.IsZero() {
		ret.CreatedAt = now
	}
	ret.Status = domain.ReturnStatusProcessing
	_, err = pgTx.ExecContext(ctx, `
		INSERT INTO returns (
			id, number, sale_id, new_sale_id, return_type, status,
			subtotal_cents, tax_cents, total_cents, idempotency_key, notes,
			created_at, completed_at
		)
		VALUES ($1,$2,$3,NULL,$4,$5,$6,$7,$8,$9,$10,$11,NULL)
	`, ret.ID, ret.Number, ret.SaleID, ret.ReturnType, ret.Status,
		ret.SubtotalCents, ret.TaxCents, ret.TotalCents, nullIfEmpty(ret.IdempotencyKey), nullIfEmpty(ret.Notes),
		ret.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrDuplicateExchange
		}
		return nil, txError(err)
	}

	for i := range ret.Lines {
		line := &ret.Lines[i]
		line.ReturnID = ret.ID
		_, err = pgTx.ExecContext(ctx, `
			INSERT INTO return_lines (
				id, return_id, sale_item_id, product_id, qty,
				unit_credit_cents, credit_cents, reason_code, reason_notes, condition
			)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		`, line.ID, line.ReturnID, line.SaleItemID, line.ProductID, line.Quantity,
			line.UnitCreditCents, line.CreditCents, line.ReasonCode, nullIfEmpty(line.ReasonNotes), line.Condition)
		if err != nil {
			return nil, txError(err)
		}
	}

	if sale.CreatedAt.IsZero() {
		sale.CreatedAt = now
	}
	sale.Status = domain.SaleStatusCompleted
	sale.Exchange = true
	sale.ReturnID = ret.ID
	_, err = pgTx.ExecContext(ctx, `
		INSERT INTO sales (
			id, number, customer_id, register_id, region, status,
			subtotal_cents, tax_cents, total_cents, is_exchange,
			return_id, exchange_sale_id, notes, created_at
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,NULL,$12,$13)
	`, sale.ID, sale.Number, nullIfEmpty(sale.CustomerID), nullIfEmpty(sale.RegisterID), sale.Region, sale.Status,
		sale.SubtotalCents, sale.TaxCents, sale.TotalCents, sale.Exchange,
		sale.ReturnID, nullIfEmpty(sale.Notes), sale.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrDuplicateExchange
		}
		return nil, txError(err)
	}

	for i := range sale.Items {
		item := &sale.Items[i]
		item.SaleID = sale.ID
		_, err = pgTx.ExecContext(ctx, `
			INSERT INTO sale_items (
				id, sale_id, product_id, name, unit_price_cents, qty,
				discount_cents, tax_cents, taxable
			)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		`, item.ID, item.SaleID, item.ProductID, item.Name, item.UnitPriceCents, item.Quantity,
			item.DiscountCents, item.TaxCents, item.Taxable)
		if err != nil {
			return nil, txError(err)
		}
	}

	for i, line := range sale.TaxLines {
		_, err = pgTx.ExecContext(ctx, `
			INSERT INTO sale_tax_lines (sale_id, ordinal, name, rate, amount_cents)
			VALUES ($1,$2,$3,$4,$5)
		`, sale.ID, i, line.Name, line.Rate, line.AmountCents)
		if err != nil {
			return nil, txError(err)
		}
	}

	settlement := set.Settlement
	settlement.ReturnID = ret.ID
	settlement.NewSaleID = sale.ID
	settlement.Status = domain.SettlementStatusCompleted
	if settlement.CreatedAt.IsZero() {
		settlement.CreatedAt = now
	}

	var credit *domain.StoreCredit
	if set.StoreCredit != nil {
		issued := *set.StoreCredit
		if issued.IssuedAt.IsZero() {
			issued.IssuedAt = now
		}
		_, err = pgTx.ExecContext(ctx, `
			INSERT INTO store_credits (
				id, customer_id, code, original_cents, balance_cents,
				source_type, source_id, issued_at
			)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		`, issued.ID, nullIfEmpty(issued.CustomerID), issued.Code, issued.OriginalCents, issued.BalanceCents,
			issued.SourceType, issued.SourceID, issued.IssuedAt)
		if err != nil {
			if isUniqueViolation(err) {
				return nil, fmt.Errorf("store credit code taken: %w", store.ErrConflict)
			}
			return nil, txError(err)
		}
		credit = &issued

		if set.Ledger != nil {
			entry := *set.Ledger
			entry.CreditID = issued.ID
			if entry.CreatedAt.IsZero() {
				entry.CreatedAt = now
			}
			_, err = pgTx.ExecContext(ctx, `
				INSERT INTO credit_ledger (id, credit_id, entry_type, amount_cents, created_at)
				VALUES ($1,$2,$3,$4,$5)
			`, entry.ID, entry.CreditID, entry.Type, entry.AmountCents, entry.CreatedAt)
			if err != nil {
				return nil, txError(err)
			}
		}
		settlement.StoreCreditID = issued.ID
	}

	_, err = pgTx.ExecContext(ctx, `
		INSERT INTO settlements (
			id, return_id, new_sale_id, direction, method, amount_cents,
			card_brand, card_last_four, auth_code, cash_tendered_cents, change_due_cents,
			store_credit_id, status, created_at
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
	`, settlement.ID, settlement.ReturnID, settlement.NewSaleID, settlement.Direction, settlement.Method,
		settlement.AmountCents, nullIfEmpty(settlement.CardBrand), nullIfEmpty(settlement.CardLastFour),
		nullIfEmpty(settlement.AuthCode), settlement.CashTenderedCents, settlement.ChangeDueCents,
		nullIfEmpty(settlement.StoreCreditID), settlement.Status, settlement.CreatedAt)
	if err != nil {
		return nil, txError(err)
	}

	completedAt := now
	_, err = pgTx.ExecContext(ctx, `
		UPDATE returns
		SET status = $1, new_sale_id = $2, completed_at = $3
		WHERE id = $4
	`, domain.ReturnStatusCompleted, sale.ID, completedAt, ret.ID)
	if err != nil {
		return nil, txError(err)
	}

	_, err = pgTx.ExecContext(ctx, `
		UPDATE sales
		SET exchange_sale_id = $1
		WHERE id = $2
	`, sale.ID, ret.SaleID)
	if err != nil {
		return nil, txError(err)
	}

	if err := pgTx.Commit(); err != nil {
		return nil, txError(err)
	}

	ret.Status = domain.ReturnStatusCompleted
	ret.NewSaleID = sale.ID
	ret.CompletedAt = &completedAt

	return &domain.ExchangeOutcome{
		Return:       ret,
		NewSale:      sale,
		Settlement:   settlement,
		StoreCredit:  credit,
		StockChanges: changes,
	}, nil
}

func itemQuantities(ctx context.Context, pgTx *sql.Tx, saleID string) (map[string]int, error) {
	rows, err := pgTx.QueryContext(ctx, `
		SELECT id, qty FROM sale_items WHERE sale_id = $1
	`, saleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	quantities := make(map[string]int, 8)
	for rows.Next() {
		var id string
		var qty int
		if err := rows.Scan(&id, &qty); err != nil {
			return nil, err
		}
		quantities[id] = qty
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return quantities, nil
}

func returnedQuantities(ctx context.Context, pgTx *sql.Tx, saleID string) (map[string]int, error) {
	rows, err := pgTx.QueryContext(ctx, `
		SELECT rl.sale_item_id, COALESCE(SUM(rl.qty), 0)::int
		FROM return_lines rl
		JOIN returns r ON r.id = rl.return_id
		WHERE r.sale_id = $1
		GROUP BY rl.sale_item_id
	`, saleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	returned := make(map[string]int, 8)
	for rows.Next() {
		var saleItemID string
		var qty int
		if err := rows.Scan(&saleItemID, &qty); err != nil {
			return nil, err
		}
		returned[saleItemID] = qty
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return returned, nil
}

func (s *Store) GetExchange(ctx context.Context, returnID string) (*domain.ExchangeDetail, error) {
	ret, err := s.findReturn(ctx, "id", returnID)
	if err != nil {
		return nil, err
	}

	detail := &domain.ExchangeDetail{Return: *ret}

	if ret.NewSaleID != "" {
		sale, err := s.GetSale(ctx, ret.NewSaleID)
		if err != nil {
			return nil, err
		}
		detail.NewSale = *sale
	}

	var settlement domain.Settlement
	var cardBrand, cardLastFour, authCode, storeCreditID sql.NullString
	err = s.db.QueryRowContext(ctx, `
		SELECT id, return_id, new_sale_id, direction, method, amount_cents,
			card_brand, card_last_four, auth_code, cash_tendered_cents, change_due_cents,
			store_credit_id, status, created_at
		FROM settlements
		WHERE return_id = $1
	`, ret.ID).Scan(&settlement.ID, &settlement.ReturnID, &settlement.NewSaleID, &settlement.Direction,
		&settlement.Method, &settlement.AmountCents, &cardBrand, &cardLastFour, &authCode,
		&settlement.CashTenderedCents, &settlement.ChangeDueCents, &storeCreditID,
		&settlement.Status, &settlement.CreatedAt)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err == nil {
		settlement.CardBrand = cardBrand.String
		settlement.CardLastFour = cardLastFour.String
		settlement.AuthCode = authCode.String
		settlement.StoreCreditID = storeCreditID.String
		detail.Settlement = settlement
	}

	if detail.Settlement.StoreCreditID != "" {
		var credit domain.StoreCredit
		var customerID sql.NullString
		err = s.db.QueryRowContext(ctx, `
			SELECT id, customer_id, code, original_cents, balance_cents, source_type, source_id, issued_at
			FROM store_credits
			WHERE id = $1
		`, detail.Settlement.StoreCreditID).Scan(&credit.ID, &customerID, &credit.Code,
			&credit.OriginalCents, &credit.BalanceCents, &credit.SourceType, &credit.SourceID, &credit.IssuedAt)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		if err == nil {
			credit.CustomerID = customerID.String
			detail.StoreCredit = &credit
		}
	}

	return detail, nil
}

func (s *Store) StoreCreditCodeExists(ctx context.Context, code string) (bool, error) {
	if code == "" {
		return false, nil
	}
	var exists bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM store_credits WHERE code = $1)
	`, code).Scan(&exists)
	if err != nil {
		return false, err
	}
	return exists, nil
}

func (s *Store) CreateAuditLog(ctx context.Context, entry domain.AuditLog) error {
	if entry.ID == "" {
		entry.ID = xid.New("audit")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_logs (
			id, actor_username, actor_role, action, entity_type, entity_id, detail, created_at
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, entry.ID, entry.ActorUsername, entry.ActorRole, entry.Action, entry.EntityType, entry.EntityID, entry.Detail, entry.CreatedAt)
	return err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

// Serialization failures and deadlocks are retryable; surface them as conflicts
// so callers can re-submit instead of treating them as hard errors.
func isSerializationFailure(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "40001" || pgErr.Code == "40P01"
	}
	return false
}

func txError(err error) error {
	if isSerializationFailure(err) {
		return fmt.Errorf("concurrent exchange aborted: %w", store.ErrConflict)
	}
	return err
}

func nullIfEmpty(val string) any {
	if val == "" {
		return nil
	}
	return val
}
