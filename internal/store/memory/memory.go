package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"retex/internal/domain"
	"retex/internal/store"
)

type Store struct {
	mu                 sync.RWMutex
	products           map[string]domain.Product
	inventory          map[string]int
	sales              map[string]*domain.Sale
	returns            map[string]*domain.ReturnRecord
	returnsByIdem      map[string]string
	settlements        map[string]domain.Settlement
	settlementByReturn map[string]string
	credits            map[string]domain.StoreCredit
	creditIDByCode     map[string]string
	ledger             map[string][]domain.CreditLedgerEntry
	auditLogs          []domain.AuditLog
	returnSeq          map[int]int
	exchangeSeq        map[int]int
}

// NewSeeded builds the dev/demo store: a small home-furnishings catalog and a
// few completed sales that exchanges can run against. The backend uses
// PostgreSQL when DATABASE_URL is set.
func NewSeeded() *Store {
	products := []domain.Product{
		{ID: "p-1001", SKU: "CHAIR-OAK", Name: "Oak Dining Chair", PriceCents: 5000, Taxable: true, Active: true},
		{ID: "p-1002", SKU: "TABLE-WALNUT", Name: "Walnut Coffee Table", PriceCents: 24900, Taxable: true, Active: true},
		{ID: "p-1003", SKU: "LAMP-BRASS", Name: "Brass Floor Lamp", PriceCents: 12900, Taxable: true, Active: true},
		{ID: "p-1004", SKU: "RUG-WOOL", Name: "Wool Area Rug 8x10", PriceCents: 39900, Taxable: true, Active: true},
		{ID: "p-1005", SKU: "GIFTCARD-50", Name: "Gift Card $50", PriceCents: 5000, Taxable: false, Active: true},
		{ID: "p-1006", SKU: "SOFA-LINEN", Name: "Linen Sofa", PriceCents: 129900, Taxable: true, Active: true},
		{ID: "p-1007", SKU: "SHELF-PINE", Name: "Pine Bookshelf", PriceCents: 18900, Taxable: true, Active: true},
		{ID: "p-1008", SKU: "DESK-STEEL", Name: "Steel Writing Desk", PriceCents: 44900, Taxable: true, Active: false},
	}

	productMap := make(map[string]domain.Product, len(products))
	inventory := make(map[string]int, len(products))
	for _, p := range products {
		productMap[p.ID] = p
	}
	inventory["p-1001"] = 24
	inventory["p-1002"] = 8
	inventory["p-1003"] = 15
	inventory["p-1004"] = 6
	inventory["p-1005"] = 50
	inventory["p-1006"] = 3
	inventory["p-1007"] = 12
	inventory["p-1008"] = 4

	hst13 := decimal.RequireFromString("0.13")
	gst5 := decimal.RequireFromString("0.05")
	pst7 := decimal.RequireFromString("0.07")

	sales := map[string]*domain.Sale{
		"sale-1001": {
			ID:            "sale-1001",
			Number:        "INV-2026-00117",
			CustomerID:    "cust-201",
			RegisterID:    "front-1",
			Region:        "ON",
			Status:        domain.SaleStatusCompleted,
			SubtotalCents: 10000,
			TaxCents:      1300,
			TaxLines:      []domain.TaxLine{{Name: "HST", Rate: hst13, AmountCents: 1300}},
			TotalCents:    11300,
			CreatedAt:     time.Date(2026, time.July, 14, 15, 42, 0, 0, time.UTC),
			Items: []domain.SaleItem{
				{ID: "li-1001", SaleID: "sale-1001", ProductID: "p-1001", Name: "Oak Dining Chair", UnitPriceCents: 5000, Quantity: 2, DiscountCents: 0, TaxCents: 1300, Taxable: true},
			},
		},
		"sale-1002": {
			ID:            "sale-1002",
			Number:        "INV-2026-00118",
			CustomerID:    "cust-202",
			RegisterID:    "front-2",
			Region:        "BC",
			Status:        domain.SaleStatusCompleted,
			SubtotalCents: 54800,
			TaxCents:      5976,
			TaxLines: []domain.TaxLine{
				{Name: "GST", Rate: gst5, AmountCents: 2490},
				{Name: "PST", Rate: pst7, AmountCents: 3486},
			},
			TotalCents: 60776,
			CreatedAt:  time.Date(2026, time.July, 19, 11, 5, 0, 0, time.UTC),
			Items: []domain.SaleItem{
				{ID: "li-1002", SaleID: "sale-1002", ProductID: "p-1003", Name: "Brass Floor Lamp", UnitPriceCents: 12900, Quantity: 4, DiscountCents: 1800, TaxCents: 5976, Taxable: true},
				{ID: "li-1003", SaleID: "sale-1002", ProductID: "p-1005", Name: "Gift Card $50", UnitPriceCents: 5000, Quantity: 1, DiscountCents: 0, TaxCents: 0, Taxable: false},
			},
		},
		"sale-1003": {
			ID:            "sale-1003",
			Number:        "INV-2026-00121",
			CustomerID:    "cust-203",
			RegisterID:    "front-1",
			Region:        "ON",
			Status:        domain.SaleStatusVoided,
			SubtotalCents: 5000,
			TaxCents:      650,
			TaxLines:      []domain.TaxLine{{Name: "HST", Rate: hst13, AmountCents: 650}},
			TotalCents:    5650,
			CreatedAt:     time.Date(2026, time.July, 21, 9, 18, 0, 0, time.UTC),
			Items: []domain.SaleItem{
				{ID: "li-1004", SaleID: "sale-1003", ProductID: "p-1001", Name: "Oak Dining Chair", UnitPriceCents: 5000, Quantity: 1, DiscountCents: 0, TaxCents: 650, Taxable: true},
			},
		},
		"sale-1004": {
			ID:            "sale-1004",
			Number:        "INV-2026-00124",
			CustomerID:    "cust-204",
			RegisterID:    "front-1",
			Region:        "ON",
			Status:        domain.SaleStatusCompleted,
			SubtotalCents: 0,
			TaxCents:      0,
			TotalCents:    0,
			Notes:         "floor-model giveaway",
			CreatedAt:     time.Date(2026, time.August, 2, 13, 27, 0, 0, time.UTC),
			Items: []domain.SaleItem{
				{ID: "li-1005", SaleID: "sale-1004", ProductID: "p-1007", Name: "Pine Bookshelf", UnitPriceCents: 0, Quantity: 1, DiscountCents: 0, TaxCents: 0, Taxable: true},
			},
		},
	}

	return &Store{
		products:           productMap,
		inventory:          inventory,
		sales:              sales,
		returns:            make(map[string]*domain.ReturnRecord),
		returnsByIdem:      make(map[string]string),
		settlements:        make(map[string]domain.Settlement),
		settlementByReturn: make(map[string]string),
		credits:            make(map[string]domain.StoreCredit),
		creditIDByCode:     make(map[string]string),
		ledger:             make(map[string][]domain.CreditLedgerEntry),
		auditLogs:          make([]domain.AuditLog, 0, 64),
		returnSeq:          make(map[int]int),
		exchangeSeq:        make(map[int]int),
	}
}

func (s *Store) GetSale(_ context.Context, id string) (*domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sale, exists := s.sales[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	return copySale(sale), nil
}

func (s *Store) GetProductsByIDs(_ context.Context, ids []string) (map[string]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make(map[string]domain.Product, len(ids))
	for _, id := range ids {
		if product, exists := s.products[id]; exists {
			result[id] = product
		}
	}
	return result, nil
}

func (s *Store) GetOnHand(_ context.Context, productIDs []string) (map[string]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	onHand := make(map[string]int, len(productIDs))
	for _, id := range productIDs {
		onHand[id] = s.inventory[id]
	}
	return onHand, nil
}

func (s *Store) ReturnedQtyBySale(_ context.Context, saleID string) (map[string]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, exists := s.sales[saleID]; !exists {
		return nil, store.ErrNotFound
	}
	return s.returnedQtyLocked(saleID), nil
}

func (s *Store) returnedQtyLocked(saleID string) map[string]int {
	returned := make(map[string]int)
	for _, ret := range s.returns {
		if ret.SaleID != saleID {
			continue
		}
		for _, line := range ret.Lines {
			returned[line.SaleItemID] += line.Quantity
		}
	}
	return returned
}

func (s *Store) FindReturnByIdempotency(_ context.Context, key string) (*domain.ReturnRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, exists := s.returnsByIdem[key]
	if !exists {
		return nil, store.ErrNotFound
	}
	ret := *s.returns[id]
	ret.Lines = append([]domain.ReturnLine(nil), ret.Lines...)
	return &ret, nil
}

// CreateExchange applies one assembled exchange under a single lock: every
// validation runs against current state before the first write, so a failure
// leaves the store untouched.
func (s *Store) CreateExchange(_ context.Context, set domain.ExchangeSet) (*domain.ExchangeOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ret := set.Return
	sale := set.NewSale
	if ret.ID == "" || sale.ID == "" || len(ret.Lines) == 0 || len(sale.Items) == 0 {
		return nil, store.ErrInvalidExchange
	}

	if ret.IdempotencyKey != "" {
		if _, exists := s.returnsByIdem[ret.IdempotencyKey]; exists {
			return nil, store.ErrDuplicateExchange
		}
	}

	original, exists := s.sales[ret.SaleID]
	if !exists {
		return nil, store.ErrNotFound
	}
	if original.Status != domain.SaleStatusCompleted {
		return nil, fmt.Errorf("sale %s is %s: %w", original.ID, original.Status, store.ErrConflict)
	}

	originalQty := make(map[string]int, len(original.Items))
	for _, item := range original.Items {
		originalQty[item.ID] = item.Quantity
	}
	returned := s.returnedQtyLocked(ret.SaleID)
	requested := make(map[string]int, len(ret.Lines))
	for _, line := range ret.Lines {
		if line.Quantity < 1 {
			return nil, store.ErrInvalidExchange
		}
		requested[line.SaleItemID] += line.Quantity
	}
	for itemID, qty := range requested {
		limit, ok := originalQty[itemID]
		if !ok {
			return nil, store.ErrNotFound
		}
		if returned[itemID]+qty > limit {
			return nil, fmt.Errorf("line %s has %d returnable units left: %w", itemID, limit-returned[itemID], store.ErrConflict)
		}
	}

	// Units restocked by the return side are available to the new-sale side,
	// so a product appearing on both sides nets its own two deltas.
	available := make(map[string]int, len(set.Deduct))
	for _, d := range set.Deduct {
		available[d.ProductID] = s.inventory[d.ProductID]
	}
	for _, d := range set.Restock {
		if _, tracked := available[d.ProductID]; tracked {
			available[d.ProductID] += d.Quantity
		}
	}
	for _, d := range set.Deduct {
		if available[d.ProductID] < d.Quantity {
			return nil, fmt.Errorf("product %s: %w", d.ProductID, store.ErrInsufficientStock)
		}
		available[d.ProductID] -= d.Quantity
	}

	if set.StoreCredit != nil {
		if _, taken := s.creditIDByCode[set.StoreCredit.Code]; taken {
			return nil, fmt.Errorf("store credit code already issued: %w", store.ErrConflict)
		}
	}

	// Past the last validation: apply every effect.
	now := time.Now().UTC()
	year := now.Year()

	changes := make([]domain.StockChange, 0, len(set.Restock)+len(set.Deduct))
	for _, d := range set.Restock {
		s.inventory[d.ProductID] += d.Quantity
		changes = append(changes, domain.StockChange{
			ProductID: d.ProductID,
			SKU:       d.SKU,
			Delta:     d.Quantity,
			OnHand:    s.inventory[d.ProductID],
			Source:    domain.StockSourceExchangeReturn,
			ReturnID:  ret.ID,
		})
	}
	for _, d := range set.Deduct {
		s.inventory[d.ProductID] -= d.Quantity
		changes = append(changes, domain.StockChange{
			ProductID: d.ProductID,
			SKU:       d.SKU,
			Delta:     -d.Quantity,
			OnHand:    s.inventory[d.ProductID],
			Source:    domain.StockSourceExchangeSale,
			SaleID:    sale.ID,
		})
	}

	s.returnSeq[year]++
	ret.Number = fmt.Sprintf("SR-%d-%05d", year, s.returnSeq[year])
	if ret.CreatedAt.IsZero() {
		ret.CreatedAt = now
	}
	for i := range ret.Lines {
		ret.Lines[i].ReturnID = ret.ID
	}

	s.exchangeSeq[year]++
	sale.Number = fmt.Sprintf("EX-%d-%05d", year, s.exchangeSeq[year])
	sale.Status = domain.SaleStatusCompleted
	sale.Exchange = true
	sale.ReturnID = ret.ID
	if sale.CreatedAt.IsZero() {
		sale.CreatedAt = now
	}
	for i := range sale.Items {
		sale.Items[i].SaleID = sale.ID
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
		c := *set.StoreCredit
		if c.IssuedAt.IsZero() {
			c.IssuedAt = now
		}
		s.credits[c.ID] = c
		s.creditIDByCode[c.Code] = c.ID
		if set.Ledger != nil {
			entry := *set.Ledger
			entry.CreditID = c.ID
			if entry.CreatedAt.IsZero() {
				entry.CreatedAt = now
			}
			s.ledger[c.ID] = append(s.ledger[c.ID], entry)
		}
		copied := c
		credit = &copied
	}

	completed := now
	ret.NewSaleID = sale.ID
	ret.Status = domain.ReturnStatusCompleted
	ret.CompletedAt = &completed

	retCopy := ret
	retCopy.Lines = append([]domain.ReturnLine(nil), ret.Lines...)
	s.returns[ret.ID] = &retCopy
	if ret.IdempotencyKey != "" {
		s.returnsByIdem[ret.IdempotencyKey] = ret.ID
	}

	saleCopy := sale
	saleCopy.Items = append([]domain.SaleItem(nil), sale.Items...)
	saleCopy.TaxLines = append([]domain.TaxLine(nil), sale.TaxLines...)
	s.sales[sale.ID] = &saleCopy

	s.settlements[settlement.ID] = settlement
	s.settlementByReturn[ret.ID] = settlement.ID

	original.ExchangeSaleID = sale.ID

	return &domain.ExchangeOutcome{
		Return:       ret,
		NewSale:      sale,
		Settlement:   settlement,
		StoreCredit:  credit,
		StockChanges: changes,
	}, nil
}

func (s *Store) GetExchange(_ context.Context, returnID string) (*domain.ExchangeDetail, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ret, exists := s.returns[returnID]
	if !exists {
		return nil, store.ErrNotFound
	}

	detail := domain.ExchangeDetail{Return: *ret}
	detail.Return.Lines = append([]domain.ReturnLine(nil), ret.Lines...)

	if sale, ok := s.sales[ret.NewSaleID]; ok {
		detail.NewSale = *copySale(sale)
	}
	if settlementID, ok := s.settlementByReturn[returnID]; ok {
		settlement := s.settlements[settlementID]
		detail.Settlement = settlement
		if settlement.StoreCreditID != "" {
			if credit, ok := s.credits[settlement.StoreCreditID]; ok {
				copied := credit
				detail.StoreCredit = &copied
			}
		}
	}
	return &detail, nil
}

func (s *Store) StoreCreditCodeExists(_ context.Context, code string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, exists := s.creditIDByCode[code]
	return exists, nil
}

func (s *Store) CreateAuditLog(_ context.Context, entry domain.AuditLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	s.auditLogs = append(s.auditLogs, entry)
	return nil
}

func (s *Store) Ping(_ context.Context) error {
	return nil
}

// CountReturns reports how many exchange returns the store holds. Used by
// tests to assert that failed exchanges leave nothing behind.
func (s *Store) CountReturns() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.returns)
}

// CreditLedger returns the ledger entries for one store credit.
func (s *Store) CreditLedger(creditID string) []domain.CreditLedgerEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.CreditLedgerEntry(nil), s.ledger[creditID]...)
}

// AuditLogs returns every audit entry written so far, oldest first.
func (s *Store) AuditLogs() []domain.AuditLog {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.AuditLog(nil), s.auditLogs...)
}

func copySale(sale *domain.Sale) *domain.Sale {
	copied := *sale
	copied.Items = append([]domain.SaleItem(nil), sale.Items...)
	copied.TaxLines = append([]domain.TaxLine(nil), sale.TaxLines...)
	return &copied
}
