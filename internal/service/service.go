package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"retex/internal/domain"
	"retex/internal/notify"
	"retex/internal/store"
	"retex/internal/tax"
	"retex/internal/xid"
)

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

type Service struct {
	repo              store.Repository
	taxes             *tax.Table
	notifier          notify.StockNotifier
	defaultRegisterID string
}

func New(repo store.Repository, taxes *tax.Table, notifier notify.StockNotifier, defaultRegisterID string) *Service {
	if defaultRegisterID == "" {
		defaultRegisterID = "front-1"
	}
	if notifier == nil {
		notifier = notify.NoopStockNotifier{}
	}

	return &Service{
		repo:              repo,
		taxes:             taxes,
		notifier:          notifier,
		defaultRegisterID: defaultRegisterID,
	}
}

// returnValuation is the credit side of an exchange: what the customer gets
// back for the units they hand in, priced at what they actually paid.
type returnValuation struct {
	lines         []domain.ReturnLine
	subtotalCents int64
	taxCents      int64
	totalCents    int64
	returnType    string
	restock       []domain.StockDelta
}

// saleValuation is the charge side: replacement items priced from the current
// catalog and taxed at today's rates for the original sale's region.
type saleValuation struct {
	items         []domain.SaleItem
	subtotalCents int64
	taxCents      int64
	taxLines      []domain.TaxLine
	totalCents    int64
	deduct        []domain.StockDelta
}

func (s *Service) ExecuteExchange(ctx context.Context, req domain.ExchangeRequest) (domain.ExchangeResponse, error) {
	if req.SaleID == "" {
		return domain.ExchangeResponse{}, fmt.Errorf("sale_id required: %w", store.ErrInvalidExchange)
	}
	if len(req.ReturnItems) == 0 {
		return domain.ExchangeResponse{}, fmt.Errorf("at least one return item required: %w", store.ErrInvalidExchange)
	}
	if len(req.NewItems) == 0 {
		return domain.ExchangeResponse{}, fmt.Errorf("at least one replacement item required: %w", store.ErrInvalidExchange)
	}

	if req.RegisterID == "" {
		req.RegisterID = s.defaultRegisterID
	}
	req.PaymentMethod = strings.ToLower(strings.TrimSpace(req.PaymentMethod))
	req.RefundMethod = strings.ToLower(strings.TrimSpace(req.RefundMethod))
	if req.RefundMethod == "" {
		req.RefundMethod = domain.MethodStoreCredit
	}
	if req.IdempotencyKey == "" {
		req.IdempotencyKey = xid.New("exid")
	}

	if existing, err := s.repo.FindReturnByIdempotency(ctx, req.IdempotencyKey); err == nil {
		return s.replayResponse(ctx, existing)
	} else if !errors.Is(err, store.ErrNotFound) {
		return domain.ExchangeResponse{}, err
	}

	sale, err := s.repo.GetSale(ctx, req.SaleID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.ExchangeResponse{}, fmt.Errorf("sale %s: %w", req.SaleID, store.ErrNotFound)
		}
		return domain.ExchangeResponse{}, err
	}
	if sale.Status != domain.SaleStatusCompleted {
		return domain.ExchangeResponse{}, fmt.Errorf("sale %s is %s, only completed sales can be exchanged: %w",
			sale.ID, sale.Status, store.ErrInvalidExchange)
	}

	returnedQty, err := s.repo.ReturnedQtyBySale(ctx, sale.ID)
	if err != nil {
		return domain.ExchangeResponse{}, err
	}

	products, err := s.loadProducts(ctx, sale, req.ReturnItems, req.NewItems)
	if err != nil {
		return domain.ExchangeResponse{}, err
	}

	rv, err := s.valueReturn(sale, returnedQty, req.ReturnItems, products)
	if err != nil {
		return domain.ExchangeResponse{}, err
	}

	nv, err := s.valueNewSale(sale.Region, req.NewItems, products)
	if err != nil {
		return domain.ExchangeResponse{}, err
	}

	if err := s.checkStock(ctx, rv.restock, nv.deduct); err != nil {
		return domain.ExchangeResponse{}, err
	}

	differenceCents := nv.totalCents - rv.totalCents

	returnID := xid.New("ret")
	saleID := xid.New("sale")
	now := time.Now().UTC()

	settlement := domain.Settlement{
		ID:        xid.New("set"),
		Direction: domain.SettlementEven,
		Method:    domain.MethodNone,
	}
	var credit *domain.StoreCredit
	var ledgerEntry *domain.CreditLedgerEntry

	switch {
	case differenceCents > 0:
		settlement.Direction = domain.SettlementCharge
		settlement.AmountCents = differenceCents
		switch req.PaymentMethod {
		case domain.MethodCard:
			if strings.TrimSpace(req.AuthCode) == "" {
				return domain.ExchangeResponse{}, fmt.Errorf("card payment requires auth_code: %w", store.ErrInvalidExchange)
			}
			settlement.Method = domain.MethodCard
			settlement.CardBrand = strings.TrimSpace(req.CardBrand)
			settlement.CardLastFour = strings.TrimSpace(req.CardLastFour)
			settlement.AuthCode = strings.TrimSpace(req.AuthCode)
		case domain.MethodCash:
			if req.CashTenderedCents < differenceCents {
				return domain.ExchangeResponse{}, fmt.Errorf("cash tendered %d below amount due %d: %w",
					req.CashTenderedCents, differenceCents, store.ErrInvalidExchange)
			}
			settlement.Method = domain.MethodCash
			settlement.CashTenderedCents = req.CashTenderedCents
			settlement.ChangeDueCents = req.CashTenderedCents - differenceCents
		case "":
			return domain.ExchangeResponse{}, fmt.Errorf("payment_method required when customer owes %d: %w",
				differenceCents, store.ErrInvalidExchange)
		default:
			return domain.ExchangeResponse{}, fmt.Errorf("unsupported payment_method %q: %w",
				req.PaymentMethod, store.ErrInvalidExchange)
		}
	case differenceCents < 0:
		refundCents := -differenceCents
		settlement.Direction = domain.SettlementRefund
		settlement.AmountCents = refundCents
		switch req.RefundMethod {
		case domain.MethodStoreCredit:
			code, err := s.generateCreditCode(ctx)
			if err != nil {
				return domain.ExchangeResponse{}, err
			}
			credit = &domain.StoreCredit{
				ID:            xid.New("cred"),
				CustomerID:    sale.CustomerID,
				Code:          code,
				OriginalCents: refundCents,
				BalanceCents:  refundCents,
				SourceType:    domain.CreditSourceReturn,
				SourceID:      returnID,
				IssuedAt:      now,
			}
			ledgerEntry = &domain.CreditLedgerEntry{
				ID:          xid.New("led"),
				CreditID:    credit.ID,
				Type:        domain.CreditEntryIssue,
				AmountCents: refundCents,
				CreatedAt:   now,
			}
			settlement.Method = domain.MethodStoreCredit
			settlement.StoreCreditID = credit.ID
		case domain.MethodOriginalPayment:
			settlement.Method = domain.MethodOriginalPayment
		case domain.MethodCash:
			settlement.Method = domain.MethodCash
		default:
			return domain.ExchangeResponse{}, fmt.Errorf("unsupported refund_method %q: %w",
				req.RefundMethod, store.ErrInvalidExchange)
		}
	}

	set := domain.ExchangeSet{
		Return: domain.ReturnRecord{
			ID:             returnID,
			SaleID:         sale.ID,
			ReturnType:     rv.returnType,
			Status:         domain.ReturnStatusProcessing,
			SubtotalCents:  rv.subtotalCents,
			TaxCents:       rv.taxCents,
			TotalCents:     rv.totalCents,
			Exchange:       true,
			IdempotencyKey: req.IdempotencyKey,
			Notes:          strings.TrimSpace(req.Notes),
			CreatedAt:      now,
			Lines:          rv.lines,
		},
		NewSale: domain.Sale{
			ID:            saleID,
			CustomerID:    sale.CustomerID,
			RegisterID:    req.RegisterID,
			Region:        sale.Region,
			Status:        domain.SaleStatusCompleted,
			SubtotalCents: nv.subtotalCents,
			TaxCents:      nv.taxCents,
			TaxLines:      nv.taxLines,
			TotalCents:    nv.totalCents,
			Exchange:      true,
			Notes:         fmt.Sprintf("exchange against %s", sale.Number),
			CreatedAt:     now,
			Items:         nv.items,
		},
		Settlement:  settlement,
		StoreCredit: credit,
		Ledger:      ledgerEntry,
		Restock:     rv.restock,
		Deduct:      nv.deduct,
	}

	outcome, err := s.repo.CreateExchange(ctx, set)
	if err != nil {
		if errors.Is(err, store.ErrDuplicateExchange) {
			if existing, findErr := s.repo.FindReturnByIdempotency(ctx, req.IdempotencyKey); findErr == nil {
				return s.replayResponse(ctx, existing)
			}
			return domain.ExchangeResponse{}, err
		}
		return domain.ExchangeResponse{}, err
	}

	if err := s.notifier.StockChanged(ctx, outcome.StockChanges); err != nil {
		log.Printf("[service] WARN: failed to queue stock sync return=%s: %v", outcome.Return.ID, err)
	}

	s.logAudit(
		ctx,
		"exchange_process",
		"return",
		outcome.Return.ID,
		fmt.Sprintf(
			"return_total=%d,new_total=%d,difference=%d,direction=%s,method=%s,type=%s",
			outcome.Return.TotalCents,
			outcome.NewSale.TotalCents,
			differenceCents,
			outcome.Settlement.Direction,
			outcome.Settlement.Method,
			outcome.Return.ReturnType,
		),
	)

	return toExchangeResponse(outcome.Return, outcome.NewSale, outcome.Settlement, outcome.StoreCredit, false), nil
}

func (s *Service) PreviewExchange(ctx context.Context, req domain.ExchangePreviewRequest) (domain.ExchangePreview, error) {
	if req.SaleID == "" {
		return domain.ExchangePreview{}, fmt.Errorf("sale_id required: %w", store.ErrInvalidExchange)
	}
	if len(req.ReturnItems) == 0 {
		return domain.ExchangePreview{}, fmt.Errorf("at least one return item required: %w", store.ErrInvalidExchange)
	}
	if len(req.NewItems) == 0 {
		return domain.ExchangePreview{}, fmt.Errorf("at least one replacement item required: %w", store.ErrInvalidExchange)
	}

	sale, err := s.repo.GetSale(ctx, req.SaleID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.ExchangePreview{}, fmt.Errorf("sale %s: %w", req.SaleID, store.ErrNotFound)
		}
		return domain.ExchangePreview{}, err
	}
	if sale.Status != domain.SaleStatusCompleted {
		return domain.ExchangePreview{}, fmt.Errorf("sale %s is %s, only completed sales can be exchanged: %w",
			sale.ID, sale.Status, store.ErrInvalidExchange)
	}

	returnedQty, err := s.repo.ReturnedQtyBySale(ctx, sale.ID)
	if err != nil {
		return domain.ExchangePreview{}, err
	}

	products, err := s.loadProducts(ctx, sale, req.ReturnItems, req.NewItems)
	if err != nil {
		return domain.ExchangePreview{}, err
	}

	rv, err := s.valueReturn(sale, returnedQty, req.ReturnItems, products)
	if err != nil {
		return domain.ExchangePreview{}, err
	}

	nv, err := s.valueNewSale(sale.Region, req.NewItems, products)
	if err != nil {
		return domain.ExchangePreview{}, err
	}

	differenceCents := nv.totalCents - rv.totalCents

	return domain.ExchangePreview{
		ReturnSubtotalCents: rv.subtotalCents,
		ReturnTaxCents:      rv.taxCents,
		ReturnTotalCents:    rv.totalCents,
		NewSubtotalCents:    nv.subtotalCents,
		NewTaxCents:         nv.taxCents,
		NewTaxLines:         nv.taxLines,
		NewSaleTotalCents:   nv.totalCents,
		DifferenceCents:     differenceCents,
		CustomerOwes:        differenceCents > 0,
		CustomerRefund:      differenceCents < 0,
		EvenExchange:        differenceCents == 0,
	}, nil
}

func (s *Service) GetExchange(ctx context.Context, returnID string) (*domain.ExchangeDetail, error) {
	if returnID == "" {
		return nil, store.ErrNotFound
	}
	return s.repo.GetExchange(ctx, returnID)
}

func (s *Service) Ping(ctx context.Context) error {
	return s.repo.Ping(ctx)
}

func (s *Service) replayResponse(ctx context.Context, existing *domain.ReturnRecord) (domain.ExchangeResponse, error) {
	detail, err := s.repo.GetExchange(ctx, existing.ID)
	if err != nil {
		return domain.ExchangeResponse{}, err
	}
	return toExchangeResponse(detail.Return, detail.NewSale, detail.Settlement, detail.StoreCredit, true), nil
}

// loadProducts fetches the catalog rows both sides of the exchange touch. A
// return-side product missing from the catalog is tolerated; the sale item
// already carries the price that matters.
func (s *Service) loadProducts(ctx context.Context, sale *domain.Sale, returnItems []domain.ReturnLineRequest, newItems []domain.NewItemRequest) (map[string]domain.Product, error) {
	itemProducts := make(map[string]string, len(sale.Items))
	for _, item := range sale.Items {
		itemProducts[item.ID] = item.ProductID
	}

	seen := make(map[string]struct{}, len(returnItems)+len(newItems))
	ids := make([]string, 0, len(returnItems)+len(newItems))
	add := func(id string) {
		if id == "" {
			return
		}
		if _, ok := seen[id]; ok {
			return
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	for _, line := range returnItems {
		add(itemProducts[line.SaleItemID])
	}
	for _, item := range newItems {
		add(item.ProductID)
	}

	return s.repo.GetProductsByIDs(ctx, ids)
}

func (s *Service) valueReturn(sale *domain.Sale, returnedQty map[string]int, requests []domain.ReturnLineRequest, products map[string]domain.Product) (returnValuation, error) {
	itemsByID := make(map[string]domain.SaleItem, len(sale.Items))
	for _, item := range sale.Items {
		itemsByID[item.ID] = item
	}

	requested := make(map[string]int, len(requests))
	for _, line := range requests {
		if line.SaleItemID == "" {
			return returnValuation{}, fmt.Errorf("return line missing sale_item_id: %w", store.ErrInvalidExchange)
		}
		if line.Quantity < 1 {
			return returnValuation{}, fmt.Errorf("return line for %s needs quantity >= 1: %w", line.SaleItemID, store.ErrInvalidExchange)
		}
		if strings.TrimSpace(line.ReasonCode) == "" {
			return returnValuation{}, fmt.Errorf("return line for %s missing reason_code: %w", line.SaleItemID, store.ErrInvalidExchange)
		}
		requested[line.SaleItemID] += line.Quantity
	}

	for saleItemID, qty := range requested {
		item, ok := itemsByID[saleItemID]
		if !ok {
			return returnValuation{}, fmt.Errorf("sale item %s not on sale %s: %w", saleItemID, sale.ID, store.ErrNotFound)
		}
		remaining := item.Quantity - returnedQty[saleItemID]
		if qty > remaining {
			return returnValuation{}, fmt.Errorf("sale item %s has %d unit(s) left to return, %d requested: %w",
				saleItemID, remaining, qty, store.ErrInvalidExchange)
		}
	}

	rv := returnValuation{lines: make([]domain.ReturnLine, 0, len(requests))}
	restockQty := make(map[string]int, len(requests))
	for _, line := range requests {
		item := itemsByID[line.SaleItemID]

		condition := strings.ToLower(strings.TrimSpace(line.Condition))
		if condition == "" {
			condition = domain.ConditionSellable
		}
		switch condition {
		case domain.ConditionSellable, domain.ConditionDamaged, domain.ConditionDefective:
		default:
			return returnValuation{}, fmt.Errorf("unknown condition %q: %w", line.Condition, store.ErrInvalidExchange)
		}

		unitCredit := unitCreditCents(item)
		creditCents := unitCredit * int64(line.Quantity)
		rv.subtotalCents += creditCents
		restockQty[item.ProductID] += line.Quantity

		rv.lines = append(rv.lines, domain.ReturnLine{
			ID:              xid.New("rline"),
			SaleItemID:      item.ID,
			ProductID:       item.ProductID,
			Quantity:        line.Quantity,
			UnitCreditCents: unitCredit,
			CreditCents:     creditCents,
			ReasonCode:      strings.TrimSpace(line.ReasonCode),
			ReasonNotes:     strings.TrimSpace(line.ReasonNotes),
			Condition:       condition,
		})
	}

	rv.taxCents = proRatedTaxCredit(sale.TaxCents, rv.subtotalCents, sale.SubtotalCents)
	rv.totalCents = rv.subtotalCents + rv.taxCents

	rv.returnType = domain.ReturnTypeFull
	for _, item := range sale.Items {
		if returnedQty[item.ID]+requested[item.ID] != item.Quantity {
			rv.returnType = domain.ReturnTypePartial
			break
		}
	}

	rv.restock = make([]domain.StockDelta, 0, len(restockQty))
	for productID, qty := range restockQty {
		rv.restock = append(rv.restock, domain.StockDelta{
			ProductID: productID,
			SKU:       products[productID].SKU,
			Quantity:  qty,
		})
	}
	sort.Slice(rv.restock, func(i, j int) bool { return rv.restock[i].ProductID < rv.restock[j].ProductID })

	return rv, nil
}

func (s *Service) valueNewSale(region string, requests []domain.NewItemRequest, products map[string]domain.Product) (saleValuation, error) {
	quantities := make(map[string]int, len(requests))
	order := make([]string, 0, len(requests))
	for _, item := range requests {
		if item.ProductID == "" {
			return saleValuation{}, fmt.Errorf("new item missing product_id: %w", store.ErrInvalidExchange)
		}
		if item.Quantity < 1 {
			return saleValuation{}, fmt.Errorf("new item %s needs quantity >= 1: %w", item.ProductID, store.ErrInvalidExchange)
		}
		if _, ok := quantities[item.ProductID]; !ok {
			order = append(order, item.ProductID)
		}
		quantities[item.ProductID] += item.Quantity
	}

	nv := saleValuation{items: make([]domain.SaleItem, 0, len(order))}
	combined := s.taxes.CombinedRate(region)

	taxableCents := int64(0)
	for _, productID := range order {
		product, ok := products[productID]
		if !ok {
			return saleValuation{}, fmt.Errorf("product %s: %w", productID, store.ErrNotFound)
		}
		if !product.Active {
			return saleValuation{}, fmt.Errorf("product %s is inactive: %w", productID, store.ErrInvalidExchange)
		}

		qty := quantities[productID]
		lineCents := product.PriceCents * int64(qty)
		nv.subtotalCents += lineCents

		itemTaxCents := int64(0)
		if product.Taxable {
			taxableCents += lineCents
			itemTaxCents = decimal.NewFromInt(lineCents).Mul(combined).Round(0).IntPart()
		}

		nv.items = append(nv.items, domain.SaleItem{
			ID:             xid.New("sitem"),
			ProductID:      product.ID,
			Name:           product.Name,
			UnitPriceCents: product.PriceCents,
			Quantity:       qty,
			TaxCents:       itemTaxCents,
			Taxable:        product.Taxable,
		})
		nv.deduct = append(nv.deduct, domain.StockDelta{
			ProductID: product.ID,
			SKU:       product.SKU,
			Quantity:  qty,
		})
	}

	nv.taxLines, nv.taxCents = s.taxes.Apply(region, taxableCents)
	nv.totalCents = nv.subtotalCents + nv.taxCents

	sort.Slice(nv.deduct, func(i, j int) bool { return nv.deduct[i].ProductID < nv.deduct[j].ProductID })

	return nv, nil
}

func (s *Service) checkStock(ctx context.Context, restock []domain.StockDelta, deduct []domain.StockDelta) error {
	if len(deduct) == 0 {
		return nil
	}

	ids := make([]string, 0, len(deduct))
	for _, d := range deduct {
		ids = append(ids, d.ProductID)
	}
	onHand, err := s.repo.GetOnHand(ctx, ids)
	if err != nil {
		return err
	}

	incoming := make(map[string]int, len(restock))
	for _, d := range restock {
		incoming[d.ProductID] += d.Quantity
	}

	// Units the return side puts back count toward the new-sale side, so
	// exchanging the last unit of a product for itself goes through.
	for _, d := range deduct {
		if onHand[d.ProductID]+incoming[d.ProductID] < d.Quantity {
			return fmt.Errorf("product %s has %d unit(s) on hand, %d requested: %w",
				d.ProductID, onHand[d.ProductID], d.Quantity, store.ErrInsufficientStock)
		}
	}
	return nil
}

// proRatedTaxCredit refunds tax in proportion to the share of the original
// subtotal coming back, so partial returns never refund more tax than was
// charged and a full return refunds it exactly.
func proRatedTaxCredit(originalTaxCents int64, returnSubtotalCents int64, originalSubtotalCents int64) int64 {
	if originalSubtotalCents < 1 || returnSubtotalCents < 1 {
		return 0
	}
	ratio := decimal.NewFromInt(returnSubtotalCents).Div(decimal.NewFromInt(originalSubtotalCents))
	return decimal.NewFromInt(originalTaxCents).Mul(ratio).Round(0).IntPart()
}

// unitCreditCents is what one unit actually cost the customer: the list price
// minus that line's discount spread evenly across its quantity.
func unitCreditCents(item domain.SaleItem) int64 {
	unit := decimal.NewFromInt(item.UnitPriceCents)
	if item.DiscountCents > 0 && item.Quantity > 0 {
		unit = unit.Sub(decimal.NewFromInt(item.DiscountCents).Div(decimal.NewFromInt(int64(item.Quantity))))
	}
	credit := unit.Round(0).IntPart()
	if credit < 0 {
		return 0
	}
	return credit
}

const creditCodeAlphabet = "23456789ABCDEFGHJKMNPQRSTUVWXYZ"

func (s *Service) generateCreditCode(ctx context.Context) (string, error) {
	for attempt := 0; attempt < 5; attempt++ {
		code, err := randomCreditCode()
		if err != nil {
			return "", err
		}
		exists, err := s.repo.StoreCreditCodeExists(ctx, code)
		if err != nil {
			return "", err
		}
		if !exists {
			return code, nil
		}
	}
	return "", fmt.Errorf("could not allocate an unused store credit code")
}

func randomCreditCode() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}

	var b strings.Builder
	b.Grow(19)
	for i, c := range buf {
		if i > 0 && i%4 == 0 {
			b.WriteByte('-')
		}
		b.WriteByte(creditCodeAlphabet[int(c)%len(creditCodeAlphabet)])
	}
	return b.String(), nil
}

func toExchangeResponse(ret domain.ReturnRecord, sale domain.Sale, settlement domain.Settlement, credit *domain.StoreCredit, duplicate bool) domain.ExchangeResponse {
	summary := domain.SettlementSummary{
		Direction:         settlement.Direction,
		Method:            settlement.Method,
		AmountCents:       settlement.AmountCents,
		CashTenderedCents: settlement.CashTenderedCents,
		ChangeDueCents:    settlement.ChangeDueCents,
	}
	if credit != nil {
		summary.StoreCreditCode = credit.Code
		summary.StoreCreditCents = credit.BalanceCents
	}

	return domain.ExchangeResponse{
		ReturnID:          ret.ID,
		ReturnNumber:      ret.Number,
		NewSaleID:         sale.ID,
		NewSaleNumber:     sale.Number,
		ReturnType:        ret.ReturnType,
		ReturnTotalCents:  ret.TotalCents,
		NewSaleTotalCents: sale.TotalCents,
		DifferenceCents:   sale.TotalCents - ret.TotalCents,
		Settlement:        summary,
		ReturnLines:       ret.Lines,
		NewSaleItems:      sale.Items,
		Duplicate:         duplicate,
		CreatedAt:         ret.CreatedAt.Format(time.RFC3339),
	}
}

func (s *Service) logAudit(ctx context.Context, action string, entityType string, entityID string, detail string) {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		actor = domain.Actor{Username: "system", Role: "system"}
	}

	if err := s.repo.CreateAuditLog(ctx, domain.AuditLog{
		ID:            xid.New("audit"),
		ActorUsername: actor.Username,
		ActorRole:     actor.Role,
		Action:        action,
		EntityType:    entityType,
		EntityID:      entityID,
		Detail:        detail,
		CreatedAt:     time.Now().UTC(),
	}); err != nil {
		log.Printf("[audit] WARN: failed to write audit log action=%s entity=%s/%s: %v", action, entityType, entityID, err)
	}
}
