package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Product struct {
	ID         string `json:"id"`
	SKU        string `json:"sku"`
	Name       string `json:"name"`
	PriceCents int64  `json:"price_cents"`
	Taxable    bool   `json:"taxable"`
	Active     bool   `json:"active"`
}

type TaxLine struct {
	Name        string          `json:"name"`
	Rate        decimal.Decimal `json:"rate"`
	AmountCents int64           `json:"amount_cents"`
}

type SaleItem struct {
	ID             string `json:"id"`
	SaleID         string `json:"sale_id,omitempty"`
	ProductID      string `json:"product_id"`
	Name           string `json:"name"`
	UnitPriceCents int64  `json:"unit_price_cents"`
	Quantity       int    `json:"quantity"`
	DiscountCents  int64  `json:"discount_cents"`
	TaxCents       int64  `json:"tax_cents"`
	Taxable        bool   `json:"taxable"`
}

type Sale struct {
	ID            string     `json:"id"`
	Number        string     `json:"number"`
	CustomerID    string     `json:"customer_id,omitempty"`
	RegisterID    string     `json:"register_id,omitempty"`
	Region        string     `json:"region"`
	Status        string     `json:"status"`
	SubtotalCents int64      `json:"subtotal_cents"`
	TaxCents      int64      `json:"tax_cents"`
	TaxLines      []TaxLine  `json:"tax_lines,omitempty"`
	TotalCents    int64      `json:"total_cents"`
	Exchange      bool       `json:"exchange"`
	ReturnID      string     `json:"return_id,omitempty"`
	// ExchangeSaleID is set on an original sale once it has been exchanged,
	// pointing at the replacement sale. The only mutation an original sale
	// ever receives.
	ExchangeSaleID string     `json:"exchange_sale_id,omitempty"`
	Notes          string     `json:"notes,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	Items          []SaleItem `json:"items"`
}

type ReturnLineRequest struct {
	SaleItemID  string `json:"sale_item_id"`
	Quantity    int    `json:"quantity"`
	ReasonCode  string `json:"reason_code"`
	ReasonNotes string `json:"reason_notes,omitempty"`
	Condition   string `json:"condition,omitempty"`
}

type NewItemRequest struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

type ExchangeRequest struct {
	SaleID            string              `json:"sale_id"`
	ReturnItems       []ReturnLineRequest `json:"return_items"`
	NewItems          []NewItemRequest    `json:"new_items"`
	PaymentMethod     string              `json:"payment_method,omitempty"`
	CardBrand         string              `json:"card_brand,omitempty"`
	CardLastFour      string              `json:"card_last_four,omitempty"`
	AuthCode          string              `json:"auth_code,omitempty"`
	CashTenderedCents int64               `json:"cash_tendered_cents,omitempty"`
	RefundMethod      string              `json:"refund_method,omitempty"`
	RegisterID        string              `json:"register_id,omitempty"`
	Notes             string              `json:"notes,omitempty"`
	IdempotencyKey    string              `json:"idempotency_key,omitempty"`
}

type ExchangePreviewRequest struct {
	SaleID      string              `json:"sale_id"`
	ReturnItems []ReturnLineRequest `json:"return_items"`
	NewItems    []NewItemRequest    `json:"new_items"`
}

type ReturnLine struct {
	ID              string `json:"id"`
	ReturnID        string `json:"return_id,omitempty"`
	SaleItemID      string `json:"sale_item_id"`
	ProductID       string `json:"product_id"`
	Quantity        int    `json:"quantity"`
	UnitCreditCents int64  `json:"unit_credit_cents"`
	CreditCents     int64  `json:"credit_cents"`
	ReasonCode      string `json:"reason_code"`
	ReasonNotes     string `json:"reason_notes,omitempty"`
	Condition       string `json:"condition"`
}

type ReturnRecord struct {
	ID             string       `json:"id"`
	Number         string       `json:"number"`
	SaleID         string       `json:"sale_id"`
	NewSaleID      string       `json:"new_sale_id,omitempty"`
	ReturnType     string       `json:"return_type"`
	Status         string       `json:"status"`
	SubtotalCents  int64        `json:"subtotal_cents"`
	TaxCents       int64        `json:"tax_cents"`
	TotalCents     int64        `json:"total_cents"`
	Exchange       bool         `json:"exchange"`
	IdempotencyKey string       `json:"-"`
	Notes          string       `json:"notes,omitempty"`
	CreatedAt      time.Time    `json:"created_at"`
	CompletedAt    *time.Time   `json:"completed_at,omitempty"`
	Lines          []ReturnLine `json:"lines"`
}

type Settlement struct {
	ID                string    `json:"id"`
	ReturnID          string    `json:"return_id"`
	NewSaleID         string    `json:"new_sale_id"`
	Direction         string    `json:"direction"`
	Method            string    `json:"method"`
	AmountCents       int64     `json:"amount_cents"`
	CardBrand         string    `json:"card_brand,omitempty"`
	CardLastFour      string    `json:"card_last_four,omitempty"`
	AuthCode          string    `json:"auth_code,omitempty"`
	CashTenderedCents int64     `json:"cash_tendered_cents,omitempty"`
	ChangeDueCents    int64     `json:"change_due_cents,omitempty"`
	StoreCreditID     string    `json:"store_credit_id,omitempty"`
	Status            string    `json:"status"`
	CreatedAt         time.Time `json:"created_at"`
}

type StoreCredit struct {
	ID            string    `json:"id"`
	CustomerID    string    `json:"customer_id,omitempty"`
	Code          string    `json:"code"`
	OriginalCents int64     `json:"original_cents"`
	BalanceCents  int64     `json:"balance_cents"`
	SourceType    string    `json:"source_type"`
	SourceID      string    `json:"source_id"`
	IssuedAt      time.Time `json:"issued_at"`
}

type CreditLedgerEntry struct {
	ID          string    `json:"id"`
	CreditID    string    `json:"credit_id"`
	Type        string    `json:"type"`
	AmountCents int64     `json:"amount_cents"`
	CreatedAt   time.Time `json:"created_at"`
}

// StockDelta is a per-product inventory adjustment computed by the engine and
// applied by the store inside the exchange transaction.
type StockDelta struct {
	ProductID string `json:"product_id"`
	SKU       string `json:"sku,omitempty"`
	Quantity  int    `json:"quantity"`
}

type StockChange struct {
	ProductID string `json:"product_id"`
	SKU       string `json:"sku,omitempty"`
	Delta     int    `json:"delta"`
	OnHand    int    `json:"on_hand"`
	Source    string `json:"source"`
	ReturnID  string `json:"return_id,omitempty"`
	SaleID    string `json:"sale_id,omitempty"`
}

// ExchangeSet carries every record of one exchange, fully assembled by the
// service; the store persists it in a single transaction or not at all.
type ExchangeSet struct {
	Return      ReturnRecord
	NewSale     Sale
	Settlement  Settlement
	StoreCredit *StoreCredit
	Ledger      *CreditLedgerEntry
	Restock     []StockDelta
	Deduct      []StockDelta
}

type ExchangeOutcome struct {
	Return       ReturnRecord
	NewSale      Sale
	Settlement   Settlement
	StoreCredit  *StoreCredit
	StockChanges []StockChange
}

type ExchangeDetail struct {
	Return      ReturnRecord `json:"return"`
	NewSale     Sale         `json:"new_sale"`
	Settlement  Settlement   `json:"settlement"`
	StoreCredit *StoreCredit `json:"store_credit,omitempty"`
}

type SettlementSummary struct {
	Direction         string `json:"direction"`
	Method            string `json:"method"`
	AmountCents       int64  `json:"amount_cents"`
	CashTenderedCents int64  `json:"cash_tendered_cents,omitempty"`
	ChangeDueCents    int64  `json:"change_due_cents,omitempty"`
	StoreCreditCode   string `json:"store_credit_code,omitempty"`
	StoreCreditCents  int64  `json:"store_credit_cents,omitempty"`
}

type ExchangeResponse struct {
	ReturnID          string            `json:"return_id"`
	ReturnNumber      string            `json:"return_number"`
	NewSaleID         string            `json:"new_sale_id"`
	NewSaleNumber     string            `json:"new_sale_number"`
	ReturnType        string            `json:"return_type"`
	ReturnTotalCents  int64             `json:"return_total_cents"`
	NewSaleTotalCents int64             `json:"new_sale_total_cents"`
	DifferenceCents   int64             `json:"difference_cents"`
	Settlement        SettlementSummary `json:"settlement"`
	ReturnLines       []ReturnLine      `json:"return_lines"`
	NewSaleItems      []SaleItem        `json:"new_sale_items"`
	Duplicate         bool              `json:"duplicate"`
	CreatedAt         string            `json:"created_at"`
}

type ExchangePreview struct {
	ReturnSubtotalCents int64     `json:"return_subtotal_cents"`
	ReturnTaxCents      int64     `json:"return_tax_cents"`
	ReturnTotalCents    int64     `json:"return_total_cents"`
	NewSubtotalCents    int64     `json:"new_subtotal_cents"`
	NewTaxCents         int64     `json:"new_tax_cents"`
	NewTaxLines         []TaxLine `json:"new_tax_lines,omitempty"`
	NewSaleTotalCents   int64     `json:"new_sale_total_cents"`
	DifferenceCents     int64     `json:"difference_cents"`
	CustomerOwes        bool      `json:"customer_owes"`
	CustomerRefund      bool      `json:"customer_refund"`
	EvenExchange        bool      `json:"even_exchange"`
}

type Actor struct {
	Username string
	Role     string
}

type AuditLog struct {
	ID            string    `json:"id"`
	ActorUsername string    `json:"actor_username"`
	ActorRole     string    `json:"actor_role"`
	Action        string    `json:"action"`
	EntityType    string    `json:"entity_type"`
	EntityID      string    `json:"entity_id"`
	Detail        string    `json:"detail"`
	CreatedAt     time.Time `json:"created_at"`
}

const (
	SaleStatusCompleted = "completed"
	SaleStatusVoided    = "voided"
)

const (
	ReturnStatusProcessing = "processing"
	ReturnStatusCompleted  = "completed"
)

const (
	ReturnTypeFull    = "full"
	ReturnTypePartial = "partial"
)

const (
	SettlementCharge = "charge"
	SettlementRefund = "refund"
	SettlementEven   = "even"
)

const (
	SettlementStatusCompleted = "completed"
)

const (
	MethodCard            = "card"
	MethodCash            = "cash"
	MethodStoreCredit     = "store_credit"
	MethodOriginalPayment = "original_payment"
	MethodNone            = "none"
)

const (
	ConditionSellable  = "sellable"
	ConditionDamaged   = "damaged"
	ConditionDefective = "defective"
)

const (
	CreditSourceReturn = "return"
	CreditEntryIssue   = "issue"
	CreditEntryRedeem  = "redeem"
)

const (
	StockSourceExchangeReturn = "exchange_return"
	StockSourceExchangeSale   = "exchange_sale"
)
