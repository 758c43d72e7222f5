package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Item is a stock-keeping record in the ledger
type Item struct {
	ID        int64           `db:"id" json:"id"`
	Title     string          `db:"title" json:"title"`
	Price     decimal.Decimal `db:"price" json:"price"`
	Quantity  int             `db:"quantity" json:"quantity"`
	Active    bool            `db:"active" json:"active"`
	UpdatedAt time.Time       `db:"updated_at" json:"updated_at"`
}

// Customer identifies who the document is issued to
type Customer struct {
	Name            string `db:"customer_name" json:"name"`
	Contact         string `db:"customer_contact" json:"contact,omitempty"`
	Identification  string `db:"customer_identification" json:"identification,omitempty"`
	DeliveryAddress string `db:"delivery_address" json:"delivery_address,omitempty"`
}

// Header is a persisted sale or purchase document
type Header struct {
	ID             int64  `db:"id" json:"id"`
	Kind           string `db:"kind" json:"kind"`
	DocumentNumber string `db:"document_number" json:"document_number"`
	ActorID        int64  `db:"actor_id" json:"actor_id"`
	Customer
	Subtotal      decimal.Decimal `db:"subtotal" json:"subtotal"`
	Tax           decimal.Decimal `db:"tax" json:"tax"`
	Discount      decimal.Decimal `db:"discount" json:"discount"`
	Total         decimal.Decimal `db:"total" json:"total"`
	PaymentMethod string          `db:"payment_method" json:"payment_method"`
	Status        string          `db:"status" json:"status"`
	VoidReason    *string         `db:"void_reason" json:"void_reason,omitempty"`
	VoidedAt      *time.Time      `db:"voided_at" json:"voided_at,omitempty"`
	CreatedAt     time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time       `db:"updated_at" json:"updated_at"`
}

// Line is one item row of a document; unit price is frozen at transaction time
type Line struct {
	ID        int64           `db:"id" json:"id"`
	HeaderID  int64           `db:"header_id" json:"header_id"`
	ItemID    int64           `db:"item_id" json:"item_id"`
	Title     string          `db:"title" json:"title"`
	Quantity  int             `db:"quantity" json:"quantity"`
	UnitPrice decimal.Decimal `db:"unit_price" json:"unit_price"`
	Subtotal  decimal.Decimal `db:"subtotal" json:"subtotal"`
}

// Payment represents a settled payment for a document
type Payment struct {
	ID             int64           `db:"id" json:"id"`
	HeaderID       int64           `db:"header_id" json:"header_id"`
	Method         string          `db:"method" json:"method"`
	Amount         decimal.Decimal `db:"amount" json:"amount"`
	Status         string          `db:"status" json:"status"`
	InstrumentRef  string          `db:"instrument_ref" json:"instrument_ref,omitempty"`
	TransactionRef string          `db:"transaction_ref" json:"transaction_ref"`
	CreatedAt      time.Time       `db:"created_at" json:"created_at"`
}

// Draft is a staged, not yet persisted document owned by one actor
type Draft struct {
	ID             string          `json:"id"`
	Kind           string          `json:"kind"`
	ActorID        int64           `json:"actor_id"`
	DocumentNumber string          `json:"document_number"`
	Customer       Customer        `json:"customer"`
	Lines          []Line          `json:"lines"`
	Subtotal       decimal.Decimal `json:"subtotal"`
	Tax            decimal.Decimal `json:"tax"`
	Discount       decimal.Decimal `json:"discount"`
	Total          decimal.Decimal `json:"total"`
	PaymentMethod  string          `json:"payment_method"`
	CreatedAt      time.Time       `json:"created_at"`
	ExpiresAt      time.Time       `json:"expires_at"`
}

// Expired reports whether the draft is past its lifetime at now.
func (d *Draft) Expired(now time.Time) bool {
	return !now.Before(d.ExpiresAt)
}

// Document kinds
const (
	KindSale     = "SALE"
	KindPurchase = "PURCHASE"
)

// Document statuses
const (
	StatusOpen      = "OPEN"
	StatusFinalized = "FINALIZED"
	StatusVoided    = "VOIDED"
)

// Payment methods
const (
	PaymentMethodCard = "CARD"
	PaymentMethodCash = "CASH"
)

// Payment statuses
const (
	PaymentStatusCompleted = "COMPLETED"
)

// ProcessedEvent for idempotency
type ProcessedEvent struct {
	EventID     string    `db:"event_id"`
	EventType   string    `db:"event_type"`
	ProcessedAt time.Time `db:"processed_at"`
}
