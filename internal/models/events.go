package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Event types
const (
	EventTypeDocumentFinalized   = "DOCUMENT_FINALIZED"
	EventTypeDocumentVoided      = "DOCUMENT_VOIDED"
	EventTypeDocumentReactivated = "DOCUMENT_REACTIVATED"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// DocumentEvent is published on every lifecycle transition of a header
type DocumentEvent struct {
	BaseEvent
	HeaderID       int64           `json:"header_id"`
	DocumentNumber string          `json:"document_number"`
	Kind           string          `json:"kind"`
	Status         string          `json:"status"`
	Total          decimal.Decimal `json:"total"`
	Reason         string          `json:"reason,omitempty"`
	Lines          []LineData      `json:"lines"`
}

// LineData represents line data in events
type LineData struct {
	ItemID    int64           `json:"item_id"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}
