package service

import (
	"context"
	"fmt"

	"sales-core/internal/models"
	"sales-core/internal/store"
	"sales-core/internal/util"
)

// Document is a header with everything recorded under it
type Document struct {
	Header   *models.Header   `json:"header"`
	Lines    []models.Line    `json:"lines"`
	Payments []models.Payment `json:"payments"`
}

// DocumentService reads persisted documents
type DocumentService struct {
	ledger store.Ledger
}

func NewDocumentService(ledger store.Ledger) *DocumentService {
	return &DocumentService{ledger: ledger}
}

// GetDocument retrieves a document by its number
func (s *DocumentService) GetDocument(ctx context.Context, documentNumber string) (*Document, error) {
	ctx, span := util.StartDocumentSpan(ctx, "DocumentService.GetDocument", documentNumber)
	defer span.End()

	header, err := s.ledger.GetHeaderByNumber(ctx, documentNumber)
	if err != nil {
		return nil, err
	}

	lines, err := s.ledger.ListLines(ctx, header.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to get document lines: %w", err)
	}

	payments, err := s.ledger.ListPayments(ctx, header.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to get document payments: %w", err)
	}

	return &Document{Header: header, Lines: lines, Payments: payments}, nil
}
