package service

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"sales-core/internal/apperror"
	"sales-core/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaymentInstrument is the raw payment input from the checkout form. Card
// fields are format-checked only; no payment network is contacted.
type PaymentInstrument struct {
	CardNumber     string          `json:"card_number,omitempty"`
	Expiry         string          `json:"expiry,omitempty"`
	CVV            string          `json:"cvv,omitempty"`
	CardholderName string          `json:"cardholder_name,omitempty"`
	Email          string          `json:"email,omitempty"`
	AmountReceived decimal.Decimal `json:"amount_received,omitempty"`
	Notes          string          `json:"notes,omitempty"`
}

const maxCardValidityMonths = 24

var (
	cardNumberPattern = regexp.MustCompile(`^\d{16}$`)
	expiryPattern     = regexp.MustCompile(`^(0[1-9]|1[0-2])/(\d{2})$`)
	cvvPattern        = regexp.MustCompile(`^\d{3}$`)
)

// ValidateCard checks the card fields and reports every failing field at once
func ValidateCard(in PaymentInstrument, now time.Time) error {
	var fields []apperror.FieldError

	if !cardNumberPattern.MatchString(strings.TrimSpace(in.CardNumber)) {
		fields = append(fields, apperror.FieldError{Field: "card_number", Message: "must be exactly 16 digits"})
	}
	if msg := checkExpiry(in.Expiry, now); msg != "" {
		fields = append(fields, apperror.FieldError{Field: "expiry", Message: msg})
	}
	if !cvvPattern.MatchString(in.CVV) {
		fields = append(fields, apperror.FieldError{Field: "cvv", Message: "must be exactly 3 digits"})
	}
	if utf8.RuneCountInString(strings.TrimSpace(in.CardholderName)) < 2 {
		fields = append(fields, apperror.FieldError{Field: "cardholder_name", Message: "must have at least 2 characters"})
	}
	if !strings.Contains(in.Email, "@") || !strings.Contains(in.Email, ".") {
		fields = append(fields, apperror.FieldError{Field: "email", Message: "must be a valid email address"})
	}

	if len(fields) > 0 {
		return apperror.NewValidationError(fields)
	}
	return nil
}

// checkExpiry validates MM/YY. A card is usable through the last day of its
// expiry month and may not expire more than two years from now.
func checkExpiry(expiry string, now time.Time) string {
	m := expiryPattern.FindStringSubmatch(strings.TrimSpace(expiry))
	if m == nil {
		return "must use the MM/YY format"
	}
	month, _ := strconv.Atoi(m[1])
	year, _ := strconv.Atoi(m[2])
	year += 2000

	diff := (year-now.Year())*12 + (month - int(now.Month()))
	switch {
	case diff < 0:
		return "card has expired"
	case diff > maxCardValidityMonths:
		return "expiry is too far in the future"
	}
	return ""
}

// ValidateCash checks that the cash handed over covers the total
func ValidateCash(in PaymentInstrument, total decimal.Decimal) error {
	if !in.AmountReceived.IsPositive() {
		return apperror.NewFieldError("amount_received", "must be greater than zero")
	}
	if in.AmountReceived.LessThan(total) {
		return apperror.NewFieldError("amount_received",
			fmt.Sprintf("must cover the total of %s", total.StringFixed(2)))
	}
	return nil
}

// ValidateInstrument dispatches on the payment method
func ValidateInstrument(method string, in PaymentInstrument, total decimal.Decimal, now time.Time) error {
	switch method {
	case models.PaymentMethodCard:
		return ValidateCard(in, now)
	case models.PaymentMethodCash:
		return ValidateCash(in, total)
	}
	return apperror.NewFieldError("payment_method", "must be CARD or CASH")
}

// transactionRef is unique per payment; payments_transaction_ref_key enforces it
func transactionRef(prefix string) string {
	return prefix + "-" + strings.ToUpper(uuid.New().String())
}

// MaskCardNumber keeps only the last four digits
func MaskCardNumber(number string) string {
	number = strings.TrimSpace(number)
	if len(number) < 4 {
		return "****"
	}
	return "****-****-****-" + number[len(number)-4:]
}

// newPayment builds the payment record for a validated instrument
func newPayment(headerID int64, method string, in PaymentInstrument, total decimal.Decimal) *models.Payment {
	p := &models.Payment{
		HeaderID: headerID,
		Method:   method,
		Status:   models.PaymentStatusCompleted,
	}

	switch method {
	case models.PaymentMethodCash:
		p.Amount = in.AmountReceived
		p.TransactionRef = transactionRef("CASH")
		if notes := strings.TrimSpace(in.Notes); notes != "" {
			p.InstrumentRef = "OBS: " + notes
		}
	default:
		p.Amount = total
		p.TransactionRef = transactionRef("CARD")
		p.InstrumentRef = MaskCardNumber(in.CardNumber)
	}
	return p
}
