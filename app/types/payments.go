package types

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/vibast-solutions/ms-go-event-payments/app/entity"
)

// TokenPrefix is the provider's single-use card token convention. Token-shape
// failures are reported as ErrInvalidToken so callers can tell malformed
// input apart from incomplete input.
const TokenPrefix = "tok_"

var ErrInvalidToken = errors.New("source must be a single-use card token starting with " + TokenPrefix)

type CreatePaymentRequest struct {
	UserID        string   `json:"userId"`
	EventID       string   `json:"eventId"`
	Amount        *float64 `json:"amount"`
	Currency      string   `json:"currency"`
	PaymentMethod string   `json:"paymentMethod"`
	Source        string   `json:"source"`
}

func NewCreatePaymentRequestFromContext(ctx echo.Context) (*CreatePaymentRequest, error) {
	var body CreatePaymentRequest
	if err := ctx.Bind(&body); err != nil {
		return nil, err
	}

	body.UserID = strings.TrimSpace(body.UserID)
	body.EventID = strings.TrimSpace(body.EventID)
	body.Currency = strings.ToUpper(strings.TrimSpace(body.Currency))
	body.PaymentMethod = strings.TrimSpace(body.PaymentMethod)
	body.Source = strings.TrimSpace(body.Source)

	return &body, nil
}

func (r *CreatePaymentRequest) Validate() error {
	if r.UserID == "" {
		return errors.New("userId is required")
	}
	if r.EventID == "" {
		return errors.New("eventId is required")
	}
	if r.Amount == nil {
		return errors.New("amount is required")
	}
	if *r.Amount <= 0 {
		return errors.New("amount must be greater than zero")
	}
	if r.PaymentMethod == "" {
		return errors.New("paymentMethod is required")
	}
	if !entity.ValidPaymentMethod(r.PaymentMethod) {
		return errors.New("paymentMethod must be credit_card or debit_card")
	}
	if r.Source == "" {
		return errors.New("source is required")
	}
	if !strings.HasPrefix(r.Source, TokenPrefix) {
		return ErrInvalidToken
	}
	if r.Currency != "" && len(r.Currency) != 3 {
		return errors.New("currency must be 3 letters")
	}
	return nil
}

// BatchPaymentSpec is one element of a trusted bulk-load of already-settled
// payments. There is no card token: the batch path never calls the gateway,
// so each element must carry the provider charge id it settled under.
type BatchPaymentSpec struct {
	UserID         string              `json:"userId"`
	EventID        string              `json:"eventId"`
	Amount         *float64            `json:"amount"`
	Currency       string              `json:"currency"`
	PaymentMethod  string              `json:"paymentMethod"`
	PaymentDetails *BatchPaymentDetail `json:"paymentDetails"`
}

type BatchPaymentDetail struct {
	Provider          string `json:"provider"`
	ProviderPaymentID string `json:"providerPaymentId"`
	ProviderStatus    string `json:"providerStatus"`
}

type CreateBatchPaymentsRequest struct {
	Payments []BatchPaymentSpec `json:"payments"`
}

func NewCreateBatchPaymentsRequestFromContext(ctx echo.Context) (*CreateBatchPaymentsRequest, error) {
	var body CreateBatchPaymentsRequest
	if err := ctx.Bind(&body); err != nil {
		return nil, err
	}

	for i := range body.Payments {
		spec := &body.Payments[i]
		spec.UserID = strings.TrimSpace(spec.UserID)
		spec.EventID = strings.TrimSpace(spec.EventID)
		spec.Currency = strings.ToUpper(strings.TrimSpace(spec.Currency))
		spec.PaymentMethod = strings.TrimSpace(spec.PaymentMethod)
	}

	return &body, nil
}

// Validate checks every element before anything is written. The first
// structurally invalid element aborts validation with its 1-based position.
func (r *CreateBatchPaymentsRequest) Validate() error {
	if len(r.Payments) == 0 {
		return errors.New("payments must be a non-empty array")
	}
	for i := range r.Payments {
		if err := r.Payments[i].validate(); err != nil {
			return fmt.Errorf("payment at position %d: %w", i+1, err)
		}
	}
	return nil
}

func (s *BatchPaymentSpec) validate() error {
	if s.UserID == "" {
		return errors.New("userId is required")
	}
	if s.EventID == "" {
		return errors.New("eventId is required")
	}
	if s.Amount == nil {
		return errors.New("amount is required")
	}
	if *s.Amount <= 0 {
		return errors.New("amount must be greater than zero")
	}
	if s.PaymentMethod == "" {
		return errors.New("paymentMethod is required")
	}
	if !entity.ValidPaymentMethod(s.PaymentMethod) {
		return errors.New("paymentMethod must be credit_card or debit_card")
	}
	if s.Currency != "" && len(s.Currency) != 3 {
		return errors.New("currency must be 3 letters")
	}
	if s.PaymentDetails == nil || strings.TrimSpace(s.PaymentDetails.ProviderPaymentID) == "" {
		return errors.New("paymentDetails.providerPaymentId is required")
	}
	return nil
}

// GetPaymentRequest addresses a payment either by its numeric store id or,
// for PAY-prefixed values, by transaction id. The failure-trail record left
// by the compensating write is only addressable by transaction id.
type GetPaymentRequest struct {
	ID            uint64
	TransactionID string
}

func NewGetPaymentRequestFromContext(ctx echo.Context) (*GetPaymentRequest, error) {
	raw := strings.TrimSpace(ctx.Param("id"))
	if raw == "" {
		return nil, errors.New("payment id is required")
	}

	if strings.HasPrefix(raw, "PAY-") {
		return &GetPaymentRequest{TransactionID: raw}, nil
	}

	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return nil, errors.New("invalid payment id")
	}
	return &GetPaymentRequest{ID: id}, nil
}

func (r *GetPaymentRequest) Validate() error {
	if r.ID == 0 && r.TransactionID == "" {
		return errors.New("invalid payment id")
	}
	return nil
}

type ListUserPaymentsRequest struct {
	UserID string
}

func NewListUserPaymentsRequestFromContext(ctx echo.Context) (*ListUserPaymentsRequest, error) {
	return &ListUserPaymentsRequest{UserID: strings.TrimSpace(ctx.Param("userId"))}, nil
}

func (r *ListUserPaymentsRequest) Validate() error {
	if r.UserID == "" || len(r.UserID) > 64 || strings.ContainsAny(r.UserID, " \t\n") {
		return errors.New("invalid user id")
	}
	return nil
}

// Payment is the outward projection of a payment record. The single-use
// token is not part of any projected shape.
type Payment struct {
	ID             uint64         `json:"id"`
	TransactionID  string         `json:"transactionId"`
	UserID         string         `json:"userId"`
	EventID        string         `json:"eventId"`
	Amount         float64        `json:"amount"`
	Currency       string         `json:"currency"`
	PaymentMethod  string         `json:"paymentMethod"`
	Status         string         `json:"status"`
	PaymentDetails PaymentDetails `json:"paymentDetails"`
	CreatedAt      string         `json:"createdAt"`
	UpdatedAt      string         `json:"updatedAt"`
}

type PaymentDetails struct {
	Provider          string `json:"provider,omitempty"`
	ProviderPaymentID string `json:"providerPaymentId,omitempty"`
	ProviderStatus    string `json:"providerStatus,omitempty"`
	Error             string `json:"error,omitempty"`
}

type PaymentEnvelopeResponse struct {
	Success bool     `json:"success"`
	Message string   `json:"message,omitempty"`
	Data    *Payment `json:"data"`
}

type PaymentListResponse struct {
	Success bool       `json:"success"`
	Count   int        `json:"count"`
	Data    []*Payment `json:"data"`
}

type ErrorResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Error   string `json:"error,omitempty"`
}

type HealthResponse struct {
	Status string `json:"status"`
}
