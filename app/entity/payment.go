package entity

import "time"

const (
	StatusPending   = "pending"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

const (
	MethodCreditCard = "credit_card"
	MethodDebitCard  = "debit_card"
)

// PaymentDetails is the provider-facing slice of a payment. It never holds
// the single-use card token or any raw card data.
type PaymentDetails struct {
	Provider          string `json:"provider,omitempty"`
	ProviderPaymentID string `json:"provider_payment_id,omitempty"`
	ProviderStatus    string `json:"provider_status,omitempty"`
	Error             string `json:"error,omitempty"`
}

type Payment struct {
	ID uint64

	TransactionID string

	UserID  string
	EventID string

	Amount   float64
	Currency string

	PaymentMethod string
	Status        string

	Details PaymentDetails

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Terminal statuses never transition back to pending.
func (p *Payment) Terminal() bool {
	return p.Status == StatusCompleted || p.Status == StatusFailed
}

func ValidPaymentMethod(method string) bool {
	return method == MethodCreditCard || method == MethodDebitCard
}
