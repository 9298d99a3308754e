package provider

import (
	"context"
	"fmt"
)

// StatusSucceeded is the provider's canonical success status. Anything else,
// including partial or ambiguous states, is treated as failure by callers.
const StatusSucceeded = "succeeded"

type AuthorizeInput struct {
	Token       string
	AmountCents int64
	Currency    string
	Description string

	// Metadata travels to the provider for traceability and reconciliation.
	Metadata map[string]string

	// IdempotencyKey engages provider-side idempotency so an
	// infrastructure-level replay cannot authorize twice.
	IdempotencyKey string
}

type AuthorizeOutput struct {
	ProviderPaymentID string
	Status            string
}

type Provider interface {
	Name() string
	Authorize(ctx context.Context, input *AuthorizeInput) (*AuthorizeOutput, error)

	// FindAuthorization looks up a prior authorization by the transaction id
	// carried in its metadata. A nil result with nil error means the provider
	// has no record of a charge.
	FindAuthorization(ctx context.Context, transactionID string) (*AuthorizeOutput, error)
}

// Error is a gateway failure with the provider's machine-readable code.
// Timeout marks outcomes where the remote side may still have authorized
// funds even though the call failed locally.
type Error struct {
	Code    string
	Message string
	Timeout bool
}

func (e *Error) Error() string {
	if e.Code == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}
