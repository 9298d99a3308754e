package service

import (
	"context"
	"time"

	"github.com/vibast-solutions/ms-go-event-payments/app/entity"
	"github.com/vibast-solutions/ms-go-event-payments/app/provider"
)

// RunReconcileBatch scans recently failed payments that carry no provider
// charge id, the shape a gateway timeout or transport failure leaves behind,
// and asks the gateway whether a charge actually landed for their
// transaction id. A payment that was charged but marked failed is logged
// and recorded as a mismatch event for out-of-band correction; terminal
// statuses are never flipped here, transitions stay one-directional.
func (s *PaymentService) RunReconcileBatch(ctx context.Context) error {
	now := time.Now().UTC()
	since := now.Add(-s.paymentsCfg.ReconcileWindow)

	items, err := s.store.ListRecentFailed(ctx, since, s.batchSize())
	if err != nil {
		return err
	}

	var firstErr error
	for _, payment := range items {
		if payment == nil || payment.Details.ProviderPaymentID != "" {
			continue
		}

		output, err := s.gateway.FindAuthorization(ctx, payment.TransactionID)
		if err != nil {
			firstErr = keepFirstErr(firstErr, err)
			continue
		}
		if output == nil || output.Status != provider.StatusSucceeded {
			continue
		}

		s.logger.WithField("transaction_id", payment.TransactionID).
			WithField("provider_payment_id", output.ProviderPaymentID).
			Warn("charge succeeded at the provider but the payment is marked failed")

		_ = s.eventRepo.Create(ctx, &entity.PaymentEvent{
			PaymentID:     payment.ID,
			TransactionID: payment.TransactionID,
			EventType:     "reconcile_mismatch",
			NewStatus:     payment.Status,
			CreatedAt:     now,
		})
	}

	return firstErr
}

func keepFirstErr(current error, candidate error) error {
	if current != nil {
		return current
	}
	return candidate
}
