package mapper

import (
	"time"

	"github.com/vibast-solutions/ms-go-event-payments/app/entity"
	"github.com/vibast-solutions/ms-go-event-payments/app/types"
)

func PaymentToResponse(item *entity.Payment) *types.Payment {
	if item == nil {
		return nil
	}

	return &types.Payment{
		ID:            item.ID,
		TransactionID: item.TransactionID,
		UserID:        item.UserID,
		EventID:       item.EventID,
		Amount:        item.Amount,
		Currency:      item.Currency,
		PaymentMethod: item.PaymentMethod,
		Status:        item.Status,
		PaymentDetails: types.PaymentDetails{
			Provider:          item.Details.Provider,
			ProviderPaymentID: item.Details.ProviderPaymentID,
			ProviderStatus:    item.Details.ProviderStatus,
			Error:             item.Details.Error,
		},
		CreatedAt: item.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt: item.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func PaymentsToResponse(items []*entity.Payment) []*types.Payment {
	result := make([]*types.Payment, 0, len(items))
	for _, item := range items {
		result = append(result, PaymentToResponse(item))
	}
	return result
}
