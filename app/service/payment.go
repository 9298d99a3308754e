package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-event-payments/app/entity"
	"github.com/vibast-solutions/ms-go-event-payments/app/factory"
	"github.com/vibast-solutions/ms-go-event-payments/app/provider"
	"github.com/vibast-solutions/ms-go-event-payments/app/repository"
	"github.com/vibast-solutions/ms-go-event-payments/app/txid"
	"github.com/vibast-solutions/ms-go-event-payments/app/types"
	"github.com/vibast-solutions/ms-go-event-payments/config"
)

const (
	defaultHomeCurrency = "MXN"
	defaultBatchSize    = int32(100)
)

type paymentStore interface {
	Begin(ctx context.Context) (repository.Tx, error)
	FindByID(ctx context.Context, id uint64) (*entity.Payment, error)
	FindByTransactionID(ctx context.Context, transactionID string) (*entity.Payment, error)
	ListByUser(ctx context.Context, userID string) ([]*entity.Payment, error)
	UpsertFailed(ctx context.Context, payment *entity.Payment) error
	ListRecentFailed(ctx context.Context, since time.Time, limit int32) ([]*entity.Payment, error)
}

type paymentEventRepository interface {
	Create(ctx context.Context, event *entity.PaymentEvent) error
}

// PaymentService is the settlement orchestrator. It owns the payment
// lifecycle from provisional insert to terminal status; no other component
// mutates a payment after creation.
type PaymentService struct {
	store       paymentStore
	eventRepo   paymentEventRepository
	gateway     provider.Provider
	paymentsCfg config.PaymentsConfig
	logger      logrus.FieldLogger
}

func NewPaymentService(
	store paymentStore,
	eventRepo paymentEventRepository,
	gateway provider.Provider,
	paymentsCfg config.PaymentsConfig,
) *PaymentService {
	if paymentsCfg.HomeCurrency == "" {
		paymentsCfg.HomeCurrency = defaultHomeCurrency
	}

	return &PaymentService{
		store:       store,
		eventRepo:   eventRepo,
		gateway:     gateway,
		paymentsCfg: paymentsCfg,
		logger:      factory.NewModuleLogger("payments-service"),
	}
}

// CreatePayment runs the single-payment settlement saga: insert a
// provisional record inside a store transaction, authorize the token with
// the gateway, then either commit the completed record or abort and leave a
// failed record through a compensating write. The store transaction stays
// open across the gateway call; that is the lock-duration trade-off the
// connection pool is sized for.
func (s *PaymentService) CreatePayment(ctx context.Context, req *types.CreatePaymentRequest) (*entity.Payment, error) {
	if req == nil || req.Amount == nil {
		return nil, ErrInvalidRequest
	}

	currency := req.Currency
	if currency == "" {
		currency = s.paymentsCfg.HomeCurrency
	}

	now := time.Now().UTC()
	payment := &entity.Payment{
		TransactionID: txid.New(),
		UserID:        req.UserID,
		EventID:       req.EventID,
		Amount:        *req.Amount,
		Currency:      currency,
		PaymentMethod: req.PaymentMethod,
		Status:        entity.StatusPending,
		Details:       entity.PaymentDetails{Provider: s.gateway.Name()},
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	tx, err := s.store.Begin(ctx)
	if err != nil {
		return nil, err
	}

	if err := tx.Create(ctx, payment); err != nil {
		_ = tx.Rollback()
		if errors.Is(err, repository.ErrDuplicateTransactionID) {
			return nil, ErrDuplicateTransaction
		}
		return nil, err
	}

	output, err := s.gateway.Authorize(ctx, &provider.AuthorizeInput{
		Token:       req.Source,
		AmountCents: int64(math.Round(payment.Amount * 100)),
		Currency:    currency,
		Description: "Payment for event " + payment.EventID,
		Metadata: map[string]string{
			"user_id":        payment.UserID,
			"event_id":       payment.EventID,
			"payment_id":     strconv.FormatUint(payment.ID, 10),
			"transaction_id": payment.TransactionID,
		},
		IdempotencyKey: payment.TransactionID,
	})
	if err != nil {
		return nil, s.compensate(ctx, tx, payment, err)
	}

	// Anything short of the canonical success status is a failure; the
	// orchestrator never interprets partial provider states as success.
	if output.Status != provider.StatusSucceeded {
		return nil, s.compensate(ctx, tx, payment, &provider.Error{
			Code:    "unexpected_status",
			Message: fmt.Sprintf("authorization finished with status %q", output.Status),
		})
	}

	oldStatus := payment.Status
	payment.Status = entity.StatusCompleted
	payment.Details.ProviderPaymentID = output.ProviderPaymentID
	payment.Details.ProviderStatus = output.Status
	payment.UpdatedAt = time.Now().UTC()

	if err := tx.Update(ctx, payment); err != nil {
		return nil, s.compensate(ctx, tx, payment, err)
	}
	if err := tx.Commit(); err != nil {
		return nil, s.compensate(ctx, tx, payment, err)
	}

	_ = s.eventRepo.Create(ctx, &entity.PaymentEvent{
		PaymentID:     payment.ID,
		TransactionID: payment.TransactionID,
		EventType:     "payment_completed",
		OldStatus:     &oldStatus,
		NewStatus:     payment.Status,
		CreatedAt:     payment.UpdatedAt,
	})

	return payment, nil
}

// compensate aborts the settlement transaction, which rolls the provisional
// insert back, then writes the failed record outside any transaction so the
// failure still leaves an auditable trail. The original cause is always
// returned to the caller.
func (s *PaymentService) compensate(ctx context.Context, tx repository.Tx, payment *entity.Payment, cause error) error {
	if err := tx.Rollback(); err != nil {
		s.logger.WithError(err).WithField("transaction_id", payment.TransactionID).Warn("settlement rollback failed")
	}

	now := time.Now().UTC()
	oldStatus := entity.StatusPending
	payment.ID = 0
	payment.Status = entity.StatusFailed
	payment.Details.ProviderPaymentID = ""
	payment.Details.ProviderStatus = ""
	payment.Details.Error = cause.Error()
	payment.UpdatedAt = now

	if err := s.store.UpsertFailed(ctx, payment); err != nil {
		s.logger.WithError(err).
			WithField("transaction_id", payment.TransactionID).
			WithField("cause", cause.Error()).
			Error("compensating write failed; payment state requires out-of-band reconciliation")
		return cause
	}

	_ = s.eventRepo.Create(ctx, &entity.PaymentEvent{
		PaymentID:     payment.ID,
		TransactionID: payment.TransactionID,
		EventType:     "payment_failed",
		OldStatus:     &oldStatus,
		NewStatus:     payment.Status,
		CreatedAt:     now,
	})

	return cause
}

// CreateBatchPayments bulk-loads already-settled payments: every element is
// inserted as completed under a single transaction with one commit, and no
// gateway call is made. A mid-loop store error aborts the whole batch and
// downgrades the elements flushed so far to failed, best effort.
func (s *PaymentService) CreateBatchPayments(ctx context.Context, req *types.CreateBatchPaymentsRequest) ([]*entity.Payment, error) {
	if req == nil || len(req.Payments) == 0 {
		return nil, ErrInvalidRequest
	}

	tx, err := s.store.Begin(ctx)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	created := make([]*entity.Payment, 0, len(req.Payments))

	for i := range req.Payments {
		spec := &req.Payments[i]
		if spec.Amount == nil || spec.PaymentDetails == nil {
			return nil, s.compensateBatch(ctx, tx, created, ErrInvalidRequest)
		}

		currency := spec.Currency
		if currency == "" {
			currency = s.paymentsCfg.HomeCurrency
		}
		providerName := spec.PaymentDetails.Provider
		if providerName == "" {
			providerName = s.gateway.Name()
		}

		payment := &entity.Payment{
			TransactionID: txid.New(),
			UserID:        spec.UserID,
			EventID:       spec.EventID,
			Amount:        *spec.Amount,
			Currency:      currency,
			PaymentMethod: spec.PaymentMethod,
			Status:        entity.StatusCompleted,
			Details: entity.PaymentDetails{
				Provider:          providerName,
				ProviderPaymentID: spec.PaymentDetails.ProviderPaymentID,
				ProviderStatus:    spec.PaymentDetails.ProviderStatus,
			},
			CreatedAt: now,
			UpdatedAt: now,
		}

		if err := tx.Create(ctx, payment); err != nil {
			return nil, s.compensateBatch(ctx, tx, created, err)
		}
		created = append(created, payment)
	}

	if err := tx.Commit(); err != nil {
		return nil, s.compensateBatch(ctx, tx, created, err)
	}

	for _, payment := range created {
		_ = s.eventRepo.Create(ctx, &entity.PaymentEvent{
			PaymentID:     payment.ID,
			TransactionID: payment.TransactionID,
			EventType:     "payment_loaded",
			NewStatus:     payment.Status,
			CreatedAt:     now,
		})
	}

	return created, nil
}

func (s *PaymentService) compensateBatch(ctx context.Context, tx repository.Tx, created []*entity.Payment, cause error) error {
	if err := tx.Rollback(); err != nil {
		s.logger.WithError(err).Warn("batch rollback failed")
	}

	now := time.Now().UTC()
	for _, payment := range created {
		oldStatus := payment.Status
		payment.ID = 0
		payment.Status = entity.StatusFailed
		payment.Details.Error = cause.Error()
		payment.UpdatedAt = now

		if err := s.store.UpsertFailed(ctx, payment); err != nil {
			s.logger.WithError(err).
				WithField("transaction_id", payment.TransactionID).
				Error("batch compensating write failed; payment state requires out-of-band reconciliation")
			continue
		}

		_ = s.eventRepo.Create(ctx, &entity.PaymentEvent{
			PaymentID:     payment.ID,
			TransactionID: payment.TransactionID,
			EventType:     "payment_failed",
			OldStatus:     &oldStatus,
			NewStatus:     payment.Status,
			CreatedAt:     now,
		})
	}

	if errors.Is(cause, repository.ErrDuplicateTransactionID) {
		return ErrDuplicateTransaction
	}
	return cause
}

func (s *PaymentService) GetPayment(ctx context.Context, req *types.GetPaymentRequest) (*entity.Payment, error) {
	var payment *entity.Payment
	var err error

	if req.TransactionID != "" {
		payment, err = s.store.FindByTransactionID(ctx, req.TransactionID)
	} else {
		payment, err = s.store.FindByID(ctx, req.ID)
	}
	if err != nil {
		return nil, err
	}
	if payment == nil {
		return nil, ErrPaymentNotFound
	}
	return payment, nil
}

func (s *PaymentService) ListUserPayments(ctx context.Context, userID string) ([]*entity.Payment, error) {
	return s.store.ListByUser(ctx, userID)
}

func (s *PaymentService) batchSize() int32 {
	if s.paymentsCfg.JobBatchSize > 0 {
		return s.paymentsCfg.JobBatchSize
	}
	return defaultBatchSize
}
