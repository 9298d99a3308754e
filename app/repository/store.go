package repository

import (
	"context"
	"database/sql"

	"github.com/vibast-solutions/ms-go-event-payments/app/entity"
)

// Tx is the store's atomic multi-write primitive: every write issued through
// it becomes visible only on Commit, and Rollback discards all of them.
type Tx interface {
	Create(ctx context.Context, payment *entity.Payment) error
	Update(ctx context.Context, payment *entity.Payment) error
	Commit() error
	Rollback() error
}

// PaymentStore couples the payment repository with the database handle that
// can open transactions. Reads and the compensating upsert go straight to
// the pool; settlement writes go through Begin.
type PaymentStore struct {
	*PaymentRepository
	db *sql.DB
}

func NewPaymentStore(db *sql.DB) *PaymentStore {
	return &PaymentStore{
		PaymentRepository: NewPaymentRepository(db),
		db:                db,
	}
}

func (s *PaymentStore) Begin(ctx context.Context) (Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &paymentTx{tx: tx, repo: NewPaymentRepository(tx)}, nil
}

type paymentTx struct {
	tx   *sql.Tx
	repo *PaymentRepository
}

func (t *paymentTx) Create(ctx context.Context, payment *entity.Payment) error {
	return t.repo.Create(ctx, payment)
}

func (t *paymentTx) Update(ctx context.Context, payment *entity.Payment) error {
	return t.repo.Update(ctx, payment)
}

func (t *paymentTx) Commit() error {
	return t.tx.Commit()
}

func (t *paymentTx) Rollback() error {
	return t.tx.Rollback()
}
