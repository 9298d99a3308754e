package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/vibast-solutions/ms-go-event-payments/app/entity"
)

var (
	ErrPaymentNotFound        = errors.New("payment not found")
	ErrDuplicateTransactionID = errors.New("duplicate transaction id")
)

type PaymentRepository struct {
	db DBTX
}

func NewPaymentRepository(db DBTX) *PaymentRepository {
	return &PaymentRepository{db: db}
}

const paymentColumns = `id, transaction_id, user_id, event_id, amount, currency, payment_method, status, details_json, created_at, updated_at`

func (r *PaymentRepository) Create(ctx context.Context, payment *entity.Payment) error {
	detailsJSON, err := serializeDetails(payment.Details)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO payments (
			transaction_id, user_id, event_id, amount, currency,
			payment_method, status, details_json, created_at, updated_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := r.db.ExecContext(ctx, query,
		payment.TransactionID,
		payment.UserID,
		payment.EventID,
		payment.Amount,
		payment.Currency,
		payment.PaymentMethod,
		payment.Status,
		detailsJSON,
		payment.CreatedAt,
		payment.UpdatedAt,
	)
	if err != nil {
		if isDuplicateEntryError(err) {
			return ErrDuplicateTransactionID
		}
		return err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	payment.ID = uint64(id)
	return nil
}

func (r *PaymentRepository) Update(ctx context.Context, payment *entity.Payment) error {
	detailsJSON, err := serializeDetails(payment.Details)
	if err != nil {
		return err
	}

	query := `
		UPDATE payments SET
			status = ?,
			details_json = ?,
			updated_at = ?
		WHERE id = ?
	`

	result, err := r.db.ExecContext(ctx, query,
		payment.Status,
		detailsJSON,
		payment.UpdatedAt,
		payment.ID,
	)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrPaymentNotFound
	}

	return nil
}

// UpsertFailed is the compensating write: after a settlement transaction is
// aborted the provisional insert is gone, so the failed record is written
// outside any transaction, keyed by the unique transaction id. A leftover
// row for the same transaction id is downgraded in place.
func (r *PaymentRepository) UpsertFailed(ctx context.Context, payment *entity.Payment) error {
	detailsJSON, err := serializeDetails(payment.Details)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO payments (
			transaction_id, user_id, event_id, amount, currency,
			payment_method, status, details_json, created_at, updated_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			status = VALUES(status),
			details_json = VALUES(details_json),
			updated_at = VALUES(updated_at)
	`

	result, err := r.db.ExecContext(ctx, query,
		payment.TransactionID,
		payment.UserID,
		payment.EventID,
		payment.Amount,
		payment.Currency,
		payment.PaymentMethod,
		entity.StatusFailed,
		detailsJSON,
		payment.CreatedAt,
		payment.UpdatedAt,
	)
	if err != nil {
		return err
	}

	if id, err := result.LastInsertId(); err == nil && id > 0 {
		payment.ID = uint64(id)
	}
	payment.Status = entity.StatusFailed
	return nil
}

func (r *PaymentRepository) FindByID(ctx context.Context, id uint64) (*entity.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE id = ?`

	payment := &entity.Payment{}
	if err := scanPayment(r.db.QueryRowContext(ctx, query, id), payment); err == sql.ErrNoRows {
		return nil, nil
	} else if err != nil {
		return nil, err
	}

	return payment, nil
}

func (r *PaymentRepository) FindByTransactionID(ctx context.Context, transactionID string) (*entity.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE transaction_id = ? LIMIT 1`

	payment := &entity.Payment{}
	if err := scanPayment(r.db.QueryRowContext(ctx, query, transactionID), payment); err == sql.ErrNoRows {
		return nil, nil
	} else if err != nil {
		return nil, err
	}

	return payment, nil
}

func (r *PaymentRepository) ListByUser(ctx context.Context, userID string) ([]*entity.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE user_id = ? ORDER BY id DESC`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	payments := make([]*entity.Payment, 0)
	for rows.Next() {
		item := &entity.Payment{}
		if err := scanPayment(rows, item); err != nil {
			return nil, err
		}
		payments = append(payments, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return payments, nil
}

// ListRecentFailed feeds the reconcile job: failed payments updated since
// the cutoff, oldest first.
func (r *PaymentRepository) ListRecentFailed(ctx context.Context, since time.Time, limit int32) ([]*entity.Payment, error) {
	query := `
		SELECT ` + paymentColumns + `
		FROM payments
		WHERE status = ?
		  AND updated_at >= ?
		ORDER BY updated_at ASC
		LIMIT ?
	`

	rows, err := r.db.QueryContext(ctx, query, entity.StatusFailed, since, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	payments := make([]*entity.Payment, 0)
	for rows.Next() {
		item := &entity.Payment{}
		if err := scanPayment(rows, item); err != nil {
			return nil, err
		}
		payments = append(payments, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return payments, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanPayment(scan rowScanner, payment *entity.Payment) error {
	var detailsJSON string

	err := scan.Scan(
		&payment.ID,
		&payment.TransactionID,
		&payment.UserID,
		&payment.EventID,
		&payment.Amount,
		&payment.Currency,
		&payment.PaymentMethod,
		&payment.Status,
		&detailsJSON,
		&payment.CreatedAt,
		&payment.UpdatedAt,
	)
	if err != nil {
		return err
	}

	details, err := parseDetails(detailsJSON)
	if err != nil {
		return err
	}
	payment.Details = details

	return nil
}
