package postgres

import (
	"context"
	"database/sql"
	"time"

	"tenantauth-backend/internal/domain"
	"tenantauth-backend/internal/logger"
	"tenantauth-backend/internal/repository"
)

const transactionColumns = `id, destination_account, amount, product_name, provider, service_provider_transaction_id,
	status, status_description, type, service_provider, created_at, updated_at`

type transactionRepository struct {
	db *sql.DB
}

func NewTransactionRepository(db *sql.DB) repository.TransactionRepository {
	return &transactionRepository{db: db}
}

func (r *transactionRepository) Create(ctx context.Context, t *domain.MpesaTransaction) error {
	now := time.Now().UTC()
	t.CreatedAt = now
	t.UpdatedAt = now
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO mpesa_transactions (`+transactionColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		t.ID, t.DestinationAccount, t.Amount, t.ProductName, t.Provider, t.ServiceProviderTransactionID,
		t.Status, t.StatusDescription, t.Type, t.ServiceProvider, t.CreatedAt, t.UpdatedAt,
	)
	logger.DatabaseResult("INSERT", 1, err, "table", "mpesa_transactions", "id", t.ID)
	return mapError(err)
}

func (r *transactionRepository) GetByProviderTransactionID(ctx context.Context, providerTxID string) (*domain.MpesaTransaction, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+transactionColumns+` FROM mpesa_transactions WHERE service_provider_transaction_id = $1`, providerTxID)
	t, err := scanTransaction(row)
	if err != nil {
		return nil, mapError(err)
	}
	return t, nil
}

// UpdateStatus only rewrites rows that are not yet terminal, or already carry the same status
func (r *transactionRepository) UpdateStatus(ctx context.Context, t *domain.MpesaTransaction) error {
	t.UpdatedAt = time.Now().UTC()
	res, err := r.db.ExecContext(ctx,
		`UPDATE mpesa_transactions SET status=$1, status_description=$2, updated_at=$3
		 WHERE id=$4 AND (status NOT IN ('COMPLETE', 'FAILED') OR status = $1)`,
		t.Status, t.StatusDescription, t.UpdatedAt, t.ID,
	)
	if err != nil {
		return mapError(err)
	}
	n, err := res.RowsAffected()
	logger.DatabaseResult("UPDATE", n, err, "table", "mpesa_transactions", "id", t.ID, "status", t.Status)
	if err == nil && n == 0 {
		return domain.ErrTransactionFinalized
	}
	return err
}

func (r *transactionRepository) List(ctx context.Context, page, pageSize int32) ([]domain.MpesaTransaction, int32, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}

	var count int32
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM mpesa_transactions`).Scan(&count); err != nil {
		return nil, 0, err
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT `+transactionColumns+` FROM mpesa_transactions ORDER BY created_at DESC LIMIT $1 OFFSET $2`,
		pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	txs, err := scanTransactions(rows)
	return txs, count, err
}

func (r *transactionRepository) ListByStatusOlderThan(ctx context.Context, status domain.TransactionStatus, cutoff time.Time) ([]domain.MpesaTransaction, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+transactionColumns+` FROM mpesa_transactions WHERE status = $1 AND created_at < $2 ORDER BY created_at`,
		status, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTransactions(rows)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row rowScanner) (*domain.MpesaTransaction, error) {
	t := &domain.MpesaTransaction{}
	err := row.Scan(&t.ID, &t.DestinationAccount, &t.Amount, &t.ProductName, &t.Provider,
		&t.ServiceProviderTransactionID, &t.Status, &t.StatusDescription, &t.Type, &t.ServiceProvider,
		&t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return t, nil
}

func scanTransactions(rows *sql.Rows) ([]domain.MpesaTransaction, error) {
	var txs []domain.MpesaTransaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		txs = append(txs, *t)
	}
	return txs, rows.Err()
}
