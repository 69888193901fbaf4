package repository

import (
	"context"
	"errors"
	"time"

	"tenantauth-backend/internal/domain"
)

var (
	ErrNotFound      = errors.New("record not found")
	ErrAlreadyExists = errors.New("record already exists")
)

type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id int32) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetByPhone(ctx context.Context, phone string) (*domain.User, error)
	Update(ctx context.Context, user *domain.User) error
}

type OrganizationRepository interface {
	Create(ctx context.Context, org *domain.Organization) error
	GetByID(ctx context.Context, id int32) (*domain.Organization, error)
	GetByPublicID(ctx context.Context, publicID string) (*domain.Organization, error)
	GetMaster(ctx context.Context) (*domain.Organization, error)
	UpdateConfiguration(ctx context.Context, cfg *domain.Configuration) error
}

// BlacklistRepository is append-only; Add returns ErrAlreadyExists for a known token
type BlacklistRepository interface {
	Add(ctx context.Context, token string) error
	Exists(ctx context.Context, token string) (bool, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

type TransactionRepository interface {
	Create(ctx context.Context, tx *domain.MpesaTransaction) error
	GetByProviderTransactionID(ctx context.Context, providerTxID string) (*domain.MpesaTransaction, error)
	UpdateStatus(ctx context.Context, tx *domain.MpesaTransaction) error
	List(ctx context.Context, page, pageSize int32) ([]domain.MpesaTransaction, int32, error)
	ListByStatusOlderThan(ctx context.Context, status domain.TransactionStatus, cutoff time.Time) ([]domain.MpesaTransaction, error)
}
