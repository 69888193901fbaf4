package postgres

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"tenantauth-backend/internal/repository"
	"tenantauth-backend/internal/security"
)

const uniqueViolation = "23505"

type Store struct {
	db            *sql.DB
	Users         repository.UserRepository
	Organizations repository.OrganizationRepository
	Blacklist     repository.BlacklistRepository
	Transactions  repository.TransactionRepository
}

// NewStore wires every repository over one pool; secrets encrypts organization mailer secrets at rest
func NewStore(db *sql.DB, secrets *security.Cipher) *Store {
	return &Store{
		db:            db,
		Users:         NewUserRepository(db),
		Organizations: NewOrganizationRepository(db, secrets),
		Blacklist:     NewBlacklistRepository(db),
		Transactions:  NewTransactionRepository(db),
	}
}

func (s *Store) DB() *sql.DB {
	return s.db
}

// mapError converts driver errors into repository sentinels
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return repository.ErrNotFound
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return fmt.Errorf("%w: %s", repository.ErrAlreadyExists, pqErr.Constraint)
	}
	return err
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
