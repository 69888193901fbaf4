package postgres

import (
	"context"
	"database/sql"
	"time"

	"tenantauth-backend/internal/logger"
	"tenantauth-backend/internal/repository"
)

type blacklistRepository struct {
	db *sql.DB
}

func NewBlacklistRepository(db *sql.DB) repository.BlacklistRepository {
	return &blacklistRepository{db: db}
}

func (r *blacklistRepository) Add(ctx context.Context, token string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO blacklisted_tokens (token, blacklisted_on) VALUES ($1, $2)`, token, time.Now().UTC())
	return mapError(err)
}

func (r *blacklistRepository) Exists(ctx context.Context, token string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM blacklisted_tokens WHERE token = $1)`, token).Scan(&exists)
	return exists, mapError(err)
}

func (r *blacklistRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	logger.DatabaseCall("DELETE", "blacklisted_tokens", "cutoff", cutoff)
	res, err := r.db.ExecContext(ctx, `DELETE FROM blacklisted_tokens WHERE blacklisted_on < $1`, cutoff)
	if err != nil {
		logger.DatabaseResult("DELETE", 0, err, "table", "blacklisted_tokens")
		return 0, err
	}
	n, err := res.RowsAffected()
	logger.DatabaseResult("DELETE", n, err, "table", "blacklisted_tokens")
	return n, err
}
