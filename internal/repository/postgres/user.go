package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"

	"tenantauth-backend/internal/domain"
	"tenantauth-backend/internal/logger"
	"tenantauth-backend/internal/repository"
)

const userColumns = `id, given_names, surname, email, phone, password_hash, identification, is_activated,
	otp_secret, roles, password_reset_tokens, organization_id, signup_method, created_on, updated_on`

type userRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) repository.UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) Create(ctx context.Context, u *domain.User) error {
	identification, roles, err := marshalUserMaps(u)
	if err != nil {
		return err
	}
	query := `INSERT INTO users (given_names, surname, email, phone, password_hash, identification, is_activated,
	          otp_secret, roles, password_reset_tokens, organization_id, signup_method, created_on, updated_on)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14) RETURNING id`
	now := time.Now().UTC()
	u.CreatedOn = now
	u.UpdatedOn = now

	logger.DatabaseCall("INSERT", "users", "email", u.Email != "", "phone", u.Phone != "")
	err = r.db.QueryRowContext(ctx, query,
		u.GivenNames, u.Surname, nullString(u.Email), nullString(u.Phone), u.PasswordHash, identification,
		u.IsActivated, u.OTPSecret, roles, pq.Array(u.PasswordResetTokens), u.OrganizationID, u.SignupMethod,
		u.CreatedOn, u.UpdatedOn,
	).Scan(&u.ID)
	logger.DatabaseResult("INSERT", 1, err, "table", "users")
	return mapError(err)
}

func (r *userRepository) GetByID(ctx context.Context, id int32) (*domain.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE LOWER(email) = LOWER($1)`, email)
}

func (r *userRepository) GetByPhone(ctx context.Context, phone string) (*domain.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE phone = $1`, phone)
}

func (r *userRepository) Update(ctx context.Context, u *domain.User) error {
	identification, roles, err := marshalUserMaps(u)
	if err != nil {
		return err
	}
	query := `UPDATE users SET given_names=$1, surname=$2, email=$3, phone=$4, password_hash=$5, identification=$6,
	          is_activated=$7, otp_secret=$8, roles=$9, password_reset_tokens=$10, updated_on=$11 WHERE id=$12`
	u.UpdatedOn = time.Now().UTC()

	res, err := r.db.ExecContext(ctx, query,
		u.GivenNames, u.Surname, nullString(u.Email), nullString(u.Phone), u.PasswordHash, identification,
		u.IsActivated, u.OTPSecret, roles, pq.Array(u.PasswordResetTokens), u.UpdatedOn, u.ID,
	)
	if err != nil {
		return mapError(err)
	}
	n, err := res.RowsAffected()
	logger.DatabaseResult("UPDATE", n, err, "table", "users", "id", u.ID)
	if err == nil && n == 0 {
		return repository.ErrNotFound
	}
	return err
}

func (r *userRepository) getOne(ctx context.Context, query string, arg any) (*domain.User, error) {
	u := &domain.User{}
	var email, phone sql.NullString
	var identification, roles []byte
	var resetTokens pq.StringArray

	err := r.db.QueryRowContext(ctx, query, arg).Scan(
		&u.ID, &u.GivenNames, &u.Surname, &email, &phone, &u.PasswordHash, &identification, &u.IsActivated,
		&u.OTPSecret, &roles, &resetTokens, &u.OrganizationID, &u.SignupMethod, &u.CreatedOn, &u.UpdatedOn,
	)
	if err != nil {
		return nil, mapError(err)
	}
	u.Email = email.String
	u.Phone = phone.String
	u.PasswordResetTokens = []string(resetTokens)

	if len(identification) > 0 {
		if err := json.Unmarshal(identification, &u.Identification); err != nil {
			return nil, fmt.Errorf("decode identification: %w", err)
		}
	}
	if len(roles) > 0 {
		if err := json.Unmarshal(roles, &u.Roles); err != nil {
			return nil, fmt.Errorf("decode roles: %w", err)
		}
	}
	return u, nil
}

func marshalUserMaps(u *domain.User) ([]byte, []byte, error) {
	identification := u.Identification
	if identification == nil {
		identification = map[domain.IdentificationType]string{}
	}
	idJSON, err := json.Marshal(identification)
	if err != nil {
		return nil, nil, fmt.Errorf("encode identification: %w", err)
	}
	roles := u.Roles
	if roles == nil {
		roles = domain.RoleAssignment{}
	}
	rolesJSON, err := json.Marshal(roles)
	if err != nil {
		return nil, nil, fmt.Errorf("encode roles: %w", err)
	}
	return idJSON, rolesJSON, nil
}
