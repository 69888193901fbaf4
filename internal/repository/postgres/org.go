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
	"tenantauth-backend/internal/security"
)

const organizationSelect = `SELECT o.id, o.name, o.public_identifier, o.is_master, o.address, o.created_on,
	c.id, c.access_control_type, c.access_roles, c.access_tiers, c.domain, c.mailer_settings
	FROM organizations o JOIN configurations c ON c.organization_id = o.id`

type organizationRepository struct {
	db      *sql.DB
	secrets *security.Cipher
}

// NewOrganizationRepository stores an organization together with its configuration.
// Secret mailer settings are encrypted with secrets before they are written.
func NewOrganizationRepository(db *sql.DB, secrets *security.Cipher) repository.OrganizationRepository {
	return &organizationRepository{db: db, secrets: secrets}
}

func (r *organizationRepository) Create(ctx context.Context, o *domain.Organization) error {
	if o.Configuration == nil {
		o.Configuration = &domain.Configuration{AccessControlType: domain.AccessControlStandard}
	}
	if err := o.Configuration.Validate(); err != nil {
		return err
	}
	mailer, err := r.encodeMailerSettings(o.Configuration.MailerSettings)
	if err != nil {
		return err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	o.CreatedOn = time.Now().UTC()
	err = tx.QueryRowContext(ctx,
		`INSERT INTO organizations (name, public_identifier, is_master, address, created_on)
		 VALUES ($1, $2, $3, $4, $5) RETURNING id`,
		o.Name, o.PublicIdentifier, o.IsMaster, o.Address, o.CreatedOn,
	).Scan(&o.ID)
	if err != nil {
		return mapError(err)
	}

	c := o.Configuration
	c.OrganizationID = o.ID
	err = tx.QueryRowContext(ctx,
		`INSERT INTO configurations (organization_id, access_control_type, access_roles, access_tiers, domain, mailer_settings)
		 VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`,
		c.OrganizationID, c.AccessControlType, pq.Array(c.AccessRoles), pq.Array(c.AccessTiers), c.Domain, mailer,
	).Scan(&c.ID)
	if err != nil {
		return mapError(err)
	}

	err = tx.Commit()
	logger.DatabaseResult("INSERT", 2, err, "table", "organizations", "public_identifier", o.PublicIdentifier)
	return err
}

func (r *organizationRepository) GetByID(ctx context.Context, id int32) (*domain.Organization, error) {
	return r.getOne(ctx, organizationSelect+` WHERE o.id = $1`, id)
}

func (r *organizationRepository) GetByPublicID(ctx context.Context, publicID string) (*domain.Organization, error) {
	return r.getOne(ctx, organizationSelect+` WHERE o.public_identifier = $1`, publicID)
}

func (r *organizationRepository) GetMaster(ctx context.Context) (*domain.Organization, error) {
	return r.getOne(ctx, organizationSelect+` WHERE o.is_master = $1`, true)
}

func (r *organizationRepository) UpdateConfiguration(ctx context.Context, c *domain.Configuration) error {
	if err := c.Validate(); err != nil {
		return err
	}
	mailer, err := r.encodeMailerSettings(c.MailerSettings)
	if err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx,
		`UPDATE configurations SET access_control_type=$1, access_roles=$2, access_tiers=$3, domain=$4, mailer_settings=$5
		 WHERE organization_id=$6`,
		c.AccessControlType, pq.Array(c.AccessRoles), pq.Array(c.AccessTiers), c.Domain, mailer, c.OrganizationID,
	)
	if err != nil {
		return mapError(err)
	}
	n, err := res.RowsAffected()
	if err == nil && n == 0 {
		return repository.ErrNotFound
	}
	return err
}

func (r *organizationRepository) getOne(ctx context.Context, query string, arg any) (*domain.Organization, error) {
	o := &domain.Organization{Configuration: &domain.Configuration{}}
	c := o.Configuration
	var roles, tiers pq.StringArray
	var mailer []byte

	err := r.db.QueryRowContext(ctx, query, arg).Scan(
		&o.ID, &o.Name, &o.PublicIdentifier, &o.IsMaster, &o.Address, &o.CreatedOn,
		&c.ID, &c.AccessControlType, &roles, &tiers, &c.Domain, &mailer,
	)
	if err != nil {
		return nil, mapError(err)
	}
	c.OrganizationID = o.ID
	c.AccessRoles = []string(roles)
	c.AccessTiers = []string(tiers)
	if c.MailerSettings, err = r.decodeMailerSettings(mailer); err != nil {
		return nil, err
	}
	return o, nil
}

func (r *organizationRepository) encodeMailerSettings(settings map[string]string) ([]byte, error) {
	stored := make(map[string]string, len(settings))
	for k, v := range settings {
		if domain.SecretMailerSettings[k] && v != "" {
			enc, err := r.secrets.Encrypt(v)
			if err != nil {
				return nil, fmt.Errorf("encrypt mailer setting %s: %w", k, err)
			}
			v = enc
		}
		stored[k] = v
	}
	return json.Marshal(stored)
}

func (r *organizationRepository) decodeMailerSettings(raw []byte) (map[string]string, error) {
	settings := map[string]string{}
	if len(raw) == 0 {
		return settings, nil
	}
	if err := json.Unmarshal(raw, &settings); err != nil {
		return nil, fmt.Errorf("decode mailer settings: %w", err)
	}
	for k, v := range settings {
		if domain.SecretMailerSettings[k] && v != "" {
			dec, err := r.secrets.Decrypt(v)
			if err != nil {
				return nil, fmt.Errorf("decrypt mailer setting %s: %w", k, err)
			}
			settings[k] = dec
		}
	}
	return settings, nil
}
