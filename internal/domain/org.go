package domain

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"
)

type AccessControlType string

const (
	AccessControlStandard AccessControlType = "STANDARD"
	AccessControlTiered   AccessControlType = "TIERED"
)

// Mailer setting keys accepted on an organization's configuration
const (
	MailerSettingDefaultSender = "DEFAULT_SENDER"
	MailerSettingSenderName    = "SENDER_NAME"
	MailerSettingAPIKey        = "API_KEY"
)

var SupportedMailerSettings = []string{
	MailerSettingDefaultSender,
	MailerSettingSenderName,
	MailerSettingAPIKey,
}

// SecretMailerSettings are stored encrypted
var SecretMailerSettings = map[string]bool{
	MailerSettingAPIKey: true,
}

const publicIdentifierLength = 8

const publicIdentifierAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

var (
	ErrDuplicateRole           = errors.New("duplicate access role")
	ErrDuplicateTier           = errors.New("duplicate access tier")
	ErrUnsupportedMailerOption = errors.New("unsupported mailer setting")
)

type Organization struct {
	ID               int32          `json:"id"`
	Name             string         `json:"name"`
	PublicIdentifier string         `json:"public_identifier"`
	IsMaster         bool           `json:"is_master"`
	Address          string         `json:"address"`
	Configuration    *Configuration `json:"configuration,omitempty"`
	CreatedOn        time.Time      `json:"created_on"`
}

// Configuration is owned one-to-one by an Organization.
// AccessTiers is ordered; a tier's index is its rank.
type Configuration struct {
	ID                int32             `json:"id"`
	OrganizationID    int32             `json:"organization_id"`
	AccessControlType AccessControlType `json:"access_control_type"`
	AccessRoles       []string          `json:"access_roles"`
	AccessTiers       []string          `json:"access_tiers"`
	Domain            string            `json:"domain"`
	MailerSettings    map[string]string `json:"-"`
}

// NewPublicIdentifier returns a random alphanumeric tenant discriminator
func NewPublicIdentifier() (string, error) {
	max := big.NewInt(int64(len(publicIdentifierAlphabet)))
	b := make([]byte, publicIdentifierLength)
	for i := range b {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("generate public identifier: %w", err)
		}
		b[i] = publicIdentifierAlphabet[n.Int64()]
	}
	return string(b), nil
}

// Validate enforces uniqueness of roles and tiers and the mailer key vocabulary
func (c *Configuration) Validate() error {
	if err := unique(c.AccessRoles, ErrDuplicateRole); err != nil {
		return err
	}
	if err := unique(c.AccessTiers, ErrDuplicateTier); err != nil {
		return err
	}
	for key := range c.MailerSettings {
		if !isSupportedMailerSetting(key) {
			return fmt.Errorf("%w: %s", ErrUnsupportedMailerOption, key)
		}
	}
	return nil
}

// HasRole reports whether the organization recognizes role
func (c *Configuration) HasRole(role string) bool {
	for _, r := range c.AccessRoles {
		if r == role {
			return true
		}
	}
	return false
}

// TierRank returns the positional rank of tier
func (c *Configuration) TierRank(tier string) (int, bool) {
	for i, t := range c.AccessTiers {
		if t == tier {
			return i, true
		}
	}
	return -1, false
}

func unique(values []string, dupErr error) error {
	seen := make(map[string]struct{}, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			return fmt.Errorf("%w: %s", dupErr, v)
		}
		seen[v] = struct{}{}
	}
	return nil
}

func isSupportedMailerSetting(key string) bool {
	for _, k := range SupportedMailerSettings {
		if k == key {
			return true
		}
	}
	return false
}
