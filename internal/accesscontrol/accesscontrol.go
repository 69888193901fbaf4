// Package accesscontrol decides whether a user's role assignment satisfies a requirement
// under their organization's STANDARD or TIERED access control configuration.
package accesscontrol

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"tenantauth-backend/internal/domain"
)

// AnyTier matches every tier, including a role held without one
const AnyTier = "any"

var (
	ErrRoleNotFound = errors.New("role not recognized")
	ErrTierNotFound = errors.New("tier not recognized")
)

// Requirement is a required role, optionally qualified by a tier
type Requirement struct {
	Role string
	Tier string
}

// ParseRequirement reads "ROLE" or "ROLE:TIER"
func ParseRequirement(s string) Requirement {
	role, tier, _ := strings.Cut(s, ":")
	return Requirement{Role: role, Tier: tier}
}

func ParseRequirements(specs []string) []Requirement {
	reqs := make([]Requirement, 0, len(specs))
	for _, s := range specs {
		reqs = append(reqs, ParseRequirement(s))
	}
	return reqs
}

// HasRole under STANDARD control reports possession of required.
// Under TIERED control it only reports that the organization recognizes required;
// tier sufficiency is checked by HasTier.
func HasRole(cfg *domain.Configuration, userRoles domain.RoleAssignment, required string) (bool, error) {
	if !cfg.HasRole(required) {
		return false, fmt.Errorf("%w: %s", ErrRoleNotFound, required)
	}
	switch cfg.AccessControlType {
	case domain.AccessControlStandard:
		_, held := userRoles[required]
		return held, nil
	case domain.AccessControlTiered:
		return true, nil
	default:
		return false, fmt.Errorf("unsupported access control type %q", cfg.AccessControlType)
	}
}

// TierMatches compares one held tier with required by exact rank.
func TierMatches(cfg *domain.Configuration, userTier *string, required string) (bool, error) {
	if required == AnyTier {
		return true, nil
	}
	requiredRank, ok := cfg.TierRank(required)
	if !ok {
		return false, fmt.Errorf("%w: required tier %s", ErrTierNotFound, required)
	}
	if userTier == nil {
		return false, nil
	}
	userRank, ok := cfg.TierRank(*userTier)
	if !ok {
		return false, fmt.Errorf("%w: user tier %s", ErrTierNotFound, *userTier)
	}
	return userRank == requiredRank, nil
}

// HasTier holds when every role the user holds carries a tier of exactly the required rank.
// A user holding no roles has no tier.
func HasTier(cfg *domain.Configuration, userRoles domain.RoleAssignment, required string) (bool, error) {
	if len(userRoles) == 0 {
		return false, nil
	}
	for _, role := range sortedRoles(userRoles) {
		ok, err := TierMatches(cfg, userRoles[role], required)
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}

// Authorize is the route guard entry point.
//
// STANDARD: granted when ANY requirement's role is held.
// TIERED: a requirement is satisfied when its role is recognized and EVERY held role passes
// HasTier for the requirement's tier; the first satisfied requirement grants.
// The OR/AND difference between the modes is intentional and relied upon by callers.
func Authorize(cfg *domain.Configuration, userRoles domain.RoleAssignment, reqs []Requirement) (bool, error) {
	if cfg == nil {
		return false, errors.New("organization has no access control configuration")
	}
	if len(reqs) == 0 {
		return true, nil
	}

	for _, req := range reqs {
		ok, err := HasRole(cfg, userRoles, req.Role)
		if err != nil {
			return false, err
		}
		if !ok {
			continue
		}
		if cfg.AccessControlType == domain.AccessControlStandard {
			return true, nil
		}

		tier := req.Tier
		if tier == "" {
			tier = AnyTier
		}
		ok, err = HasTier(cfg, userRoles, tier)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

// Assign validates role (and tier, under TIERED control) against the organization and
// records it on the user. Under STANDARD control the tier is dropped.
func Assign(cfg *domain.Configuration, u *domain.User, role string, tier *string) error {
	if !cfg.HasRole(role) {
		return fmt.Errorf("%w: %s", ErrRoleNotFound, role)
	}
	if cfg.AccessControlType == domain.AccessControlStandard {
		tier = nil
	}
	if tier != nil {
		if _, ok := cfg.TierRank(*tier); !ok {
			return fmt.Errorf("%w: %s", ErrTierNotFound, *tier)
		}
	}
	if u.Roles == nil {
		u.Roles = make(domain.RoleAssignment)
	}
	u.Roles[role] = tier
	return nil
}

// ValidateAssignment checks a whole role map against the organization vocabulary
func ValidateAssignment(cfg *domain.Configuration, roles domain.RoleAssignment) error {
	for _, role := range sortedRoles(roles) {
		if !cfg.HasRole(role) {
			return fmt.Errorf("%w: %s", ErrRoleNotFound, role)
		}
		if tier := roles[role]; tier != nil && cfg.AccessControlType == domain.AccessControlTiered {
			if _, ok := cfg.TierRank(*tier); !ok {
				return fmt.Errorf("%w: %s", ErrTierNotFound, *tier)
			}
		}
	}
	return nil
}

// DefaultTier picks the tier assigned with a role at registration under TIERED control:
// the most senior tier for administrators, the most junior otherwise.
func DefaultTier(cfg *domain.Configuration, role string) *string {
	if cfg.AccessControlType != domain.AccessControlTiered || len(cfg.AccessTiers) == 0 {
		return nil
	}
	tier := cfg.AccessTiers[0]
	if role == domain.RoleAdmin {
		tier = cfg.AccessTiers[len(cfg.AccessTiers)-1]
	}
	return &tier
}

func sortedRoles(roles domain.RoleAssignment) []string {
	names := make([]string, 0, len(roles))
	for r := range roles {
		names = append(names, r)
	}
	sort.Strings(names)
	return names
}
