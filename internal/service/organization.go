package service

import (
	"context"
	"errors"
	"fmt"

	"tenantauth-backend/internal/domain"
	"tenantauth-backend/internal/logger"
	"tenantauth-backend/internal/repository"
)

type organizationService struct {
	orgRepo repository.OrganizationRepository
}

func NewOrganizationService(orgRepo repository.OrganizationRepository) OrganizationService {
	return &organizationService{orgRepo: orgRepo}
}

// EnsureMaster returns the master organization, creating it with a STANDARD
// configuration over the default role vocabulary if none exists.
func (s *organizationService) EnsureMaster(ctx context.Context, name string) (*domain.Organization, error) {
	log := logger.WithMethod("OrganizationService", "EnsureMaster")

	org, err := s.orgRepo.GetMaster(ctx)
	if err == nil {
		return org, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("failed to load master organization: %w", err)
	}

	publicID, err := domain.NewPublicIdentifier()
	if err != nil {
		return nil, err
	}
	org = &domain.Organization{
		Name:             name,
		PublicIdentifier: publicID,
		IsMaster:         true,
		Configuration: &domain.Configuration{
			AccessControlType: domain.AccessControlStandard,
			AccessRoles:       []string{domain.RoleAdmin, domain.RoleClient},
			AccessTiers:       []string{},
			MailerSettings:    map[string]string{},
		},
	}
	if err := s.orgRepo.Create(ctx, org); err != nil {
		// another process bootstrapped concurrently
		if errors.Is(err, repository.ErrAlreadyExists) {
			return s.orgRepo.GetMaster(ctx)
		}
		return nil, fmt.Errorf("failed to create master organization: %w", err)
	}
	log.Info("Master organization created", "organization_id", org.ID, "public_identifier", org.PublicIdentifier)
	return org, nil
}

// Resolve finds the organization for a signup; an empty identifier selects the master organization
func (s *organizationService) Resolve(ctx context.Context, publicID string) (*domain.Organization, error) {
	var (
		org *domain.Organization
		err error
	)
	if publicID == "" {
		org, err = s.orgRepo.GetMaster(ctx)
	} else {
		org, err = s.orgRepo.GetByPublicID(ctx, publicID)
	}
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrUnknownOrganization
	}
	if err != nil {
		return nil, fmt.Errorf("failed to resolve organization: %w", err)
	}
	if org.Configuration == nil {
		return nil, newError(KindConfiguration, "Organization %s has no configuration.", org.Name)
	}
	return org, nil
}

func (s *organizationService) GetByID(ctx context.Context, id int32) (*domain.Organization, error) {
	org, err := s.orgRepo.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrUnknownOrganization
	}
	return org, err
}
