package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"tenantauth-backend/internal/accesscontrol"
	"tenantauth-backend/internal/domain"
	"tenantauth-backend/internal/logger"
	"tenantauth-backend/internal/metrics"
	"tenantauth-backend/internal/otp"
	"tenantauth-backend/internal/phone"
	"tenantauth-backend/internal/repository"
	"tenantauth-backend/internal/security"
)

var otpFormat = regexp.MustCompile(`^[0-9]{6}$`)

// AuthServiceDeps are the collaborators of the auth service
type AuthServiceDeps struct {
	Users       repository.UserRepository
	Orgs        OrganizationService
	Tokens      *security.TokenService
	OTP         *otp.Service
	Passwords   *security.PasswordHasher
	Composer    *MailComposer
	Mailer      Mailer
	SMS         SMSSender
	Tasks       Dispatcher
	Metrics     *metrics.Metrics
	PhoneRegion string
	// Development replaces email and SMS delivery with debug logging
	Development bool
}

type authService struct {
	AuthServiceDeps
}

func NewAuthService(deps AuthServiceDeps) AuthService {
	if deps.PhoneRegion == "" {
		deps.PhoneRegion = phone.DefaultRegion
	}
	return &authService{AuthServiceDeps: deps}
}

func (s *authService) Register(ctx context.Context, req *RegisterRequest) (res *RegisterResult, err error) {
	log := logger.WithMethod("AuthService", "Register")
	defer func() { s.observe("register", err) }()

	u, err := s.newUser(req)
	if err != nil {
		return nil, err
	}
	if err := s.ensureUnbound(ctx, u); err != nil {
		return nil, err
	}

	org, err := s.Orgs.Resolve(ctx, req.OrganizationID)
	if err != nil {
		return nil, err
	}
	if err := u.BindToOrganization(org.ID); err != nil {
		return nil, err
	}

	cfg := org.Configuration
	if err := accesscontrol.Assign(cfg, u, domain.RoleClient, accesscontrol.DefaultTier(cfg, domain.RoleClient)); err != nil {
		return nil, err
	}

	if u.SignupMethod == domain.SignupMethodWeb {
		if matchesDomain(u.Email, cfg.Domain) {
			if err := accesscontrol.Assign(cfg, u, domain.RoleAdmin, accesscontrol.DefaultTier(cfg, domain.RoleAdmin)); err != nil {
				return nil, err
			}
		}
		if !s.Composer.IsConfigured(org) {
			return nil, ErrMailerNotConfigured
		}
		return s.registerWeb(ctx, org, u)
	}

	code, err := s.OTP.GenerateSecretAndCode(u)
	if err != nil {
		return nil, err
	}
	if err := s.createUser(ctx, u); err != nil {
		return nil, err
	}
	log.Info("Mobile user registered", "user_id", u.ID, "organization_id", org.ID)
	s.deliverOTP(u, code)

	return &RegisterResult{
		User:    u,
		Message: "Registration successful. Please verify your phone number with the OTP sent.",
	}, nil
}

func (s *authService) registerWeb(ctx context.Context, org *domain.Organization, u *domain.User) (*RegisterResult, error) {
	if err := s.createUser(ctx, u); err != nil {
		return nil, err
	}
	logger.WithMethod("AuthService", "Register").Info("Web user registered", "user_id", u.ID, "organization_id", org.ID)

	token, err := s.Tokens.IssueSingleUseToken(u.ID, security.PurposeUserActivation)
	if err != nil {
		return nil, fmt.Errorf("failed to issue activation token: %w", err)
	}
	if err := s.deliverMail(org, u, MailActivateAccount, token); err != nil {
		return nil, err
	}

	return &RegisterResult{
		User:    u,
		Message: "Registration successful. Please check your email to activate your account.",
	}, nil
}

func (s *authService) newUser(req *RegisterRequest) (*domain.User, error) {
	u := &domain.User{
		GivenNames:   strings.TrimSpace(req.GivenNames),
		Surname:      strings.TrimSpace(req.Surname),
		Email:        strings.ToLower(strings.TrimSpace(req.Email)),
		SignupMethod: req.SignupMethod,
		Roles:        domain.RoleAssignment{},
	}
	if u.GivenNames == "" || u.Surname == "" {
		return nil, ErrEmptyNames
	}

	switch req.SignupMethod {
	case domain.SignupMethodWeb:
		if u.Email == "" {
			return nil, ErrEmailRequired
		}
	case domain.SignupMethodMobile:
		if strings.TrimSpace(req.Phone) == "" {
			return nil, ErrPhoneRequired
		}
		if req.IdentificationType == "" || strings.TrimSpace(req.IdentificationValue) == "" {
			return nil, ErrEmptyIDData
		}
	default:
		return nil, ErrUnsupportedSignupMethod
	}

	if req.Phone != "" {
		normalized, err := s.normalizePhone(req.Phone)
		if err != nil {
			return nil, err
		}
		u.Phone = normalized
	}
	if req.IdentificationType != "" {
		if err := u.SetIdentification(req.IdentificationType, strings.TrimSpace(req.IdentificationValue)); err != nil {
			return nil, err
		}
	}

	hash, err := s.Passwords.Hash(req.Password)
	if errors.Is(err, security.ErrPasswordTooShort) {
		return nil, ErrPasswordTooShort
	}
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}
	u.PasswordHash = hash
	return u, nil
}

// ensureUnbound rejects an email or phone already held by another user
func (s *authService) ensureUnbound(ctx context.Context, u *domain.User) error {
	if u.Email != "" {
		if _, err := s.Users.GetByEmail(ctx, u.Email); err == nil {
			return ErrUserExists
		} else if !errors.Is(err, repository.ErrNotFound) {
			return err
		}
	}
	if u.Phone != "" {
		if _, err := s.Users.GetByPhone(ctx, u.Phone); err == nil {
			return ErrUserExists
		} else if !errors.Is(err, repository.ErrNotFound) {
			return err
		}
	}
	return nil
}

func (s *authService) createUser(ctx context.Context, u *domain.User) error {
	err := s.Users.Create(ctx, u)
	if errors.Is(err, repository.ErrAlreadyExists) {
		return ErrUserExists
	}
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

func (s *authService) Activate(ctx context.Context, activationToken string) (sess *Session, err error) {
	defer func() { s.observe("activate", err) }()

	if activationToken == "" {
		return nil, ErrActivationTokenRequired
	}
	u, err := s.Tokens.DecodeSingleUseToken(ctx, activationToken, security.PurposeUserActivation)
	if err != nil {
		return nil, err
	}
	if u.IsActivated {
		return nil, ErrAlreadyActivated
	}
	return s.activate(ctx, u)
}

func (s *authService) VerifyOTP(ctx context.Context, phoneNumber, code string, windowSeconds uint) (sess *Session, err error) {
	defer func() { s.observe("verify_otp", err) }()

	if !otpFormat.MatchString(code) {
		return nil, ErrMalformedOTP
	}
	u, err := s.userByPhone(ctx, phoneNumber)
	if err != nil {
		return nil, err
	}
	if !s.OTP.Verify(u, code, windowSeconds) {
		return nil, ErrInvalidOTP
	}
	if u.IsActivated {
		return s.session(u)
	}
	return s.activate(ctx, u)
}

// ResendOTP resends the current hour-window code of the stored secret, so a code the user
// already received stays valid. A new secret is minted only when none is readable.
func (s *authService) ResendOTP(ctx context.Context, phoneNumber string) (err error) {
	defer func() { s.observe("resend_otp", err) }()

	u, err := s.userByPhone(ctx, phoneNumber)
	if err != nil {
		return err
	}
	if u.IsActivated {
		return ErrAlreadyActivated
	}

	code, ok := s.OTP.CurrentCode(u)
	if !ok {
		if code, err = s.OTP.GenerateSecretAndCode(u); err != nil {
			return err
		}
		if err := s.Users.Update(ctx, u); err != nil {
			return fmt.Errorf("failed to store otp secret: %w", err)
		}
	}
	s.deliverOTP(u, code)
	return nil
}

// Login reports the same error for an unknown identifier and a wrong password
func (s *authService) Login(ctx context.Context, identifier, password string) (sess *Session, err error) {
	defer func() { s.observe("login", err) }()

	identifier = strings.TrimSpace(identifier)
	var u *domain.User
	if strings.Contains(identifier, "@") {
		u, err = s.Users.GetByEmail(ctx, strings.ToLower(identifier))
	} else {
		normalized, nerr := s.normalizePhone(identifier)
		if nerr != nil {
			return nil, ErrInvalidCredentials
		}
		u, err = s.Users.GetByPhone(ctx, normalized)
	}
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}

	if !s.Passwords.Verify(u.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}
	if !u.IsActivated {
		return nil, ErrNotActivated
	}
	return s.session(u)
}

func (s *authService) Logout(ctx context.Context, sessionToken string) (err error) {
	defer func() { s.observe("logout", err) }()

	if sessionToken == "" {
		return ErrAuthTokenRequired
	}
	if _, err := s.Tokens.DecodeSessionToken(ctx, sessionToken); err != nil {
		return err
	}
	return s.Tokens.Revoke(ctx, sessionToken)
}

func (s *authService) RequestPasswordReset(ctx context.Context, email string) (err error) {
	defer func() { s.observe("request_password_reset", err) }()

	email = strings.ToLower(strings.TrimSpace(email))
	u, err := s.Users.GetByEmail(ctx, email)
	if errors.Is(err, repository.ErrNotFound) {
		return newError(KindNotFound, "No user with that email was found.")
	}
	if err != nil {
		return err
	}

	org, err := s.Orgs.GetByID(ctx, u.OrganizationID)
	if err != nil {
		return err
	}
	if !s.Composer.IsConfigured(org) {
		return ErrMailerNotConfigured
	}

	token, err := s.Tokens.IssueSingleUseToken(u.ID, security.PurposeResetPassword)
	if err != nil {
		return fmt.Errorf("failed to issue reset token: %w", err)
	}
	u.SavePasswordResetToken(token)
	if err := s.Users.Update(ctx, u); err != nil {
		return fmt.Errorf("failed to store reset token: %w", err)
	}
	return s.deliverMail(org, u, MailResetPassword, token)
}

// ResetPassword consumes token and invalidates every other outstanding reset token of the user
func (s *authService) ResetPassword(ctx context.Context, token, newPassword string) (err error) {
	defer func() { s.observe("reset_password", err) }()

	u, err := s.Tokens.DecodeSingleUseToken(ctx, token, security.PurposeResetPassword)
	if err != nil {
		return err
	}

	stillValid := func(t string) bool { return s.Tokens.IsValidSingleUse(t, security.PurposeResetPassword) }
	if u.IsPasswordResetTokenUsed(token, stillValid) {
		return ErrTokenAlreadyUsed
	}

	hash, err := s.Passwords.Hash(newPassword)
	if errors.Is(err, security.ErrPasswordTooShort) {
		return ErrPasswordTooShort
	}
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	u.PasswordHash = hash
	u.ClearPasswordResetTokens()

	if err := s.Users.Update(ctx, u); err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}
	logger.WithMethod("AuthService", "ResetPassword").Info("Password reset", "user_id", u.ID)
	return nil
}

func (s *authService) Authenticate(ctx context.Context, sessionToken string) (*security.SessionClaims, *domain.User, error) {
	if sessionToken == "" {
		return nil, nil, ErrAuthTokenRequired
	}
	claims, err := s.Tokens.DecodeSessionToken(ctx, sessionToken)
	if err != nil {
		return nil, nil, err
	}
	u, err := s.Users.GetByID(ctx, claims.UserID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil, security.ErrUserNotFound
	}
	if err != nil {
		return nil, nil, err
	}
	if !u.IsActivated {
		return nil, nil, ErrNotActivated
	}
	return claims, u, nil
}

func (s *authService) activate(ctx context.Context, u *domain.User) (*Session, error) {
	u.IsActivated = true
	if err := s.Users.Update(ctx, u); err != nil {
		return nil, fmt.Errorf("failed to activate user: %w", err)
	}
	logger.InfoContext(ctx, "User activated", "user_id", u.ID)
	return s.session(u)
}

func (s *authService) session(u *domain.User) (*Session, error) {
	token, err := s.Tokens.IssueSessionToken(u.ID, u.Roles)
	if err != nil {
		return nil, fmt.Errorf("failed to issue session token: %w", err)
	}
	return &Session{Token: token, User: u}, nil
}

func (s *authService) userByPhone(ctx context.Context, phoneNumber string) (*domain.User, error) {
	normalized, err := s.normalizePhone(phoneNumber)
	if err != nil {
		return nil, err
	}
	u, err := s.Users.GetByPhone(ctx, normalized)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, newError(KindNotFound, "No user found for phone number %s.", normalized)
	}
	return u, err
}

func (s *authService) normalizePhone(number string) (string, error) {
	normalized, err := phone.Normalize(number, s.PhoneRegion)
	if err != nil {
		return "", &Error{Kind: KindValidation, Message: "Invalid phone number.", Err: err}
	}
	return normalized, nil
}

func (s *authService) deliverOTP(u *domain.User, code string) {
	if s.Development {
		logger.Debug("Development OTP", "user_id", u.ID, "phone", u.Phone, "otp", code)
		return
	}
	to := u.Phone
	message := fmt.Sprintf("Your verification code is %s", code)
	if _, err := s.Tasks.Enqueue("send_otp_sms", func(ctx context.Context) error {
		return s.SMS.Send(ctx, to, message)
	}); err != nil {
		logger.Warn("Failed to enqueue OTP SMS", "user_id", u.ID, "error", err)
	}
}

func (s *authService) deliverMail(org *domain.Organization, u *domain.User, action MailAction, token string) error {
	msg, err := s.Composer.Compose(org, u, action, token)
	if err != nil {
		return err
	}
	if s.Development {
		logger.Debug("Development single-use token", "user_id", u.ID, "url", s.Composer.ActionURL(action, token))
		return nil
	}
	if _, err := s.Tasks.Enqueue("send_action_email", func(ctx context.Context) error {
		return s.Mailer.Send(ctx, msg)
	}); err != nil {
		logger.Warn("Failed to enqueue email", "user_id", u.ID, "error", err)
	}
	return nil
}

func (s *authService) observe(event string, err error) {
	outcome := metrics.OutcomeSuccess
	if err != nil {
		outcome = metrics.OutcomeFailure
	}
	s.Metrics.AuthEvent(event, outcome)
}

func matchesDomain(email, domainName string) bool {
	if domainName == "" {
		return false
	}
	_, host, ok := strings.Cut(email, "@")
	return ok && strings.EqualFold(host, strings.TrimPrefix(domainName, "@"))
}
