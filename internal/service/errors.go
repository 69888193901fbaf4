package service

import (
	"errors"
	"fmt"

	"tenantauth-backend/internal/accesscontrol"
	"tenantauth-backend/internal/domain"
	"tenantauth-backend/internal/payments"
	"tenantauth-backend/internal/phone"
	"tenantauth-backend/internal/repository"
	"tenantauth-backend/internal/security"
	"tenantauth-backend/internal/tasks"
)

// Kind classifies an error for the transport layer
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindUnprocessable
	KindAuthentication
	KindAuthorization
	KindNotFound
	KindConflict
	KindConfiguration
	KindExternalService
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindUnprocessable:
		return "unprocessable"
	case KindAuthentication:
		return "authentication"
	case KindAuthorization:
		return "authorization"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindConfiguration:
		return "configuration"
	case KindExternalService:
		return "external_service"
	default:
		return "internal"
	}
}

// Error carries a caller-safe message
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

var (
	ErrInvalidCredentials      = &Error{Kind: KindAuthentication, Message: "Invalid credentials, phone number, email or password"}
	ErrNotActivated            = &Error{Kind: KindAuthorization, Message: "Account has not been activated. Please verify your phone number or email."}
	ErrAlreadyActivated        = &Error{Kind: KindConflict, Message: "User is already activated. Please login."}
	ErrUserExists              = &Error{Kind: KindConflict, Message: "User already exists. Please Log in."}
	ErrInvalidOTP              = &Error{Kind: KindValidation, Message: "Invalid OTP provided."}
	ErrMalformedOTP            = &Error{Kind: KindValidation, Message: "OTP must be a 6 digit numeric string"}
	ErrMailerNotConfigured     = &Error{Kind: KindConfiguration, Message: "Please configure your mailer, to facilitate admin registration."}
	ErrTokenAlreadyUsed        = &Error{Kind: KindAuthentication, Message: "This token has already been used."}
	ErrActivationTokenRequired = &Error{Kind: KindValidation, Message: "Activation token is required."}
	ErrAuthTokenRequired       = &Error{Kind: KindAuthorization, Message: "Provide a valid auth token."}
	ErrEmptyNames              = &Error{Kind: KindUnprocessable, Message: "Names cannot be empty."}
	ErrEmptyIDData             = &Error{Kind: KindUnprocessable, Message: "ID data cannot be empty."}
	ErrEmailRequired           = &Error{Kind: KindUnprocessable, Message: "Email is required for web signup."}
	ErrPhoneRequired           = &Error{Kind: KindUnprocessable, Message: "Phone number is required for mobile signup."}
	ErrPasswordTooShort        = &Error{Kind: KindUnprocessable, Message: "Password must be at least 8 characters long."}
	ErrUnknownOrganization     = &Error{Kind: KindNotFound, Message: "Organization not found."}
	ErrUnsupportedSignupMethod = &Error{Kind: KindValidation, Message: "Signup method must be WEB or MOBILE."}
	ErrPaymentRejected         = &Error{Kind: KindValidation, Message: "Payment was rejected by the provider."}
	ErrProviderUnavailable     = &Error{Kind: KindExternalService, Message: "Payment provider is unavailable. Please try again later."}
)

// KindOf classifies err, including sentinels from the packages the services compose
func KindOf(err error) Kind {
	var svcErr *Error
	switch {
	case err == nil:
		return KindInternal
	case errors.As(err, &svcErr):
		return svcErr.Kind
	case errors.Is(err, security.ErrInvalidToken),
		errors.Is(err, security.ErrExpiredToken),
		errors.Is(err, security.ErrTokenRevoked),
		errors.Is(err, security.ErrWrongTokenType),
		errors.Is(err, security.ErrWrongPurpose),
		errors.Is(err, security.ErrMissingUserID),
		errors.Is(err, security.ErrUserNotFound):
		return KindAuthentication
	case errors.Is(err, accesscontrol.ErrRoleNotFound), errors.Is(err, accesscontrol.ErrTierNotFound):
		return KindAuthorization
	case errors.Is(err, security.ErrPasswordTooShort),
		errors.Is(err, domain.ErrUnknownIdentificationType),
		errors.Is(err, domain.ErrEmptyIdentificationValue),
		payments.IsValidationError(err):
		return KindUnprocessable
	case errors.Is(err, phone.ErrInvalidNumber), errors.Is(err, payments.ErrMalformedCallback):
		return KindValidation
	case errors.Is(err, repository.ErrNotFound):
		return KindNotFound
	case errors.Is(err, repository.ErrAlreadyExists), errors.Is(err, domain.ErrTransactionFinalized):
		return KindConflict
	case errors.Is(err, payments.ErrProviderUnavailable), errors.Is(err, tasks.ErrQueueFull):
		return KindExternalService
	default:
		return KindInternal
	}
}

// PublicMessage is the text safe to return to an API client for err
func PublicMessage(err error) string {
	var svcErr *Error
	switch {
	case errors.As(err, &svcErr):
		return svcErr.Message
	case errors.Is(err, security.ErrExpiredToken):
		return "Signature expired. Please log in again."
	case errors.Is(err, security.ErrTokenRevoked):
		return "Token blacklisted. Please log in again."
	case errors.Is(err, security.ErrUserNotFound):
		return "User not found."
	case errors.Is(err, security.ErrWrongPurpose):
		return "Invalid token purpose. Please request a new token."
	case KindOf(err) == KindAuthentication:
		return "Invalid token. Please log in again."
	case KindOf(err) == KindAuthorization:
		return "You are not authorized to access this resource."
	case errors.Is(err, security.ErrPasswordTooShort):
		return ErrPasswordTooShort.Message
	case KindOf(err) == KindUnprocessable, KindOf(err) == KindValidation:
		return err.Error()
	case KindOf(err) == KindNotFound:
		return "Resource not found."
	case KindOf(err) == KindConflict:
		return "Resource already exists."
	case KindOf(err) == KindExternalService:
		return ErrProviderUnavailable.Message
	default:
		return "An internal server error occurred."
	}
}
