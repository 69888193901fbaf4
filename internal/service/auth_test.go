package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"tenantauth-backend/internal/config"
	"tenantauth-backend/internal/domain"
	"tenantauth-backend/internal/otp"
	"tenantauth-backend/internal/repository"
	"tenantauth-backend/internal/security"
)

const testPhone = "+254712345678"

type authFixture struct {
	users     *MockUserRepo
	orgRepo   *MockOrganizationRepo
	blacklist *MockBlacklistRepo
	mailer    *MockMailer
	sms       *MockSMSSender
	tasks     *inlineDispatcher
	tokens    *security.TokenService
	otp       *otp.Service
	hasher    *security.PasswordHasher
	svc       AuthService
}

func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()
	f := &authFixture{
		users:     new(MockUserRepo),
		orgRepo:   new(MockOrganizationRepo),
		blacklist: new(MockBlacklistRepo),
		mailer:    new(MockMailer),
		sms:       new(MockSMSSender),
		tasks:     &inlineDispatcher{},
	}

	cipher, err := security.NewCipher("otp-secret-key-for-tests", "otp")
	require.NoError(t, err)
	f.hasher, err = security.NewPasswordHasher("pepper-for-tests", 4)
	require.NoError(t, err)

	now := time.Date(2025, 3, 1, 10, 15, 0, 0, time.UTC)
	f.otp = otp.NewService(cipher, "tenantauth", otp.DefaultPeriodSeconds, otp.WithClock(func() time.Time { return now }))
	f.tokens = security.NewTokenService("a-test-secret-that-is-long-enough!!", f.blacklist, f.users)

	f.svc = NewAuthService(AuthServiceDeps{
		Users:     f.users,
		Orgs:      NewOrganizationService(f.orgRepo),
		Tokens:    f.tokens,
		OTP:       f.otp,
		Passwords: f.hasher,
		Composer:  NewMailComposer(config.MailConfig{AppDomain: "https://app.acme.io/"}),
		Mailer:    f.mailer,
		SMS:       f.sms,
		Tasks:     f.tasks,
	})
	return f
}

func standardOrg() *domain.Organization {
	return &domain.Organization{
		ID:               1,
		Name:             "Acme",
		PublicIdentifier: "ABCD1234",
		IsMaster:         true,
		Address:          "Nairobi",
		Configuration: &domain.Configuration{
			AccessControlType: domain.AccessControlStandard,
			AccessRoles:       []string{domain.RoleAdmin, domain.RoleClient},
			Domain:            "acme.io",
			MailerSettings: map[string]string{
				domain.MailerSettingDefaultSender: "noreply@acme.io",
				domain.MailerSettingAPIKey:        "SG.key",
			},
		},
	}
}

func tieredOrg() *domain.Organization {
	org := standardOrg()
	org.IsMaster = false
	org.Configuration.AccessControlType = domain.AccessControlTiered
	org.Configuration.AccessTiers = []string{"BRONZE", "SILVER", "GOLD"}
	return org
}

func mobileRequest() *RegisterRequest {
	return &RegisterRequest{
		GivenNames:          "Wanjiru",
		Surname:             "Kamau",
		Phone:               "0712345678",
		Password:            "s3cretpass",
		IdentificationType:  domain.IdentificationNationalID,
		IdentificationValue: "12345678",
		SignupMethod:        domain.SignupMethodMobile,
	}
}

func webRequest(email string) *RegisterRequest {
	return &RegisterRequest{
		GivenNames:     "Jane",
		Surname:        "Doe",
		Email:          email,
		Password:       "s3cretpass",
		SignupMethod:   domain.SignupMethodWeb,
		OrganizationID: "ABCD1234",
	}
}

func (f *authFixture) activatedUser(t *testing.T) *domain.User {
	t.Helper()
	hash, err := f.hasher.Hash("s3cretpass")
	require.NoError(t, err)
	return &domain.User{
		ID:             7,
		GivenNames:     "Jane",
		Surname:        "Doe",
		Email:          "jane@acme.io",
		Phone:          testPhone,
		PasswordHash:   hash,
		IsActivated:    true,
		Roles:          domain.RoleAssignment{domain.RoleClient: nil},
		OrganizationID: 1,
		SignupMethod:   domain.SignupMethodWeb,
	}
}

func TestAuthService_RegisterMobileThenVerifyOTP(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	f.users.On("GetByPhone", ctx, testPhone).Return(nil, repository.ErrNotFound).Once()
	f.orgRepo.On("GetMaster", ctx).Return(standardOrg(), nil)
	f.users.On("Create", ctx, mock.AnythingOfType("*domain.User")).Run(func(args mock.Arguments) {
		args.Get(1).(*domain.User).ID = 7
	}).Return(nil)

	var sent string
	f.sms.On("Send", mock.Anything, testPhone, mock.Anything).Run(func(args mock.Arguments) {
		sent = args.String(2)
	}).Return(nil)

	res, err := f.svc.Register(ctx, mobileRequest())
	require.NoError(t, err)
	u := res.User
	assert.Equal(t, testPhone, u.Phone)
	assert.False(t, u.IsActivated)
	assert.NotEmpty(t, u.OTPSecret)
	assert.Equal(t, int32(1), u.OrganizationID)
	assert.Contains(t, u.Roles, domain.RoleClient)
	assert.NotContains(t, u.Roles, domain.RoleAdmin)
	assert.Equal(t, "12345678", u.Identification[domain.IdentificationNationalID])
	assert.Equal(t, []string{"send_otp_sms"}, f.tasks.names)

	require.True(t, strings.HasPrefix(sent, "Your verification code is "))
	code := sent[len(sent)-6:]

	f.users.On("GetByPhone", ctx, testPhone).Return(u, nil)
	f.users.On("Update", ctx, u).Return(nil)
	f.blacklist.On("Exists", ctx, mock.Anything).Return(false, nil)

	sess, err := f.svc.VerifyOTP(ctx, testPhone, code, 0)
	require.NoError(t, err)
	assert.True(t, sess.User.IsActivated)

	claims, err := f.tokens.DecodeSessionToken(ctx, sess.Token)
	require.NoError(t, err)
	assert.Equal(t, int32(7), claims.UserID)
	assert.Contains(t, claims.Roles, domain.RoleClient)
}

func TestAuthService_RegisterWeb(t *testing.T) {
	ctx := context.Background()

	t.Run("DomainMatchGrantsAdmin", func(t *testing.T) {
		f := newAuthFixture(t)
		f.users.On("GetByEmail", ctx, "jane@acme.io").Return(nil, repository.ErrNotFound)
		f.orgRepo.On("GetByPublicID", ctx, "ABCD1234").Return(standardOrg(), nil)
		f.users.On("Create", ctx, mock.AnythingOfType("*domain.User")).Run(func(args mock.Arguments) {
			args.Get(1).(*domain.User).ID = 9
		}).Return(nil)

		var msg *Message
		f.mailer.On("Send", mock.Anything, mock.AnythingOfType("*service.Message")).Run(func(args mock.Arguments) {
			msg = args.Get(1).(*Message)
		}).Return(nil)

		res, err := f.svc.Register(ctx, webRequest("Jane@Acme.io"))
		require.NoError(t, err)
		assert.Contains(t, res.User.Roles, domain.RoleAdmin)
		assert.Contains(t, res.User.Roles, domain.RoleClient)
		assert.Nil(t, res.User.Roles[domain.RoleAdmin])

		require.NotNil(t, msg)
		assert.Equal(t, []string{"jane@acme.io"}, msg.Recipients)
		assert.Equal(t, "Acme: Activate my account.", msg.Subject)
		assert.Equal(t, "noreply@acme.io", msg.Sender)
		assert.Equal(t, "SG.key", msg.APIKey)
		assert.Contains(t, msg.TextBody, "https://app.acme.io/login?activation_token=")
	})

	t.Run("OtherDomainIsClientOnly", func(t *testing.T) {
		f := newAuthFixture(t)
		f.users.On("GetByEmail", ctx, "jane@gmail.com").Return(nil, repository.ErrNotFound)
		f.orgRepo.On("GetByPublicID", ctx, "ABCD1234").Return(standardOrg(), nil)
		f.users.On("Create", ctx, mock.AnythingOfType("*domain.User")).Return(nil)
		f.mailer.On("Send", mock.Anything, mock.Anything).Return(nil)

		res, err := f.svc.Register(ctx, webRequest("jane@gmail.com"))
		require.NoError(t, err)
		assert.NotContains(t, res.User.Roles, domain.RoleAdmin)
	})

	t.Run("TieredDefaults", func(t *testing.T) {
		f := newAuthFixture(t)
		f.users.On("GetByEmail", ctx, "jane@acme.io").Return(nil, repository.ErrNotFound)
		f.orgRepo.On("GetByPublicID", ctx, "ABCD1234").Return(tieredOrg(), nil)
		f.users.On("Create", ctx, mock.AnythingOfType("*domain.User")).Return(nil)
		f.mailer.On("Send", mock.Anything, mock.Anything).Return(nil)

		res, err := f.svc.Register(ctx, webRequest("jane@acme.io"))
		require.NoError(t, err)
		require.NotNil(t, res.User.Roles[domain.RoleAdmin])
		assert.Equal(t, "GOLD", *res.User.Roles[domain.RoleAdmin])
		assert.Equal(t, "BRONZE", *res.User.Roles[domain.RoleClient])
	})

	t.Run("MailerNotConfigured", func(t *testing.T) {
		f := newAuthFixture(t)
		org := standardOrg()
		org.Configuration.MailerSettings = nil
		f.users.On("GetByEmail", ctx, "jane@acme.io").Return(nil, repository.ErrNotFound)
		f.orgRepo.On("GetByPublicID", ctx, "ABCD1234").Return(org, nil)

		_, err := f.svc.Register(ctx, webRequest("jane@acme.io"))
		assert.ErrorIs(t, err, ErrMailerNotConfigured)
		assert.Equal(t, KindConfiguration, KindOf(err))
		f.users.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	t.Run("UnknownOrganization", func(t *testing.T) {
		f := newAuthFixture(t)
		f.users.On("GetByEmail", ctx, "jane@acme.io").Return(nil, repository.ErrNotFound)
		f.orgRepo.On("GetByPublicID", ctx, "ABCD1234").Return(nil, repository.ErrNotFound)

		_, err := f.svc.Register(ctx, webRequest("jane@acme.io"))
		assert.ErrorIs(t, err, ErrUnknownOrganization)
	})
}

func TestAuthService_RegisterValidation(t *testing.T) {
	ctx := context.Background()

	cases := []struct {
		name    string
		mutate  func(r *RegisterRequest)
		wantErr error
	}{
		{"ShortPassword", func(r *RegisterRequest) { r.Password = "short" }, ErrPasswordTooShort},
		{"EmptyNames", func(r *RegisterRequest) { r.Surname = " " }, ErrEmptyNames},
		{"MobileWithoutPhone", func(r *RegisterRequest) { r.Phone = "" }, ErrPhoneRequired},
		{"MobileWithoutID", func(r *RegisterRequest) { r.IdentificationValue = "" }, ErrEmptyIDData},
		{"UnknownMethod", func(r *RegisterRequest) { r.SignupMethod = "FAX" }, ErrUnsupportedSignupMethod},
		{"UnknownIDType", func(r *RegisterRequest) { r.IdentificationType = "DRIVING_LICENSE" }, domain.ErrUnknownIdentificationType},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newAuthFixture(t)
			req := mobileRequest()
			tc.mutate(req)

			_, err := f.svc.Register(ctx, req)
			assert.ErrorIs(t, err, tc.wantErr)
			f.users.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
		})
	}

	t.Run("InvalidPhone", func(t *testing.T) {
		f := newAuthFixture(t)
		req := mobileRequest()
		req.Phone = "12"

		_, err := f.svc.Register(ctx, req)
		assert.Equal(t, KindValidation, KindOf(err))
		assert.Equal(t, "Invalid phone number.", PublicMessage(err))
	})

	t.Run("PasswordLongerThan72Bytes", func(t *testing.T) {
		f := newAuthFixture(t)
		f.users.On("GetByPhone", ctx, testPhone).Return(nil, repository.ErrNotFound)
		f.orgRepo.On("GetMaster", ctx).Return(standardOrg(), nil)
		f.users.On("Create", ctx, mock.AnythingOfType("*domain.User")).Return(nil)
		f.sms.On("Send", mock.Anything, testPhone, mock.Anything).Return(nil)
		req := mobileRequest()
		req.Password = strings.Repeat("p", 73)

		res, err := f.svc.Register(ctx, req)
		require.NoError(t, err)
		assert.True(t, f.hasher.Verify(res.User.PasswordHash, req.Password))
	})

	t.Run("WebWithoutEmail", func(t *testing.T) {
		f := newAuthFixture(t)
		_, err := f.svc.Register(ctx, webRequest(""))
		assert.ErrorIs(t, err, ErrEmailRequired)
	})

	t.Run("PhoneAlreadyBound", func(t *testing.T) {
		f := newAuthFixture(t)
		f.users.On("GetByPhone", ctx, testPhone).Return(&domain.User{ID: 3}, nil)

		_, err := f.svc.Register(ctx, mobileRequest())
		assert.ErrorIs(t, err, ErrUserExists)
		assert.Equal(t, "User already exists. Please Log in.", PublicMessage(err))
	})

	t.Run("UniqueViolationOnCreate", func(t *testing.T) {
		f := newAuthFixture(t)
		f.users.On("GetByPhone", ctx, testPhone).Return(nil, repository.ErrNotFound)
		f.orgRepo.On("GetMaster", ctx).Return(standardOrg(), nil)
		f.users.On("Create", ctx, mock.Anything).Return(repository.ErrAlreadyExists)

		_, err := f.svc.Register(ctx, mobileRequest())
		assert.ErrorIs(t, err, ErrUserExists)
		f.sms.AssertNotCalled(t, "Send", mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestAuthService_Activate(t *testing.T) {
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		f := newAuthFixture(t)
		u := &domain.User{ID: 7, Roles: domain.RoleAssignment{domain.RoleClient: nil}}
		token, err := f.tokens.IssueSingleUseToken(7, security.PurposeUserActivation)
		require.NoError(t, err)

		f.users.On("GetByID", ctx, int32(7)).Return(u, nil)
		f.users.On("Update", ctx, u).Return(nil)

		sess, err := f.svc.Activate(ctx, token)
		require.NoError(t, err)
		assert.True(t, u.IsActivated)
		assert.NotEmpty(t, sess.Token)
	})

	t.Run("AlreadyActivated", func(t *testing.T) {
		f := newAuthFixture(t)
		token, err := f.tokens.IssueSingleUseToken(7, security.PurposeUserActivation)
		require.NoError(t, err)
		f.users.On("GetByID", ctx, int32(7)).Return(&domain.User{ID: 7, IsActivated: true}, nil)

		_, err = f.svc.Activate(ctx, token)
		assert.ErrorIs(t, err, ErrAlreadyActivated)
		assert.Equal(t, "User is already activated. Please login.", PublicMessage(err))
	})

	t.Run("WrongPurpose", func(t *testing.T) {
		f := newAuthFixture(t)
		token, err := f.tokens.IssueSingleUseToken(7, security.PurposeResetPassword)
		require.NoError(t, err)

		_, err = f.svc.Activate(ctx, token)
		assert.ErrorIs(t, err, security.ErrWrongPurpose)
		assert.Equal(t, KindAuthentication, KindOf(err))
	})

	t.Run("MissingToken", func(t *testing.T) {
		f := newAuthFixture(t)
		_, err := f.svc.Activate(ctx, "")
		assert.ErrorIs(t, err, ErrActivationTokenRequired)
	})
}

func TestAuthService_VerifyOTP(t *testing.T) {
	ctx := context.Background()

	t.Run("MalformedCode", func(t *testing.T) {
		f := newAuthFixture(t)
		_, err := f.svc.VerifyOTP(ctx, testPhone, "12ab56", 0)
		assert.ErrorIs(t, err, ErrMalformedOTP)
	})

	t.Run("WrongCode", func(t *testing.T) {
		f := newAuthFixture(t)
		u := &domain.User{ID: 7, Phone: testPhone}
		code, err := f.otp.GenerateSecretAndCode(u)
		require.NoError(t, err)
		wrong := "000000"
		if code == wrong {
			wrong = "111111"
		}
		f.users.On("GetByPhone", ctx, testPhone).Return(u, nil)

		_, err = f.svc.VerifyOTP(ctx, testPhone, wrong, 0)
		assert.ErrorIs(t, err, ErrInvalidOTP)
		assert.False(t, u.IsActivated)
		f.users.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
	})

	t.Run("NoSecretFailsClosed", func(t *testing.T) {
		f := newAuthFixture(t)
		f.users.On("GetByPhone", ctx, testPhone).Return(&domain.User{ID: 7, Phone: testPhone}, nil)

		_, err := f.svc.VerifyOTP(ctx, testPhone, "123456", 0)
		assert.ErrorIs(t, err, ErrInvalidOTP)
	})

	t.Run("UnknownPhone", func(t *testing.T) {
		f := newAuthFixture(t)
		f.users.On("GetByPhone", ctx, testPhone).Return(nil, repository.ErrNotFound)

		_, err := f.svc.VerifyOTP(ctx, "0712345678", "123456", 0)
		assert.Equal(t, KindNotFound, KindOf(err))
		assert.Equal(t, "No user found for phone number +254712345678.", PublicMessage(err))
	})
}

func TestAuthService_ResendOTP(t *testing.T) {
	ctx := context.Background()

	t.Run("ResendsStillValidCode", func(t *testing.T) {
		f := newAuthFixture(t)
		u := &domain.User{ID: 7, Phone: testPhone}
		code, err := f.otp.GenerateSecretAndCode(u)
		require.NoError(t, err)
		secret := u.OTPSecret

		f.users.On("GetByPhone", ctx, testPhone).Return(u, nil)
		f.sms.On("Send", mock.Anything, testPhone, "Your verification code is "+code).Return(nil)

		require.NoError(t, f.svc.ResendOTP(ctx, testPhone))
		assert.Equal(t, secret, u.OTPSecret)
		f.users.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
		f.sms.AssertExpectations(t)
	})

	t.Run("MintsWhenNoSecret", func(t *testing.T) {
		f := newAuthFixture(t)
		u := &domain.User{ID: 7, Phone: testPhone}
		f.users.On("GetByPhone", ctx, testPhone).Return(u, nil)
		f.users.On("Update", ctx, u).Return(nil)
		f.sms.On("Send", mock.Anything, testPhone, mock.Anything).Return(nil)

		require.NoError(t, f.svc.ResendOTP(ctx, testPhone))
		assert.NotEmpty(t, u.OTPSecret)
		f.users.AssertCalled(t, "Update", ctx, u)
	})

	t.Run("MintsWhenSecretUnreadable", func(t *testing.T) {
		f := newAuthFixture(t)
		u := &domain.User{ID: 7, Phone: testPhone, OTPSecret: "not-a-sealed-secret"}
		f.users.On("GetByPhone", ctx, testPhone).Return(u, nil)
		f.users.On("Update", ctx, u).Return(nil)
		var sent string
		f.sms.On("Send", mock.Anything, testPhone, mock.Anything).Run(func(args mock.Arguments) {
			sent = args.String(2)
		}).Return(nil)

		require.NoError(t, f.svc.ResendOTP(ctx, testPhone))
		assert.NotEqual(t, "not-a-sealed-secret", u.OTPSecret)
		assert.True(t, f.otp.Verify(u, sent[len(sent)-6:], 0))
	})

	t.Run("AlreadyActivated", func(t *testing.T) {
		f := newAuthFixture(t)
		f.users.On("GetByPhone", ctx, testPhone).Return(&domain.User{ID: 7, IsActivated: true}, nil)

		assert.ErrorIs(t, f.svc.ResendOTP(ctx, testPhone), ErrAlreadyActivated)
	})
}

func TestAuthService_Login(t *testing.T) {
	ctx := context.Background()

	t.Run("ByEmail", func(t *testing.T) {
		f := newAuthFixture(t)
		u := f.activatedUser(t)
		f.users.On("GetByEmail", ctx, "jane@acme.io").Return(u, nil)

		sess, err := f.svc.Login(ctx, "Jane@Acme.io", "s3cretpass")
		require.NoError(t, err)
		assert.NotEmpty(t, sess.Token)
		assert.Equal(t, u, sess.User)
	})

	t.Run("ByLocalPhone", func(t *testing.T) {
		f := newAuthFixture(t)
		f.users.On("GetByPhone", ctx, testPhone).Return(f.activatedUser(t), nil)

		_, err := f.svc.Login(ctx, "0712345678", "s3cretpass")
		require.NoError(t, err)
	})

	t.Run("WrongPasswordIsGeneric", func(t *testing.T) {
		f := newAuthFixture(t)
		u := f.activatedUser(t)
		hash := u.PasswordHash
		f.users.On("GetByPhone", ctx, testPhone).Return(u, nil)

		_, err := f.svc.Login(ctx, testPhone, "wrong-password")
		assert.ErrorIs(t, err, ErrInvalidCredentials)
		assert.Equal(t, KindAuthentication, KindOf(err))
		assert.Equal(t, hash, u.PasswordHash)
		f.users.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
	})

	t.Run("UnknownUserIsGeneric", func(t *testing.T) {
		f := newAuthFixture(t)
		f.users.On("GetByEmail", ctx, "ghost@acme.io").Return(nil, repository.ErrNotFound)

		_, err := f.svc.Login(ctx, "ghost@acme.io", "s3cretpass")
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})

	t.Run("NotActivated", func(t *testing.T) {
		f := newAuthFixture(t)
		u := f.activatedUser(t)
		u.IsActivated = false
		f.users.On("GetByEmail", ctx, "jane@acme.io").Return(u, nil)

		_, err := f.svc.Login(ctx, "jane@acme.io", "s3cretpass")
		assert.ErrorIs(t, err, ErrNotActivated)
		assert.Equal(t, KindAuthorization, KindOf(err))
	})
}

func TestAuthService_Logout(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture(t)

	token, err := f.tokens.IssueSessionToken(7, domain.RoleAssignment{domain.RoleClient: nil})
	require.NoError(t, err)

	f.blacklist.On("Exists", ctx, token).Return(false, nil).Once()
	f.blacklist.On("Add", ctx, token).Return(nil).Once()
	require.NoError(t, f.svc.Logout(ctx, token))

	f.blacklist.On("Exists", ctx, token).Return(true, nil)
	err = f.svc.Logout(ctx, token)
	assert.ErrorIs(t, err, security.ErrTokenRevoked)
	assert.Equal(t, "Token blacklisted. Please log in again.", PublicMessage(err))

	assert.ErrorIs(t, f.svc.Logout(ctx, ""), ErrAuthTokenRequired)
	assert.ErrorIs(t, f.svc.Logout(ctx, "not-a-jwt"), security.ErrInvalidToken)
}

func TestAuthService_PasswordReset(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture(t)
	u := f.activatedUser(t)

	f.users.On("GetByEmail", ctx, "jane@acme.io").Return(u, nil)
	f.orgRepo.On("GetByID", ctx, int32(1)).Return(standardOrg(), nil)
	f.users.On("Update", ctx, u).Return(nil)
	f.users.On("GetByID", ctx, int32(7)).Return(u, nil)

	var msg *Message
	f.mailer.On("Send", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		msg = args.Get(1).(*Message)
	}).Return(nil)

	require.NoError(t, f.svc.RequestPasswordReset(ctx, "jane@acme.io"))
	require.NoError(t, f.svc.RequestPasswordReset(ctx, "jane@acme.io"))
	require.Len(t, u.PasswordResetTokens, 2)
	first, second := u.PasswordResetTokens[0], u.PasswordResetTokens[1]

	require.NotNil(t, msg)
	assert.Equal(t, "Acme: Reset my password.", msg.Subject)
	assert.Contains(t, msg.TextBody, "https://app.acme.io/reset-password?token=")

	t.Run("TooShort", func(t *testing.T) {
		err := f.svc.ResetPassword(ctx, first, "short")
		assert.ErrorIs(t, err, ErrPasswordTooShort)
		assert.Len(t, u.PasswordResetTokens, 2)
	})

	t.Run("ResetClearsEveryToken", func(t *testing.T) {
		require.NoError(t, f.svc.ResetPassword(ctx, first, "n3wpassword"))
		assert.True(t, f.hasher.Verify(u.PasswordHash, "n3wpassword"))
		assert.Empty(t, u.PasswordResetTokens)
	})

	t.Run("UnusedSiblingIsRejected", func(t *testing.T) {
		err := f.svc.ResetPassword(ctx, second, "an0therpass")
		assert.ErrorIs(t, err, ErrTokenAlreadyUsed)
		assert.Equal(t, "This token has already been used.", PublicMessage(err))
	})

	t.Run("UsedTokenIsRejected", func(t *testing.T) {
		assert.ErrorIs(t, f.svc.ResetPassword(ctx, first, "an0therpass"), ErrTokenAlreadyUsed)
	})

	t.Run("UnknownEmail", func(t *testing.T) {
		f.users.On("GetByEmail", ctx, "ghost@acme.io").Return(nil, repository.ErrNotFound)
		err := f.svc.RequestPasswordReset(ctx, "ghost@acme.io")
		assert.Equal(t, KindNotFound, KindOf(err))
	})
}

func TestAuthService_Authenticate(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture(t)
	token, err := f.tokens.IssueSessionToken(7, nil)
	require.NoError(t, err)
	f.blacklist.On("Exists", ctx, token).Return(false, nil)

	t.Run("ActivatedUser", func(t *testing.T) {
		f.users.ExpectedCalls = nil
		f.users.On("GetByID", ctx, int32(7)).Return(f.activatedUser(t), nil)

		claims, u, err := f.svc.Authenticate(ctx, token)
		require.NoError(t, err)
		assert.Equal(t, int32(7), claims.UserID)
		assert.Equal(t, int32(7), u.ID)
	})

	t.Run("DeletedUser", func(t *testing.T) {
		f.users.ExpectedCalls = nil
		f.users.On("GetByID", ctx, int32(7)).Return(nil, repository.ErrNotFound)

		_, _, err := f.svc.Authenticate(ctx, token)
		assert.ErrorIs(t, err, security.ErrUserNotFound)
		assert.Equal(t, "User not found.", PublicMessage(err))
	})

	t.Run("NotActivated", func(t *testing.T) {
		f.users.ExpectedCalls = nil
		f.users.On("GetByID", ctx, int32(7)).Return(&domain.User{ID: 7}, nil)

		_, _, err := f.svc.Authenticate(ctx, token)
		assert.ErrorIs(t, err, ErrNotActivated)
	})
}
