package http

import (
	"net/http"

	"tenantauth-backend/internal/domain"
	"tenantauth-backend/internal/service"
)

// AuthHandler serves the /auth endpoints
type AuthHandler struct {
	auth      service.AuthService
	otpWindow uint
}

type registerRequest struct {
	GivenNames       string `json:"given_names"`
	Surname          string `json:"surname"`
	Email            string `json:"email"`
	Phone            string `json:"phone"`
	IDType           string `json:"id_type"`
	IDValue          string `json:"id_value"`
	Password         string `json:"password"`
	SignupMethod     string `json:"signup_method"`
	PublicIdentifier string `json:"public_identifier"`
}

type activateRequest struct {
	ActivationToken string `json:"activation_token"`
}

type verifyOTPRequest struct {
	MSISDN            string `json:"msisdn"`
	OTP               string `json:"otp"`
	OTPExpiryInterval uint   `json:"otp_expiry_interval"`
}

type resendOTPRequest struct {
	MSISDN string `json:"msisdn"`
}

type loginRequest struct {
	Email    string `json:"email"`
	MSISDN   string `json:"msisdn"`
	Password string `json:"password"`
}

type passwordResetEmailRequest struct {
	Email string `json:"email"`
}

type resetPasswordRequest struct {
	NewPassword        string `json:"new_password"`
	PasswordResetToken string `json:"password_reset_token"`
}

type userData struct {
	User *domain.User `json:"user"`
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !decode(w, r, &req) {
		return
	}

	res, err := h.auth.Register(r.Context(), &service.RegisterRequest{
		GivenNames:          req.GivenNames,
		Surname:             req.Surname,
		Email:               req.Email,
		Phone:               req.Phone,
		Password:            req.Password,
		IdentificationType:  domain.IdentificationType(req.IDType),
		IdentificationValue: req.IDValue,
		SignupMethod:        domain.SignupMethod(req.SignupMethod),
		OrganizationID:      req.PublicIdentifier,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	code := http.StatusCreated
	if res.User.SignupMethod == domain.SignupMethodMobile {
		code = http.StatusOK
	}
	writeSuccess(w, code, Envelope{Data: userData{User: res.User}, Message: res.Message})
}

func (h *AuthHandler) ActivateUser(w http.ResponseWriter, r *http.Request) {
	var req activateRequest
	if !decode(w, r, &req) {
		return
	}
	sess, err := h.auth.Activate(r.Context(), req.ActivationToken)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeSession(w, sess, "User successfully activated.")
}

func (h *AuthHandler) VerifyOTP(w http.ResponseWriter, r *http.Request) {
	var req verifyOTPRequest
	if !decode(w, r, &req) {
		return
	}
	window := req.OTPExpiryInterval
	if window == 0 {
		window = h.otpWindow
	}
	sess, err := h.auth.VerifyOTP(r.Context(), req.MSISDN, req.OTP, window)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeSession(w, sess, "User successfully activated.")
}

func (h *AuthHandler) ResendOTP(w http.ResponseWriter, r *http.Request) {
	var req resendOTPRequest
	if !decode(w, r, &req) {
		return
	}
	if err := h.auth.ResendOTP(r.Context(), req.MSISDN); err != nil {
		writeError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, Envelope{Message: "Pin resent successfully."})
}

// Login accepts either an email or a phone number as the identifier
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decode(w, r, &req) {
		return
	}
	identifier := req.Email
	if identifier == "" {
		identifier = req.MSISDN
	}
	if identifier == "" || req.Password == "" {
		writeError(w, r, service.ErrInvalidCredentials)
		return
	}
	sess, err := h.auth.Login(r.Context(), identifier, req.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeSession(w, sess, "Successfully logged in.")
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.auth.Logout(r.Context(), bearerToken(r)); err != nil {
		writeError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, Envelope{Message: "Successfully logged out."})
}

func (h *AuthHandler) RequestPasswordReset(w http.ResponseWriter, r *http.Request) {
	var req passwordResetEmailRequest
	if !decode(w, r, &req) {
		return
	}
	if err := h.auth.RequestPasswordReset(r.Context(), req.Email); err != nil {
		writeError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, Envelope{
		Message: "A password reset email has been sent, please check your email for instructions.",
	})
}

func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordRequest
	if !decode(w, r, &req) {
		return
	}
	if err := h.auth.ResetPassword(r.Context(), req.PasswordResetToken, req.NewPassword); err != nil {
		writeError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, Envelope{Message: "Password successfully reset."})
}

func writeSession(w http.ResponseWriter, sess *service.Session, message string) {
	writeSuccess(w, http.StatusOK, Envelope{
		Data:                userData{User: sess.User},
		Message:             message,
		AuthenticationToken: sess.Token,
	})
}
