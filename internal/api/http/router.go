// Package http exposes the auth and payment services as a JSON API.
package http

import (
	"net/http"

	"github.com/gorilla/mux"

	"tenantauth-backend/internal/config"
	"tenantauth-backend/internal/logger"
	"tenantauth-backend/internal/metrics"
	"tenantauth-backend/internal/service"
)

// RouterDeps are the services behind the API
type RouterDeps struct {
	Auth     service.AuthService
	Orgs     service.OrganizationService
	Payments service.PaymentService
	Metrics  *metrics.Metrics
	// OTPWindowSeconds is used when a verify_otp request does not name its window
	OTPWindowSeconds uint
	RateLimit        config.RateLimitConfig
	// Ready reports whether dependencies such as the database are reachable
	Ready func() error
}

// NewRouter wires every route, its name in the security table and the middleware chain.
// The returned handler accepts paths with or without a trailing slash.
func NewRouter(deps RouterDeps) http.Handler {
	if deps.OTPWindowSeconds == 0 {
		deps.OTPWindowSeconds = 3600
	}
	if deps.RateLimit.PerSecond == 0 {
		deps.RateLimit.PerSecond = 5
	}
	if deps.RateLimit.Burst == 0 {
		deps.RateLimit.Burst = 20
	}
	trusted, err := deps.RateLimit.TrustedProxyPrefixes()
	if err != nil {
		logger.Warn("Ignoring trusted proxies, X-Forwarded-For will not be honoured", "error", err)
		trusted = nil
	}

	auth := &AuthHandler{auth: deps.Auth, otpWindow: deps.OTPWindowSeconds}
	pay := &PaymentHandler{payments: deps.Payments}
	g := &guard{auth: deps.Auth, orgs: deps.Orgs}

	r := mux.NewRouter()
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeFail(w, http.StatusNotFound, "Resource not found.")
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeFail(w, http.StatusMethodNotAllowed, "Method not allowed.")
	})
	r.Use(requestID, recovery, logging, deps.Metrics.Instrument, g.middleware)

	a := r.PathPrefix("/auth").Subrouter()
	a.Use(newIPRateLimiter(deps.RateLimit.PerSecond, deps.RateLimit.Burst, trusted).middleware)
	a.HandleFunc("/register", auth.Register).Methods(http.MethodPost).Name("auth.register")
	a.HandleFunc("/activate_user", auth.ActivateUser).Methods(http.MethodPost).Name("auth.activate_user")
	a.HandleFunc("/verify_otp", auth.VerifyOTP).Methods(http.MethodPost).Name("auth.verify_otp")
	a.HandleFunc("/resend_otp", auth.ResendOTP).Methods(http.MethodPost).Name("auth.resend_otp")
	a.HandleFunc("/login", auth.Login).Methods(http.MethodPost).Name("auth.login")
	a.HandleFunc("/logout", auth.Logout).Methods(http.MethodPost).Name("auth.logout")
	a.HandleFunc("/request_password_reset_email", auth.RequestPasswordReset).Methods(http.MethodPost).Name("auth.request_password_reset")
	a.HandleFunc("/reset_password", auth.ResetPassword).Methods(http.MethodPost).Name("auth.reset_password")

	r.HandleFunc("/payments", pay.Create).Methods(http.MethodPost).Name("payments.create")
	r.HandleFunc("/wallet_balance", pay.WalletBalance).Methods(http.MethodGet).Name("payments.balance")
	r.HandleFunc("/mpesa_transactions", pay.ListTransactions).Methods(http.MethodGet).Name("payments.transactions")
	r.HandleFunc("/{provider}/validate_payment", pay.Validate).Methods(http.MethodPost).Name("payments.validate")
	r.HandleFunc("/{provider}/confirm_payment", pay.Confirm).Methods(http.MethodPost).Name("payments.confirm")

	r.HandleFunc("/healthz", health(deps.Ready)).Methods(http.MethodGet).Name("health")
	if deps.Metrics != nil {
		r.Handle("/metrics", deps.Metrics.Handler()).Methods(http.MethodGet).Name("metrics")
	}

	return stripTrailingSlash(r)
}

func health(ready func() error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if ready != nil {
			if err := ready(); err != nil {
				logger.FromContext(r.Context()).Error("Health check failed", "error", err)
				writeFail(w, http.StatusServiceUnavailable, "Service unavailable.")
				return
			}
		}
		writeSuccess(w, http.StatusOK, Envelope{Message: "OK"})
	}
}
