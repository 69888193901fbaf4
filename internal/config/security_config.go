// config/security_config.go
package config

type SecurityLevel int

const (
	SecurityPublic  SecurityLevel = iota // No authentication
	SecuritySession                      // Valid, non-revoked session token of an activated user
)

// RouteSecurity describes how a named route is guarded.
// Roles entries are "ROLE" or "ROLE:TIER"; an empty list means any authenticated user.
type RouteSecurity struct {
	Level SecurityLevel
	Roles []string
}

// EndpointSecurityConfig maps route names to their guard
var EndpointSecurityConfig = map[string]RouteSecurity{
	// Auth - Public
	"auth.register":               {Level: SecurityPublic},
	"auth.activate_user":          {Level: SecurityPublic},
	"auth.verify_otp":             {Level: SecurityPublic},
	"auth.resend_otp":             {Level: SecurityPublic},
	"auth.login":                  {Level: SecurityPublic},
	"auth.logout":                 {Level: SecurityPublic}, // reads and revokes the bearer token itself
	"auth.request_password_reset": {Level: SecurityPublic},
	"auth.reset_password":         {Level: SecurityPublic},

	// Provider webhooks - Public, authenticated by transaction lookup
	"payments.validate": {Level: SecurityPublic},
	"payments.confirm":  {Level: SecurityPublic},

	// Payments - Admin only
	"payments.create":       {Level: SecuritySession, Roles: []string{"ADMIN:any"}},
	"payments.balance":      {Level: SecuritySession, Roles: []string{"ADMIN:any"}},
	"payments.transactions": {Level: SecuritySession, Roles: []string{"ADMIN:any"}},

	// Ops
	"health":  {Level: SecurityPublic},
	"metrics": {Level: SecurityPublic},
}

// GetRouteSecurity returns the guard for a route; unknown routes require a session
func GetRouteSecurity(route string) RouteSecurity {
	if sec, ok := EndpointSecurityConfig[route]; ok {
		return sec
	}
	return RouteSecurity{Level: SecuritySession}
}
