package http

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/netip"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/oklog/ulid/v2"
	"golang.org/x/time/rate"

	"tenantauth-backend/internal/accesscontrol"
	"tenantauth-backend/internal/config"
	"tenantauth-backend/internal/domain"
	"tenantauth-backend/internal/logger"
	"tenantauth-backend/internal/security"
	"tenantauth-backend/internal/service"
)

const requestIDHeader = "X-Request-ID"

type ctxKey int

const (
	claimsKey ctxKey = iota
	userKey
)

// ClaimsFromContext returns the decoded session of a guarded request
func ClaimsFromContext(ctx context.Context) (*security.SessionClaims, bool) {
	c, ok := ctx.Value(claimsKey).(*security.SessionClaims)
	return c, ok
}

// UserFromContext returns the authenticated user of a guarded request
func UserFromContext(ctx context.Context) (*domain.User, bool) {
	u, ok := ctx.Value(userKey).(*domain.User)
	return u, ok
}

// stripTrailingSlash lets every route be reached with or without a trailing slash
func stripTrailingSlash(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if len(r.URL.Path) > 1 && strings.HasSuffix(r.URL.Path, "/") {
			r.URL.Path = strings.TrimRight(r.URL.Path, "/")
			if r.URL.Path == "" {
				r.URL.Path = "/"
			}
		}
		next.ServeHTTP(w, r)
	})
}

// requestID reuses the caller's X-Request-ID or mints a ULID
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = ulid.Make().String()
		}
		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(logger.WithRequestID(r.Context(), id)))
	})
}

func recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				logger.FromContext(r.Context()).Error("Panic while serving request", "path", r.URL.Path, "panic", rec)
				writeFail(w, http.StatusInternalServerError, "An internal server error occurred.")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

type loggingWriter struct {
	http.ResponseWriter
	code int
}

func (w *loggingWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}

func logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lw := &loggingWriter{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(lw, r)
		logger.FromContext(r.Context()).Info("Request served",
			"method", r.Method,
			"path", r.URL.Path,
			"status", lw.code,
			"duration_ms", time.Since(start).Milliseconds())
	})
}

// ipRateLimiter keeps one token bucket per client address
type ipRateLimiter struct {
	mu       sync.Mutex
	limit    rate.Limit
	burst    int
	idle     time.Duration
	visitors map[string]*visitor
	lastGC   time.Time
	trusted  []netip.Prefix
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func newIPRateLimiter(perSecond, burst int, trusted []netip.Prefix) *ipRateLimiter {
	return &ipRateLimiter{
		limit:    rate.Limit(perSecond),
		burst:    burst,
		idle:     10 * time.Minute,
		visitors: make(map[string]*visitor),
		lastGC:   time.Now(),
		trusted:  trusted,
	}
}

func (l *ipRateLimiter) allow(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	if now.Sub(l.lastGC) > l.idle {
		for k, v := range l.visitors {
			if now.Sub(v.lastSeen) > l.idle {
				delete(l.visitors, k)
			}
		}
		l.lastGC = now
	}

	v, ok := l.visitors[ip]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.visitors[ip] = v
	}
	v.lastSeen = now
	return v.limiter.Allow()
}

func (l *ipRateLimiter) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !l.allow(clientIP(r, l.trusted)) {
			writeFail(w, http.StatusTooManyRequests, "Too many requests. Please try again later.")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// clientIP is the connecting peer, unless that peer is a trusted proxy. Then X-Forwarded-For
// is walked right to left and the first hop outside the trusted set wins; entries left of it
// are client-controlled and ignored.
func clientIP(r *http.Request, trusted []netip.Prefix) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	if len(trusted) == 0 || !isTrusted(host, trusted) {
		return host
	}

	hops := strings.Split(strings.Join(r.Header.Values("X-Forwarded-For"), ","), ",")
	for i := len(hops) - 1; i >= 0; i-- {
		hop := strings.TrimSpace(hops[i])
		if hop == "" {
			continue
		}
		if _, err := netip.ParseAddr(hop); err != nil {
			return host
		}
		if !isTrusted(hop, trusted) {
			return hop
		}
		host = hop
	}
	return host
}

func isTrusted(ip string, trusted []netip.Prefix) bool {
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	for _, p := range trusted {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if len(header) > 7 && strings.EqualFold(header[:7], "Bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return ""
}

// guard enforces the security table entry of the matched route: a valid session of an
// activated user, then the route's role requirements against the user's organization
type guard struct {
	auth service.AuthService
	orgs service.OrganizationService
}

func (g *guard) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name := ""
		if route := mux.CurrentRoute(r); route != nil {
			name = route.GetName()
		}
		sec := config.GetRouteSecurity(name)
		if sec.Level == config.SecurityPublic {
			next.ServeHTTP(w, r)
			return
		}

		token := bearerToken(r)
		if token == "" {
			writeFail(w, http.StatusUnauthorized, service.ErrAuthTokenRequired.Message)
			return
		}
		claims, user, err := g.auth.Authenticate(r.Context(), token)
		if errors.Is(err, service.ErrNotActivated) {
			writeFail(w, http.StatusUnauthorized, service.ErrNotActivated.Message)
			return
		}
		if err != nil {
			writeError(w, r, err)
			return
		}

		if len(sec.Roles) > 0 {
			org, err := g.orgs.GetByID(r.Context(), user.OrganizationID)
			if err != nil {
				writeError(w, r, err)
				return
			}
			ok, err := accesscontrol.Authorize(org.Configuration, claims.Roles, accesscontrol.ParseRequirements(sec.Roles))
			if err != nil {
				writeError(w, r, err)
				return
			}
			if !ok {
				logger.FromContext(r.Context()).Warn("Access denied", "route", name, "user_id", user.ID)
				writeFail(w, http.StatusForbidden, "You are not authorized to access this resource.")
				return
			}
		}

		ctx := context.WithValue(r.Context(), claimsKey, claims)
		ctx = context.WithValue(ctx, userKey, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
