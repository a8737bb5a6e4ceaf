// Package middleware provides HTTP middleware for the ledger service.
package middleware

import (
	"context"
	"crypto/rsa"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/R3E-Network/token_ledger/internal/errors"
	"github.com/R3E-Network/token_ledger/pkg/logger"
	"github.com/golang-jwt/jwt/v5"
)

const (
	// ServiceTokenHeader carries an RS256 service JWT.
	ServiceTokenHeader = "X-Service-Token"

	// CallerHeader names the caller directly. Honoured only in development mode.
	CallerHeader = "X-Caller"

	// DefaultServiceTokenExpiry is the default expiration time for service tokens.
	DefaultServiceTokenExpiry = 1 * time.Hour
)

type contextKey string

const callerKey contextKey = "caller"

// ServiceClaims represents JWT claims for service-to-service authentication.
// ServiceID becomes the ledger caller identity.
type ServiceClaims struct {
	ServiceID string `json:"service_id"`
	jwt.RegisteredClaims
}

// CallerAuthConfig configures CallerAuthMiddleware.
type CallerAuthConfig struct {
	PublicKey       *rsa.PublicKey
	Logger          *logger.Logger
	AllowedServices []string
	// DevMode accepts the X-Caller header without a token.
	DevMode   bool
	SkipPaths []string
}

// CallerAuthMiddleware resolves the caller identity of each request. Requests
// without credentials continue anonymously; handlers that mutate state reject
// an empty caller.
type CallerAuthMiddleware struct {
	publicKey       *rsa.PublicKey
	log             *logger.Logger
	allowedServices map[string]bool
	devMode         bool
	skipPaths       map[string]bool

	mu              sync.RWMutex
	validatedTokens map[string]*cachedToken
}

type cachedToken struct {
	claims    *ServiceClaims
	expiresAt time.Time
}

// NewCallerAuthMiddleware creates the caller authentication middleware.
func NewCallerAuthMiddleware(cfg CallerAuthConfig) *CallerAuthMiddleware {
	allowed := make(map[string]bool)
	for _, svc := range cfg.AllowedServices {
		if svc = strings.TrimSpace(svc); svc != "" {
			allowed[svc] = true
		}
	}
	skip := make(map[string]bool)
	for _, path := range cfg.SkipPaths {
		skip[path] = true
	}
	log := cfg.Logger
	if log == nil {
		log = logger.NewDefault("caller-auth")
	}
	return &CallerAuthMiddleware{
		publicKey:       cfg.PublicKey,
		log:             log,
		allowedServices: allowed,
		devMode:         cfg.DevMode,
		skipPaths:       skip,
		validatedTokens: make(map[string]*cachedToken),
	}
}

// Handler returns the middleware handler function.
func (m *CallerAuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.skipPaths[r.URL.Path] {
			next.ServeHTTP(w, r)
			return
		}

		if token := r.Header.Get(ServiceTokenHeader); token != "" {
			claims, err := m.validateServiceToken(token)
			if err != nil {
				m.log.WithContext(r.Context()).WithError(err).Warn("service token validation failed")
				m.respondError(w, r, err)
				return
			}
			if !m.isServiceAllowed(claims.ServiceID) {
				m.log.LogSecurityEvent(r.Context(), "service_not_allowed", map[string]interface{}{
					"service_id": claims.ServiceID,
					"path":       r.URL.Path,
				})
				m.respondError(w, r, errors.Forbidden("service not authorized"))
				return
			}
			next.ServeHTTP(w, r.WithContext(WithCaller(r.Context(), claims.ServiceID)))
			return
		}

		if caller := strings.TrimSpace(r.Header.Get(CallerHeader)); caller != "" {
			if !m.devMode {
				m.respondError(w, r, errors.Unauthorized("X-Caller is only accepted in development mode"))
				return
			}
			next.ServeHTTP(w, r.WithContext(WithCaller(r.Context(), caller)))
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (m *CallerAuthMiddleware) validateServiceToken(tokenString string) (*ServiceClaims, error) {
	if cached := m.getCachedToken(tokenString); cached != nil {
		return cached, nil
	}
	if m.publicKey == nil {
		return nil, errors.Unauthorized("service tokens are not configured")
	}

	token, err := jwt.ParseWithClaims(tokenString, &ServiceClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, errors.InvalidToken(nil).WithDetails("method", token.Header["alg"])
		}
		return m.publicKey, nil
	})
	if err != nil {
		return nil, errors.InvalidToken(err)
	}
	if !token.Valid {
		return nil, errors.InvalidToken(nil)
	}
	claims, ok := token.Claims.(*ServiceClaims)
	if !ok {
		return nil, errors.InvalidToken(nil).WithDetails("reason", "invalid claims type")
	}
	if strings.TrimSpace(claims.ServiceID) == "" {
		return nil, errors.InvalidToken(nil).WithDetails("reason", "missing service_id claim")
	}

	m.cacheToken(tokenString, claims)
	return claims, nil
}

func (m *CallerAuthMiddleware) getCachedToken(tokenString string) *ServiceClaims {
	m.mu.RLock()
	defer m.mu.RUnlock()
	cached, ok := m.validatedTokens[tokenString]
	if !ok || time.Now().After(cached.expiresAt) {
		return nil
	}
	return cached.claims
}

// cacheToken keeps a validated token for 5 minutes or until it expires,
// whichever is sooner.
func (m *CallerAuthMiddleware) cacheToken(tokenString string, claims *ServiceClaims) {
	m.mu.Lock()
	defer m.mu.Unlock()

	expiry := time.Now().Add(5 * time.Minute)
	if claims.ExpiresAt != nil && claims.ExpiresAt.Time.Before(expiry) {
		expiry = claims.ExpiresAt.Time
	}
	m.validatedTokens[tokenString] = &cachedToken{claims: claims, expiresAt: expiry}

	if len(m.validatedTokens) > 1000 {
		now := time.Now()
		for key, cached := range m.validatedTokens {
			if now.After(cached.expiresAt) {
				delete(m.validatedTokens, key)
			}
		}
	}
}

// isServiceAllowed permits every service when no allow list is configured.
func (m *CallerAuthMiddleware) isServiceAllowed(serviceID string) bool {
	if len(m.allowedServices) == 0 {
		return true
	}
	return m.allowedServices[serviceID]
}

func (m *CallerAuthMiddleware) respondError(w http.ResponseWriter, r *http.Request, err error) {
	serviceErr := errors.GetServiceError(err)
	if serviceErr == nil {
		serviceErr = errors.Internal("caller authentication failed", err)
	}
	m.log.WithContext(r.Context()).WithError(err).WithFields(map[string]interface{}{
		"path":   r.URL.Path,
		"method": r.Method,
		"status": serviceErr.HTTPStatus,
	}).Warn("caller authentication failed")
	errors.Write(w, serviceErr)
}

// ServiceTokenGenerator issues service tokens for callers of the ledger.
type ServiceTokenGenerator struct {
	privateKey *rsa.PrivateKey
	serviceID  string
	expiry     time.Duration
}

// NewServiceTokenGenerator creates a new service token generator.
func NewServiceTokenGenerator(privateKey *rsa.PrivateKey, serviceID string, expiry time.Duration) *ServiceTokenGenerator {
	if expiry == 0 {
		expiry = DefaultServiceTokenExpiry
	}
	return &ServiceTokenGenerator{
		privateKey: privateKey,
		serviceID:  serviceID,
		expiry:     expiry,
	}
}

// GenerateToken generates a new service token.
func (g *ServiceTokenGenerator) GenerateToken() (string, error) {
	now := time.Now()
	claims := &ServiceClaims{
		ServiceID: g.serviceID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(g.expiry)),
			Issuer:    "token-ledger",
			Subject:   g.serviceID,
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	return token.SignedString(g.privateKey)
}

// CallerFromContext returns the resolved caller identity or "".
func CallerFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(callerKey).(string); ok {
		return v
	}
	return ""
}

// WithCaller returns ctx carrying caller.
func WithCaller(ctx context.Context, caller string) context.Context {
	return context.WithValue(ctx, callerKey, caller)
}

// RequireCaller rejects anonymous requests.
func RequireCaller(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if CallerFromContext(r.Context()) == "" {
			errors.Write(w, errors.Unauthorized("caller identity required"))
			return
		}
		next.ServeHTTP(w, r)
	})
}
