package auth

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// SessionCookie is the cookie the web app stores its access token in.
// API clients send the token in the Authorization header instead.
const SessionCookie = "session"

// defaultAudience is the audience claim the identity provider stamps on
// end-user access tokens.
const defaultAudience = "authenticated"

// VerifierConfig configures JWT verification.
type VerifierConfig struct {
	// Secret is the HS256 shared secret of the identity provider.
	Secret string
	// Issuer is the expected iss claim. If empty, issuer is not validated.
	Issuer string
	// Audience is the expected aud claim. Defaults to "authenticated".
	Audience string
}

// Verifier validates bearer tokens and extracts the caller's identity.
type Verifier struct {
	secret   []byte
	issuer   string
	audience string
}

// NewVerifier creates a Verifier. The secret is required.
func NewVerifier(cfg VerifierConfig) (*Verifier, error) {
	if cfg.Secret == "" {
		return nil, fmt.Errorf("jwt secret is required")
	}
	audience := cfg.Audience
	if audience == "" {
		audience = defaultAudience
	}
	return &Verifier{
		secret:   []byte(cfg.Secret),
		issuer:   cfg.Issuer,
		audience: audience,
	}, nil
}

// Verify parses and validates a token, returning the identity from its
// claims. The subject claim is required; email and role are optional.
func (v *Verifier) Verify(token string) (Identity, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithAudience(v.audience),
		jwt.WithExpirationRequired(),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return v.secret, nil
	}, opts...)
	if err != nil {
		return Identity{}, fmt.Errorf("token validation failed: %w", err)
	}

	sub, _ := claims["sub"].(string)
	if sub == "" {
		return Identity{}, fmt.Errorf("token has no subject")
	}
	email, _ := claims["email"].(string)
	role, _ := claims["role"].(string)
	return Identity{UserID: sub, Email: email, Role: role}, nil
}

// TokenFromRequest extracts the bearer token: the session cookie first (web
// app), then the Authorization header (API clients). Returns "" when neither
// is present.
func TokenFromRequest(r *http.Request) string {
	if c, err := r.Cookie(SessionCookie); err == nil && c.Value != "" {
		return c.Value
	}
	header := r.Header.Get("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	return ""
}
