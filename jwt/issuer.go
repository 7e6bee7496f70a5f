package jwt

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Verification failures. Verify returns exactly one of these.
var (
	ErrMalformed        = errors.New("jwt: malformed token")
	ErrSignatureInvalid = errors.New("jwt: signature invalid")
	ErrExpired          = errors.New("jwt: token expired")
)

// ErrInvalidTTL is returned by Issue when ttl is not positive.
var ErrInvalidTTL = errors.New("jwt: ttl must be positive")

const maxLeeway = 2 * time.Minute

// Config configures an Issuer. Secret is the process-wide HS256 key.
type Config struct {
	Secret   []byte
	Issuer   string
	Audience string
	Leeway   time.Duration
	// Now overrides the clock used for iat, exp and expiry checks.
	Now func() time.Time
}

// Claims is the access-token payload. Subject carries the user identifier.
type Claims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// UserID returns the subject claim.
func (c *Claims) UserID() string {
	return c.Subject
}

// Issuer signs and verifies HS256 access tokens. It is immutable after
// construction and safe for concurrent use.
type Issuer struct {
	secret   []byte
	issuer   string
	audience string
	leeway   time.Duration
	now      func() time.Time
}

// NewIssuer validates cfg. An empty secret is always rejected.
func NewIssuer(cfg Config) (*Issuer, error) {
	if len(cfg.Secret) == 0 {
		return nil, errors.New("jwt: secret is required")
	}
	if cfg.Leeway < 0 || cfg.Leeway > maxLeeway {
		return nil, errors.New("jwt: invalid leeway configuration")
	}

	secret := make([]byte, len(cfg.Secret))
	copy(secret, cfg.Secret)

	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &Issuer{
		secret:   secret,
		issuer:   cfg.Issuer,
		audience: cfg.Audience,
		leeway:   cfg.Leeway,
		now:      now,
	}, nil
}

// Issue mints a token for the user that expires ttl from now. The exp claim
// has whole-second precision and is rounded up, so it is always after iat.
func (i *Issuer) Issue(userID, username string, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		return "", ErrInvalidTTL
	}

	now := i.now()
	claims := Claims{
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(ceilSecond(now.Add(ttl))),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    i.issuer,
		},
	}
	if i.audience != "" {
		claims.Audience = jwt.ClaimStrings{i.audience}
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("jwt: sign: %w", err)
	}
	return signed, nil
}

// Verify checks the signature, algorithm and expiry of token and returns its
// claims. Only HS256 is accepted.
func (i *Issuer) Verify(token string) (*Claims, error) {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	}
	if i.leeway > 0 {
		options = append(options, jwt.WithLeeway(i.leeway))
	}
	if i.issuer != "" {
		options = append(options, jwt.WithIssuer(i.issuer))
	}
	if i.audience != "" {
		options = append(options, jwt.WithAudience(i.audience))
	}

	parsed, err := jwt.NewParser(options...).ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, fmt.Errorf("unexpected signing algorithm: %s", t.Method.Alg())
		}
		return i.secret, nil
	})
	if err != nil {
		return nil, classify(err)
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrSignatureInvalid
	}
	if claims.Subject == "" {
		return nil, ErrMalformed
	}

	return claims, nil
}

func ceilSecond(t time.Time) time.Time {
	truncated := t.Truncate(time.Second)
	if truncated.Equal(t) {
		return t
	}
	return truncated.Add(time.Second)
}

func classify(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrExpired
	case errors.Is(err, jwt.ErrTokenMalformed),
		errors.Is(err, jwt.ErrTokenRequiredClaimMissing):
		return ErrMalformed
	default:
		// Bad signature, foreign algorithm, wrong issuer or audience.
		return ErrSignatureInvalid
	}
}
