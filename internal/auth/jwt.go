// Package auth issues and verifies the bearer tokens that identify the
// current user to the discovery API.
package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Issuer is the iss claim of every token this service signs.
const Issuer = "eventchat"

// TokenTypeAccess is the typ claim of access tokens.
const TokenTypeAccess = "access"

// Defaults for Config.
const (
	DefaultAccessTokenExpiry = 15 * time.Minute
	DefaultLeeway            = 30 * time.Second
)

var (
	// ErrInvalidToken is returned when token validation fails.
	ErrInvalidToken = errors.New("invalid token")

	// ErrExpiredToken is returned when the token has expired.
	ErrExpiredToken = errors.New("token has expired")

	// ErrEmptyUserID is returned when a token would carry no subject.
	ErrEmptyUserID = errors.New("userID cannot be empty")

	// ErrEmptySecret is returned when the service has no signing secret.
	ErrEmptySecret = errors.New("jwt secret cannot be empty")
)

// Claims are the JWT claims of an access token. The subject is the user id.
type Claims struct {
	jwt.RegisteredClaims
	Type string `json:"typ"`
}

// UserID returns the token subject.
func (c *Claims) UserID() string {
	return c.Subject
}

// Config configures a JWTService.
type Config struct {
	// Secret signs new tokens and verifies existing ones.
	Secret string

	// PreviousSecret, when set, still verifies tokens during a key rotation.
	PreviousSecret string

	// Leeway tolerates clock skew on exp/iat (default: 30s).
	Leeway time.Duration

	// AccessTokenExpiry is the lifetime of new tokens (default: 15m).
	AccessTokenExpiry time.Duration
}

// JWTService signs and validates HS256 access tokens.
// Tokens are always signed with the current secret and accepted under either
// the current or the previous secret, so secrets can rotate without downtime.
type JWTService struct {
	secrets [][]byte
	leeway  time.Duration
	expiry  time.Duration
	now     func() time.Time
}

// NewJWTService creates a JWTService from cfg.
func NewJWTService(cfg Config) (*JWTService, error) {
	if cfg.Secret == "" {
		return nil, ErrEmptySecret
	}

	svc := &JWTService{
		secrets: [][]byte{[]byte(cfg.Secret)},
		leeway:  cfg.Leeway,
		expiry:  cfg.AccessTokenExpiry,
		now:     time.Now,
	}
	if cfg.PreviousSecret != "" {
		svc.secrets = append(svc.secrets, []byte(cfg.PreviousSecret))
	}
	if svc.leeway <= 0 {
		svc.leeway = DefaultLeeway
	}
	if svc.expiry <= 0 {
		svc.expiry = DefaultAccessTokenExpiry
	}
	return svc, nil
}

// GenerateAccessToken signs a token identifying userID.
func (s *JWTService) GenerateAccessToken(userID string) (string, error) {
	if userID == "" {
		return "", ErrEmptyUserID
	}

	now := s.now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    Issuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.expiry)),
		},
		Type: TokenTypeAccess,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secrets[0])
}

// ValidateToken parses and validates an access token, trying the current
// secret first and then the previous one.
func (s *JWTService) ValidateToken(tokenString string) (*Claims, error) {
	var lastErr error
	for _, secret := range s.secrets {
		claims, err := s.parse(tokenString, secret)
		if err == nil {
			return claims, nil
		}
		lastErr = err
		// A valid signature with a bad exp will not pass under another key.
		if errors.Is(err, jwt.ErrTokenExpired) {
			break
		}
	}

	if errors.Is(lastErr, jwt.ErrTokenExpired) {
		return nil, ErrExpiredToken
	}
	return nil, ErrInvalidToken
}

func (s *JWTService) parse(tokenString string, secret []byte) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(*jwt.Token) (any, error) {
		return secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(Issuer),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(s.leeway),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.Type != TokenTypeAccess || claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
