package auth

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/emmanuel-dcoder/teevil-api/config"
	"github.com/emmanuel-dcoder/teevil-api/internal/domain"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = fmt.Errorf("%w: expired", ErrInvalidToken)
	ErrUnknownRole  = errors.New("unknown role")
)

// clockSkew is how far apart the issuing and verifying clocks may drift.
const clockSkew = 5 * time.Second

// Claims identify a marketplace participant. The subject mirrors UserID so
// tokens stay readable by services that only look at registered claims.
type Claims struct {
	UserID uint   `json:"user_id"`
	Email  string `json:"email"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// Validate runs after the registered claims pass and rejects tokens that do
// not name a known participant.
func (c *Claims) Validate() error {
	if c.UserID == 0 {
		return errors.New("missing user id")
	}
	if !knownRole(c.Role) {
		return fmt.Errorf("%w %q", ErrUnknownRole, c.Role)
	}
	if c.Subject != "" && c.Subject != strconv.FormatUint(uint64(c.UserID), 10) {
		return errors.New("subject does not match user id")
	}
	return nil
}

func knownRole(role string) bool {
	switch role {
	case domain.RoleClient, domain.RoleFreelancer, domain.RoleAdmin:
		return true
	}
	return false
}

// IssueAccessToken signs an HS256 token for a client, freelancer or admin.
func IssueAccessToken(cfg *config.JWTConfig, userID uint, email, role string) (string, error) {
	if !knownRole(role) {
		return "", fmt.Errorf("%w %q", ErrUnknownRole, role)
	}
	if userID == 0 {
		return "", errors.New("auth: user id is required")
	}
	now := time.Now()
	claims := Claims{
		UserID: userID,
		Email:  email,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   strconv.FormatUint(uint64(userID), 10),
			Issuer:    cfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(cfg.AccessExpiry)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(cfg.AccessSecret))
}

// ParseAccessToken verifies signature, issuer and expiry. Expired tokens
// report ErrTokenExpired, which also matches ErrInvalidToken.
func ParseAccessToken(cfg *config.JWTConfig, raw string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (interface{}, error) {
		return []byte(cfg.AccessSecret), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(cfg.Issuer),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(clockSkew),
	)
	switch {
	case err == nil:
		return claims, nil
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, ErrTokenExpired
	default:
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
}

// BearerToken extracts the credentials of an Authorization header. The
// scheme is matched case-insensitively.
func BearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
