package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/corvusHold/notify/internal/identity/domain"
)

// Claims carried by access tokens.
const (
	ClaimSubject     = "sub"
	ClaimName        = "name"
	ClaimClient      = "ten"
	ClaimCondominium = "cnd"
	ClaimRole        = "role"
)

// ErrInvalidToken is returned for tokens that fail parsing or validation.
var ErrInvalidToken = errors.New("invalid token")

// IssueToken mints an HS256 access token for id. Used by seed tooling and
// tests; production tokens come from the upstream identity provider.
func IssueToken(signingKey string, id domain.Identity, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		ClaimSubject:     id.UserID,
		ClaimName:        id.DisplayName,
		ClaimClient:      id.Tenant.ClientID,
		ClaimCondominium: id.Tenant.CondominiumID,
		ClaimRole:        id.Role,
		"iat":            now.Unix(),
		"exp":            now.Add(ttl).Unix(),
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return tok.SignedString([]byte(signingKey))
}

// ParseToken validates tokStr and returns the identity it carries. The tenant
// may be incomplete; callers decide whether that is acceptable.
func ParseToken(signingKey, tokStr string) (domain.Identity, error) {
	tok, err := jwt.Parse(tokStr, func(token *jwt.Token) (any, error) {
		return []byte(signingKey), nil
	}, jwt.WithLeeway(30*time.Second), jwt.WithIssuedAt(), jwt.WithValidMethods([]string{"HS256"}))
	if err != nil || !tok.Valid {
		return domain.Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	claims, ok := tok.Claims.(jwt.MapClaims)
	if !ok {
		return domain.Identity{}, ErrInvalidToken
	}
	str := func(k string) string { v, _ := claims[k].(string); return v }
	id := domain.Identity{
		UserID:      str(ClaimSubject),
		DisplayName: str(ClaimName),
		Role:        str(ClaimRole),
		Tenant:      domain.Tenant{ClientID: str(ClaimClient), CondominiumID: str(ClaimCondominium)},
	}
	if id.UserID == "" {
		return domain.Identity{}, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	return id, nil
}
