package quotelink

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/oficinahub/oficina-backend/pkg/config"
	pkgerrors "github.com/oficinahub/oficina-backend/pkg/errors"
)

var signingMethod = jwt.SigningMethodHS256

// Claims scope a public approval link to exactly one quote. The token is
// derived, never stored; expiry is re-checked on every public request.
type Claims struct {
	QuoteID    uuid.UUID `json:"quote_id"`
	WorkshopID uuid.UUID `json:"workshop_id"`
	jwt.RegisteredClaims
}

// Mint issues a link token for the quote, valid until expiresAt.
func Mint(cfg config.QuoteLinkConfig, now time.Time, quoteID, workshopID uuid.UUID, expiresAt time.Time) (string, error) {
	if cfg.Secret == "" {
		return "", fmt.Errorf("quote link secret is required")
	}
	if quoteID == uuid.Nil {
		return "", fmt.Errorf("quote id is required")
	}
	if workshopID == uuid.Nil {
		return "", fmt.Errorf("workshop id is required")
	}
	if !expiresAt.After(now) {
		return "", fmt.Errorf("link expiry must be in the future")
	}

	claims := Claims{
		QuoteID:    quoteID,
		WorkshopID: workshopID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    cfg.Issuer,
			Subject:   quoteID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			ID:        uuid.NewString(),
		},
	}

	signed, err := jwt.NewWithClaims(signingMethod, claims).SignedString([]byte(cfg.Secret))
	if err != nil {
		return "", fmt.Errorf("signing quote link token: %w", err)
	}
	return signed, nil
}

// Verify is the single validation path shared by every public endpoint.
// Anything wrong with the token (signature, scope, expiry) collapses
// into CodeInvalidToken so the channel never leaks why a link failed.
func Verify(cfg config.QuoteLinkConfig, tokenString string) (*Claims, error) {
	if cfg.Secret == "" {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "quote link secret not configured")
	}
	if tokenString == "" {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidToken, "token is required")
	}

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(
		tokenString,
		claims,
		func(token *jwt.Token) (interface{}, error) {
			if token.Method != signingMethod {
				return nil, fmt.Errorf("unexpected signing method %s", token.Header["alg"])
			}
			return []byte(cfg.Secret), nil
		},
		jwt.WithValidMethods([]string{signingMethod.Alg()}),
		jwt.WithIssuer(cfg.Issuer),
	)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInvalidToken, err, "link is invalid or has expired")
	}
	if claims.QuoteID == uuid.Nil || claims.WorkshopID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidToken, "link is invalid or has expired")
	}

	return claims, nil
}
