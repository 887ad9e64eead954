package auth

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/oficinahub/oficina-backend/pkg/enums"
)

// AccessTokenPayload captures the data available when minting a JWT.
type AccessTokenPayload struct {
	UserID     uuid.UUID
	WorkshopID uuid.UUID
	Role       enums.MemberRole
}

// AccessTokenClaims represents the typed JWT issued by the auth service.
type AccessTokenClaims struct {
	UserID     uuid.UUID        `json:"user_id"`
	WorkshopID uuid.UUID        `json:"workshop_id"`
	Role       enums.MemberRole `json:"role"`
	jwt.RegisteredClaims
}
