package auth

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/archivemint-backend/pkg/enums"
)

// AccessTokenPayload is what an operator token is issued for.
type AccessTokenPayload struct {
	UserID uuid.UUID
	Role   enums.ActorRole
	JTI    string
}

// AccessTokenClaims is the verified token body. The user id travels as the standard
// subject claim.
type AccessTokenClaims struct {
	Role enums.ActorRole `json:"role"`
	jwt.RegisteredClaims

	userID uuid.UUID
}

// UserID is the parsed subject; zero until the token has been verified.
func (c *AccessTokenClaims) UserID() uuid.UUID {
	return c.userID
}
