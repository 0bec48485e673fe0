package auth

import (
	"github.com/golang-jwt/jwt/v5"
)

// SessionPayload captures the data available when minting a seller session token.
type SessionPayload struct {
	SellerID  string
	SessionID string
}

// SessionClaims represents the typed JWT handed to a signed-in seller. The
// registered ID (jti) is the session id.
type SessionClaims struct {
	SellerID string `json:"seller_id"`
	jwt.RegisteredClaims
}

// SessionID returns the jti carried by the token.
func (c *SessionClaims) SessionID() string {
	if c == nil {
		return ""
	}
	return c.ID
}
