package model

import "github.com/golang-jwt/jwt"

// AuthUser is the authenticated caller. It is resolved once by the auth
// middleware and handed to every usecase call explicitly.
type AuthUser struct {
	ID string `json:"id"`
}

// UserClaims are the JWT claims issued by the identity provider.
type UserClaims struct {
	jwt.StandardClaims
	UserID string `json:"user_id,omitempty"`
}

// Subject returns the user id carried by the claims. Tokens minted by the
// legacy generator put it in iss, newer ones in sub or user_id.
func (c UserClaims) Subject() string {
	switch {
	case c.UserID != "":
		return c.UserID
	case c.StandardClaims.Subject != "":
		return c.StandardClaims.Subject
	}
	return c.Issuer
}
