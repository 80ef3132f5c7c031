package jwt

import "github.com/golang-jwt/jwt"

// Payload defines the JSON Web Token (JWT) claims issued by the embedded
// development server. It includes standard claims required by the JWT
// specification and the account fields needed to resolve the bearer's identity
// on authenticated endpoints.
type Payload struct {
	// StandardClaims embeds the necessary JWT standard fields such as Exp (Expiration),
	// Iat (Issued At), and Iss (Issuer). These are crucial for token validity checks.
	jwt.StandardClaims `json:"standard_claims"`

	// UserID is the account's unique identifier.
	UserID int64 `json:"user_id"`

	// Username is the account's login name, carried for logging and chat presence.
	Username string `json:"username"`
}
