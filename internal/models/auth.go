package models

import "github.com/golang-jwt/jwt/v5"

// UserRole is the workplace role carried in the access token.
type UserRole string

const (
	RoleAdmin    UserRole = "ADMIN"
	RoleManager  UserRole = "MANAGER"
	RoleEmployee UserRole = "EMPLOYEE"
)

// JWTClaims is the payload of access tokens issued by the backend auth service.
// The user id travels in the standard "sub" claim.
type JWTClaims struct {
	Email    string   `json:"email"`
	Role     string   `json:"role"`
	AppRole  UserRole `json:"app_role"`
	FullName string   `json:"full_name,omitempty"`
	jwt.RegisteredClaims
}

// UserID returns the subject of the token.
func (c *JWTClaims) UserID() string {
	if c == nil {
		return ""
	}
	return c.Subject
}
