package models

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// UserRole represents the available roles for the RBAC system.
type UserRole string

const (
	RoleAdmin   UserRole = "ADMIN"
	RoleStaff   UserRole = "STAFF"
	RoleTeacher UserRole = "TEACHER"
	RoleStudent UserRole = "STUDENT"
)

// User represents an application user stored in the users table.
type User struct {
	ID           string     `db:"id" json:"id"`
	Email        string     `db:"email" json:"email"`
	PasswordHash string     `db:"password_hash" json:"-"`
	FullName     string     `db:"full_name" json:"full_name"`
	Role         UserRole   `db:"role" json:"role"`
	Active       bool       `db:"active" json:"active"`
	LastLogin    *time.Time `db:"last_login" json:"last_login,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
}

// JWTClaims is the access-token payload.
type JWTClaims struct {
	UserID string   `json:"uid"`
	Role   UserRole `json:"role"`
	jwt.RegisteredClaims
}

// Scope is the caller identity threaded through every engine call.
// Mutations require CanMutate; reads are narrowed to the caller's own
// slots unless the scope is unrestricted.
type Scope struct {
	Role         UserRole
	InstructorID string
	StudentID    string
}

// Unrestricted reports whether the scope may read everything.
func (s Scope) Unrestricted() bool {
	return s.Role == RoleAdmin || s.Role == RoleStaff
}

// CanMutate reports whether the scope may invoke scheduling mutations.
func (s Scope) CanMutate() bool {
	return s.Role == RoleAdmin || s.Role == RoleStaff
}

// ScopeFor derives the engine scope from token claims.
func ScopeFor(claims *JWTClaims) Scope {
	if claims == nil {
		return Scope{}
	}
	scope := Scope{Role: claims.Role}
	switch claims.Role {
	case RoleTeacher:
		scope.InstructorID = claims.UserID
	case RoleStudent:
		scope.StudentID = claims.UserID
	}
	return scope
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}

// LoginRequest is the credential payload for POST /auth/login.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// LoginResponse carries the issued token and user info.
type LoginResponse struct {
	AccessToken string    `json:"access_token"`
	ExpiresIn   int64     `json:"expires_in"`
	IssuedAt    time.Time `json:"issued_at"`
	User        UserInfo  `json:"user"`
}

// UserInfo is the public view of a user.
type UserInfo struct {
	ID       string   `json:"id"`
	Email    string   `json:"email"`
	FullName string   `json:"full_name"`
	Role     UserRole `json:"role"`
}
