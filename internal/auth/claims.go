package auth

import "github.com/golang-jwt/jwt/v5"

type TokenType string

const TokenTypeAccess TokenType = "access"

// ScopeCalls allows placing and reading outbound calls.
const ScopeCalls = "calls"

// Claims are the only supported JWT claims shape for this service.
// Subject identifies the calling system (e.g. a workflow engine).
type Claims struct {
	jwt.RegisteredClaims

	Scope     string    `json:"scope"`
	TokenType TokenType `json:"token_type"`
}
