package auth

import "context"

type contextKey string

const contextKeyClaims contextKey = "auth.claims"

// WithClaims stores verified claims in context.
func WithClaims(ctx context.Context, claims *Claims) context.Context {
	return context.WithValue(ctx, contextKeyClaims, claims)
}

// ClaimsFromContext extracts claims from context.
func ClaimsFromContext(ctx context.Context) *Claims {
	if ctx == nil {
		return nil
	}
	claims, _ := ctx.Value(contextKeyClaims).(*Claims)
	return claims
}

// UsernameFromContext extracts the caller's username from context.
func UsernameFromContext(ctx context.Context) string {
	if claims := ClaimsFromContext(ctx); claims != nil {
		return claims.Username
	}
	return ""
}

// RoleFromContext extracts role from context.
func RoleFromContext(ctx context.Context) Role {
	claims := ClaimsFromContext(ctx)
	if claims == nil {
		return ""
	}
	role, _ := NormalizeRole(claims.Role)
	return role
}
