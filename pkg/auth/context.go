package auth

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// GetUserIDFromContext extracts the user ID from JWT claims in the context.
// Returns empty string if not authenticated or claims are missing.
func GetUserIDFromContext(ctx context.Context) string {
	claims, ok := GetClaims(ctx)
	if !ok || claims == nil {
		return ""
	}
	return claims.Subject
}

// GetUserUUIDFromContext extracts the user ID from JWT claims and parses it
// as a UUID. Returns uuid.Nil and false when missing or malformed.
func GetUserUUIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	userIDStr := GetUserIDFromContext(ctx)
	if userIDStr == "" {
		return uuid.Nil, false
	}

	userID, err := uuid.Parse(userIDStr)
	if err != nil {
		return uuid.Nil, false
	}

	return userID, true
}

// RequireUserUUIDFromContext extracts the user ID from context as a UUID and
// returns an error if not found or invalid.
func RequireUserUUIDFromContext(ctx context.Context) (uuid.UUID, error) {
	userID, ok := GetUserUUIDFromContext(ctx)
	if !ok {
		return uuid.Nil, fmt.Errorf("valid user UUID not found in context")
	}
	return userID, nil
}
