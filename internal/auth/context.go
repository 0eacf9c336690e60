package auth

import (
	"context"

	"github.com/google/uuid"
)

// --- Context Helper Functions ---

// GetUserIDFromContext retrieves the UserID (uuid.UUID) from the request context.
// Returns the ID and true if found, otherwise uuid.Nil and false.
func GetUserIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	userID, ok := ctx.Value(UserIDKey).(uuid.UUID)
	return userID, ok
}

// GetTreeIDFromContext retrieves the tree id the session is scoped to.
// Returns "" and false when absent.
func GetTreeIDFromContext(ctx context.Context) (string, bool) {
	treeID, ok := ctx.Value(TreeIDKey).(string)
	return treeID, ok
}
