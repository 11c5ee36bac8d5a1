package domain

import "github.com/google/uuid"

// Index classes. Plain-text chunks and flattened JSON fields live in separate
// classes; each class is partitioned per user.
const (
	ClassDocuments     = "Documents"
	ClassJSONDocuments = "JsonDocuments"
)

// TenantForUser derives the isolation key scoping every vector-index read and
// write for a user.
func TenantForUser(userID uuid.UUID) string {
	if userID == uuid.Nil {
		return ""
	}
	return "user_" + userID.String()
}
