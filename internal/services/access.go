// access.go implements the collection access controller. Authorization is a
// pure decision over the collection row and the caller's identity; it does no
// I/O, so every caller resolves the collection first and passes it in.
package services

import "github.com/samsonhsy/dot-backend/internal/db/models"

// Action is an operation class checked against a collection
type Action int

const (
	// ActionRead covers listing files and retrieving archives
	ActionRead Action = iota
	// ActionModify covers adding and deleting files
	ActionModify
	// ActionDelete covers deleting the collection itself
	ActionDelete
)

func (a Action) String() string {
	switch a {
	case ActionRead:
		return "read"
	case ActionModify:
		return "modify"
	case ActionDelete:
		return "delete"
	default:
		return "unknown"
	}
}

// Authorize decides whether principalID may perform action on collection.
// A nil collection is NotFound regardless of the caller; the missing-resource
// answer always wins over the permission answer. Reads are allowed for the
// owner and for anyone when the collection is public. Writes and deletes are
// owner-only, admins included: admin tier grants no access to other users'
// collections.
func Authorize(collection *models.Collection, principalID string, action Action) error {
	if collection == nil {
		return ErrNotFound("collection not found")
	}

	if collection.OwnerID == principalID {
		return nil
	}

	if action == ActionRead && !collection.IsPrivate {
		return nil
	}

	if action == ActionRead {
		return ErrForbidden("collection is private")
	}
	return ErrForbidden("only the owner may " + action.String() + " a collection")
}
