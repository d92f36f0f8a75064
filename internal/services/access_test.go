package services

import (
	"testing"

	"github.com/samsonhsy/dot-backend/internal/db/models"
)

func TestAuthorize_NilCollectionIsNotFound(t *testing.T) {
	// Missing must win over forbidden, for every action
	for _, action := range []Action{ActionRead, ActionModify, ActionDelete} {
		err := Authorize(nil, "anyone", action)
		if KindOf(err) != KindNotFound {
			t.Errorf("Authorize(nil, _, %s) kind = %s, want not_found", action, KindOf(err))
		}
	}
}

func TestAuthorize_Matrix(t *testing.T) {
	private := &models.Collection{ID: "c1", OwnerID: "owner", IsPrivate: true}
	public := &models.Collection{ID: "c2", OwnerID: "owner", IsPrivate: false}

	tests := []struct {
		name       string
		collection *models.Collection
		principal  string
		action     Action
		wantKind   Kind
	}{
		{"owner reads private", private, "owner", ActionRead, KindUnknown},
		{"owner modifies private", private, "owner", ActionModify, KindUnknown},
		{"owner deletes private", private, "owner", ActionDelete, KindUnknown},
		{"stranger reads private", private, "stranger", ActionRead, KindForbidden},
		{"stranger modifies private", private, "stranger", ActionModify, KindForbidden},
		{"stranger deletes private", private, "stranger", ActionDelete, KindForbidden},
		{"owner reads public", public, "owner", ActionRead, KindUnknown},
		{"stranger reads public", public, "stranger", ActionRead, KindUnknown},
		{"stranger modifies public", public, "stranger", ActionModify, KindForbidden},
		{"stranger deletes public", public, "stranger", ActionDelete, KindForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Authorize(tt.collection, tt.principal, tt.action)
			if tt.wantKind == KindUnknown {
				if err != nil {
					t.Errorf("Authorize() = %v, want allow", err)
				}
				return
			}
			if KindOf(err) != tt.wantKind {
				t.Errorf("Authorize() kind = %s, want %s", KindOf(err), tt.wantKind)
			}
		})
	}
}

func TestAuthorize_VisibilityIrrelevantForWrites(t *testing.T) {
	// A public collection is still writable only by its owner
	public := &models.Collection{ID: "c1", OwnerID: "owner", IsPrivate: false}
	if err := Authorize(public, "stranger", ActionModify); KindOf(err) != KindForbidden {
		t.Errorf("non-owner write to public collection: kind = %s, want forbidden", KindOf(err))
	}
}
