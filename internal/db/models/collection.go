// Package models - collection.go defines the Collection and Dotfile models.
package models

import "time"

// Collection is a named, owned, visibility-scoped group of dotfiles.
// OwnerID is immutable after creation.
type Collection struct {
	ID          string    `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	Description string    `db:"description" json:"description"`
	OwnerID     string    `db:"owner_id" json:"owner_id"`
	IsPrivate   bool      `db:"is_private" json:"is_private"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// Dotfile is the metadata record for one file in a collection. The content
// bytes live in blob storage under the derived key "c{collection_id}/{filename}";
// the row never stores content. (collection_id, filename) is unique.
type Dotfile struct {
	ID           string    `db:"id" json:"id"`
	CollectionID string    `db:"collection_id" json:"collection_id"`
	Path         string    `db:"path" json:"path"`
	Filename     string    `db:"filename" json:"filename"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}
