// collection_repository.go implements CollectionRepository, providing database
// queries for collection rows. Dotfile rows live in dotfile_repository.go.
package repositories

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/samsonhsy/dot-backend/internal/db/models"
)

// CollectionRepository handles collection database operations
type CollectionRepository struct {
	db *sqlx.DB
}

// NewCollectionRepository creates a new CollectionRepository
func NewCollectionRepository(db *sqlx.DB) *CollectionRepository {
	return &CollectionRepository{db: db}
}

const collectionColumns = `id, name, description, owner_id, is_private, created_at, updated_at`

// Create inserts a new collection owned by collection.OwnerID
func (r *CollectionRepository) Create(ctx context.Context, collection *models.Collection) error {
	collection.ID = uuid.New().String()
	collection.CreatedAt = time.Now()
	collection.UpdatedAt = collection.CreatedAt

	query := `
		INSERT INTO collections (id, name, description, owner_id, is_private, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.db.ExecContext(ctx, query,
		collection.ID,
		collection.Name,
		collection.Description,
		collection.OwnerID,
		collection.IsPrivate,
		collection.CreatedAt,
		collection.UpdatedAt,
	)

	return err
}

// GetByID retrieves a collection by ID. Returns (nil, nil) when no row matches.
func (r *CollectionRepository) GetByID(ctx context.Context, collectionID string) (*models.Collection, error) {
	var collection models.Collection
	query := `SELECT ` + collectionColumns + ` FROM collections WHERE id = $1`
	err := r.db.GetContext(ctx, &collection, query, collectionID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &collection, nil
}

// ListByOwner retrieves all collections owned by a user, newest first
func (r *CollectionRepository) ListByOwner(ctx context.Context, ownerID string) ([]*models.Collection, error) {
	collections := make([]*models.Collection, 0)
	query := `SELECT ` + collectionColumns + ` FROM collections WHERE owner_id = $1 ORDER BY created_at DESC`
	if err := r.db.SelectContext(ctx, &collections, query, ownerID); err != nil {
		return nil, err
	}
	return collections, nil
}

// ListPublic retrieves all public collections, newest first
func (r *CollectionRepository) ListPublic(ctx context.Context) ([]*models.Collection, error) {
	collections := make([]*models.Collection, 0)
	query := `SELECT ` + collectionColumns + ` FROM collections WHERE is_private = FALSE ORDER BY created_at DESC`
	if err := r.db.SelectContext(ctx, &collections, query); err != nil {
		return nil, err
	}
	return collections, nil
}

// Delete removes a collection row. Dotfile rows must already be gone; the
// orchestrator deletes them (and their blobs) first.
func (r *CollectionRepository) Delete(ctx context.Context, collectionID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM collections WHERE id = $1`, collectionID)
	return err
}

// Touch bumps a collection's updated_at after its content changed
func (r *CollectionRepository) Touch(ctx context.Context, collectionID string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE collections SET updated_at = $2 WHERE id = $1`, collectionID, time.Now())
	return err
}
