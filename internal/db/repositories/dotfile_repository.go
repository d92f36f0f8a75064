// dotfile_repository.go implements DotfileRepository, providing database
// queries for the per-collection dotfile metadata rows.
package repositories

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/samsonhsy/dot-backend/internal/db/models"
)

// DotfileRepository handles dotfile metadata database operations
type DotfileRepository struct {
	db *sqlx.DB
}

// NewDotfileRepository creates a new DotfileRepository
func NewDotfileRepository(db *sqlx.DB) *DotfileRepository {
	return &DotfileRepository{db: db}
}

const dotfileColumns = `id, collection_id, path, filename, created_at`

// CreateBatch inserts all dotfile rows in one transaction so a collection
// never gains metadata for half of an upload. The (collection_id, filename)
// unique constraint is the final authority on duplicate filenames; callers
// should check the returned error with IsUniqueViolation.
func (r *DotfileRepository) CreateBatch(ctx context.Context, dotfiles []*models.Dotfile) error {
	if len(dotfiles) == 0 {
		return nil
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	query := `
		INSERT INTO dotfiles (id, collection_id, path, filename, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	for _, dotfile := range dotfiles {
		dotfile.ID = uuid.New().String()
		dotfile.CreatedAt = time.Now()
		if _, err := tx.ExecContext(ctx, query,
			dotfile.ID,
			dotfile.CollectionID,
			dotfile.Path,
			dotfile.Filename,
			dotfile.CreatedAt,
		); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// ListByCollection retrieves all dotfiles in a collection, ordered by filename
func (r *DotfileRepository) ListByCollection(ctx context.Context, collectionID string) ([]*models.Dotfile, error) {
	dotfiles := make([]*models.Dotfile, 0)
	query := `SELECT ` + dotfileColumns + ` FROM dotfiles WHERE collection_id = $1 ORDER BY filename`
	if err := r.db.SelectContext(ctx, &dotfiles, query, collectionID); err != nil {
		return nil, err
	}
	return dotfiles, nil
}

// GetByFilename retrieves one dotfile in a collection by its filename.
// Returns (nil, nil) when no row matches.
func (r *DotfileRepository) GetByFilename(ctx context.Context, collectionID, filename string) (*models.Dotfile, error) {
	var dotfile models.Dotfile
	query := `SELECT ` + dotfileColumns + ` FROM dotfiles WHERE collection_id = $1 AND filename = $2`
	err := r.db.GetContext(ctx, &dotfile, query, collectionID, filename)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &dotfile, nil
}

// Delete removes one dotfile row by (collection, filename)
func (r *DotfileRepository) Delete(ctx context.Context, collectionID, filename string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM dotfiles WHERE collection_id = $1 AND filename = $2`, collectionID, filename)
	return err
}
