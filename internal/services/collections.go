// collections.go implements the collection lifecycle orchestrator. It
// sequences the multi-store operations (metadata rows in Postgres, content
// bytes in blob storage) and applies the access controller and quota ledger
// as guards. Ordering rules here are load-bearing: blobs are uploaded before
// metadata commits, and blob deletion must succeed before the matching
// metadata row goes away.
package services

import (
	"archive/zip"
	"bytes"
	"context"
	"io"
	"log/slog"
	"strings"

	"github.com/samsonhsy/dot-backend/internal/db/models"
	"github.com/samsonhsy/dot-backend/internal/db/repositories"
	"github.com/samsonhsy/dot-backend/internal/storage"
)

// BlobKey derives the storage key for one dotfile. The key scheme namespaces
// blobs per collection; metadata rows never store keys, they are always
// re-derived.
func BlobKey(collectionID, filename string) string {
	return "c" + collectionID + "/" + filename
}

// validateFilename rejects names that cannot live inside the collection's
// blob namespace. Derived keys embed the filename as a single path segment,
// so separators and directory references would let a request escape it.
func validateFilename(name string) error {
	if name == "" {
		return ErrValidation("filename is required")
	}
	if strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return ErrValidation("filename %q must not contain path separators or directory references", name)
	}
	return nil
}

// FileDescriptor declares one incoming file's metadata in an add-content
// request.
type FileDescriptor struct {
	Path     string `json:"path" binding:"required"`
	Filename string `json:"filename" binding:"required"`
}

// FileUpload carries one incoming file's declared name and content
type FileUpload struct {
	Name    string
	Content []byte
}

// CollectionStore is the slice of CollectionRepository the orchestrator needs
type CollectionStore interface {
	Create(ctx context.Context, collection *models.Collection) error
	GetByID(ctx context.Context, collectionID string) (*models.Collection, error)
	ListByOwner(ctx context.Context, ownerID string) ([]*models.Collection, error)
	ListPublic(ctx context.Context) ([]*models.Collection, error)
	Delete(ctx context.Context, collectionID string) error
	Touch(ctx context.Context, collectionID string) error
}

// DotfileStore is the slice of DotfileRepository the orchestrator needs
type DotfileStore interface {
	CreateBatch(ctx context.Context, dotfiles []*models.Dotfile) error
	ListByCollection(ctx context.Context, collectionID string) ([]*models.Dotfile, error)
	GetByFilename(ctx context.Context, collectionID, filename string) (*models.Dotfile, error)
	Delete(ctx context.Context, collectionID, filename string) error
}

// CollectionService orchestrates collection lifecycle operations
type CollectionService struct {
	collections CollectionStore
	dotfiles    DotfileStore
	blobs       storage.Storage
	quota       *QuotaLedger
	logger      *slog.Logger
}

// NewCollectionService creates a collection orchestrator
func NewCollectionService(collections CollectionStore, dotfiles DotfileStore, blobs storage.Storage, quota *QuotaLedger, logger *slog.Logger) *CollectionService {
	return &CollectionService{
		collections: collections,
		dotfiles:    dotfiles,
		blobs:       blobs,
		quota:       quota,
		logger:      logger,
	}
}

// Create makes a new collection owned by ownerID
func (s *CollectionService) Create(ctx context.Context, ownerID, name, description string, isPrivate bool) (*models.Collection, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrValidation("collection name is required")
	}

	collection := &models.Collection{
		Name:        name,
		Description: description,
		OwnerID:     ownerID,
		IsPrivate:   isPrivate,
	}
	if err := s.collections.Create(ctx, collection); err != nil {
		return nil, ErrPersistence(err, "failed to create collection")
	}

	s.logger.Info("collection created", "collection_id", collection.ID, "owner_id", ownerID)
	return collection, nil
}

// ListOwned returns all collections owned by the caller
func (s *CollectionService) ListOwned(ctx context.Context, ownerID string) ([]*models.Collection, error) {
	collections, err := s.collections.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, ErrPersistence(err, "failed to list collections")
	}
	return collections, nil
}

// ListPublic returns all public collections
func (s *CollectionService) ListPublic(ctx context.Context) ([]*models.Collection, error) {
	collections, err := s.collections.ListPublic(ctx)
	if err != nil {
		return nil, ErrPersistence(err, "failed to list collections")
	}
	return collections, nil
}

// authorized loads the collection and checks the action in one step
func (s *CollectionService) authorized(ctx context.Context, collectionID, principalID string, action Action) (*models.Collection, error) {
	collection, err := s.collections.GetByID(ctx, collectionID)
	if err != nil {
		return nil, ErrPersistence(err, "failed to load collection")
	}
	if err := Authorize(collection, principalID, action); err != nil {
		return nil, err
	}
	return collection, nil
}

// AddContent stores a batch of files in the collection. The request shape is
// validated first: descriptor and file counts must match, and each file's
// declared name must match its descriptor positionally. Every blob is
// uploaded before any metadata row is inserted, so a storage failure never
// leaves metadata pointing at missing bytes. The reverse window is accepted:
// a metadata failure after the uploads leaves orphaned blobs behind.
func (s *CollectionService) AddContent(ctx context.Context, principalID, collectionID string, descriptors []FileDescriptor, files []FileUpload) ([]*models.Dotfile, error) {
	if len(descriptors) == 0 {
		return nil, ErrValidation("at least one file is required")
	}
	if len(descriptors) != len(files) {
		return nil, ErrValidation("got %d files but %d descriptors", len(files), len(descriptors))
	}
	for i, descriptor := range descriptors {
		if err := validateFilename(descriptor.Filename); err != nil {
			return nil, err
		}
		if files[i].Name != descriptor.Filename {
			return nil, ErrValidation("file %d is named %q but its descriptor says %q", i, files[i].Name, descriptor.Filename)
		}
	}

	seen := make(map[string]bool, len(descriptors))
	for _, descriptor := range descriptors {
		if seen[descriptor.Filename] {
			return nil, ErrConflict("duplicate filename %q in request", descriptor.Filename)
		}
		seen[descriptor.Filename] = true
	}

	collection, err := s.authorized(ctx, collectionID, principalID, ActionModify)
	if err != nil {
		return nil, err
	}

	existing, err := s.dotfiles.ListByCollection(ctx, collectionID)
	if err != nil {
		return nil, ErrPersistence(err, "failed to list existing files")
	}
	for _, dotfile := range existing {
		if seen[dotfile.Filename] {
			return nil, ErrConflict("file %q already exists in collection", dotfile.Filename)
		}
	}

	// Upload all blobs before committing any metadata
	for i, descriptor := range descriptors {
		key := BlobKey(collectionID, descriptor.Filename)
		if exists, err := s.blobs.Exists(ctx, key); err == nil && exists {
			// No metadata row points here, so this is an orphan from an
			// earlier failed commit; adding the file again reclaims the key.
			s.logger.Warn("overwriting orphaned blob", "key", key)
		}
		result, err := s.blobs.Upload(ctx, key, bytes.NewReader(files[i].Content), int64(len(files[i].Content)))
		if err != nil {
			return nil, ErrStorage(err, "failed to store file "+descriptor.Filename)
		}
		s.logger.Debug("blob stored",
			"key", result.Key, "size", result.Size, "checksum", result.Checksum)
	}

	rows := make([]*models.Dotfile, len(descriptors))
	for i, descriptor := range descriptors {
		rows[i] = &models.Dotfile{
			CollectionID: collectionID,
			Path:         descriptor.Path,
			Filename:     descriptor.Filename,
		}
	}
	if err := s.dotfiles.CreateBatch(ctx, rows); err != nil {
		// Two concurrent uploads can race past the pre-check; the unique
		// constraint is the final authority.
		if repositories.IsUniqueViolation(err) {
			return nil, ErrConflict("a file with the same name was added concurrently")
		}
		return nil, ErrPersistence(err, "failed to record files")
	}

	if err := s.collections.Touch(ctx, collectionID); err != nil {
		s.logger.Warn("failed to bump collection timestamp",
			"collection_id", collection.ID, "error", err)
	}

	s.logger.Info("content added", "collection_id", collectionID, "files", len(rows))
	return rows, nil
}

// ListFiles returns the collection's dotfile metadata
func (s *CollectionService) ListFiles(ctx context.Context, principalID, collectionID string) ([]*models.Dotfile, error) {
	if _, err := s.authorized(ctx, collectionID, principalID, ActionRead); err != nil {
		return nil, err
	}

	dotfiles, err := s.dotfiles.ListByCollection(ctx, collectionID)
	if err != nil {
		return nil, ErrPersistence(err, "failed to list files")
	}
	return dotfiles, nil
}

// Archive composes a zip of every file in the collection, keyed by original
// filename. The quota slot is reserved before any blob is touched, so an
// exhausted free-tier user is rejected without storage traffic; if
// composition then fails, the slot is returned best-effort.
func (s *CollectionService) Archive(ctx context.Context, principal *models.User, collectionID string) ([]byte, error) {
	if _, err := s.authorized(ctx, collectionID, principal.ID, ActionRead); err != nil {
		return nil, err
	}

	if err := s.quota.Reserve(ctx, principal); err != nil {
		return nil, err
	}

	archive, err := s.composeArchive(ctx, collectionID)
	if err != nil {
		s.quota.Release(ctx, principal)
		return nil, err
	}

	return archive, nil
}

func (s *CollectionService) composeArchive(ctx context.Context, collectionID string) ([]byte, error) {
	dotfiles, err := s.dotfiles.ListByCollection(ctx, collectionID)
	if err != nil {
		return nil, ErrPersistence(err, "failed to list files")
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	for _, dotfile := range dotfiles {
		reader, err := s.blobs.Download(ctx, BlobKey(collectionID, dotfile.Filename))
		if err != nil {
			zw.Close()
			return nil, ErrStorage(err, "failed to fetch file "+dotfile.Filename)
		}

		entry, err := zw.Create(dotfile.Filename)
		if err == nil {
			_, err = io.Copy(entry, reader)
		}
		reader.Close()
		if err != nil {
			zw.Close()
			return nil, ErrStorage(err, "failed to archive file "+dotfile.Filename)
		}
	}

	if err := zw.Close(); err != nil {
		return nil, ErrStorage(err, "failed to finalize archive")
	}
	return buf.Bytes(), nil
}

// DeleteFile removes one file from the collection. The blob goes first; if
// blob deletion fails the metadata row stays, so the row never points at
// bytes that were silently lost.
func (s *CollectionService) DeleteFile(ctx context.Context, principalID, collectionID, filename string) error {
	if err := validateFilename(filename); err != nil {
		return err
	}
	if _, err := s.authorized(ctx, collectionID, principalID, ActionModify); err != nil {
		return err
	}

	dotfile, err := s.dotfiles.GetByFilename(ctx, collectionID, filename)
	if err != nil {
		return ErrPersistence(err, "failed to load file")
	}
	if dotfile == nil {
		return ErrNotFound("file %q not found in collection", filename)
	}

	if err := s.blobs.Delete(ctx, BlobKey(collectionID, filename)); err != nil {
		return ErrStorage(err, "failed to delete file content")
	}
	if err := s.dotfiles.Delete(ctx, collectionID, filename); err != nil {
		return ErrPersistence(err, "failed to delete file record")
	}

	if err := s.collections.Touch(ctx, collectionID); err != nil {
		s.logger.Warn("failed to bump collection timestamp",
			"collection_id", collectionID, "error", err)
	}

	return nil
}

// Delete removes the collection and everything in it. Each file follows the
// blob-then-row ordering; a file whose blob cannot be deleted keeps its row.
// The collection row is only removed once every file is gone, and a partial
// failure reports exactly which files were not cleaned up.
func (s *CollectionService) Delete(ctx context.Context, principalID, collectionID string) error {
	if _, err := s.authorized(ctx, collectionID, principalID, ActionDelete); err != nil {
		return err
	}

	dotfiles, err := s.dotfiles.ListByCollection(ctx, collectionID)
	if err != nil {
		return ErrPersistence(err, "failed to list files")
	}

	var failed []string
	for _, dotfile := range dotfiles {
		if err := s.blobs.Delete(ctx, BlobKey(collectionID, dotfile.Filename)); err != nil {
			s.logger.Error("failed to delete blob",
				"collection_id", collectionID, "filename", dotfile.Filename, "error", err)
			failed = append(failed, dotfile.Filename)
			continue
		}
		if err := s.dotfiles.Delete(ctx, collectionID, dotfile.Filename); err != nil {
			s.logger.Error("failed to delete file record",
				"collection_id", collectionID, "filename", dotfile.Filename, "error", err)
			failed = append(failed, dotfile.Filename)
		}
	}

	if len(failed) > 0 {
		return errorf(KindStorageFailure, "collection not deleted, %d file(s) could not be cleaned up: %s",
			len(failed), strings.Join(failed, ", "))
	}

	if err := s.collections.Delete(ctx, collectionID); err != nil {
		return ErrPersistence(err, "failed to delete collection")
	}

	s.logger.Info("collection deleted", "collection_id", collectionID, "files", len(dotfiles))
	return nil
}
