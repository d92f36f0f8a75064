// Package collections implements the collection lifecycle HTTP surface:
// create, list, content upload, archive retrieval, and deletion.
package collections

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/samsonhsy/dot-backend/internal/api/httperr"
	"github.com/samsonhsy/dot-backend/internal/middleware"
	"github.com/samsonhsy/dot-backend/internal/services"
	"github.com/samsonhsy/dot-backend/internal/telemetry"
)

// maxUploadBytes caps a single add-content request. Dotfiles are text files;
// 10 MiB for the whole batch is generous.
const maxUploadBytes = 10 << 20

// Handlers serves /api/v1/collections endpoints.
type Handlers struct {
	collections *services.CollectionService
}

// NewHandlers creates the collection handlers.
func NewHandlers(collections *services.CollectionService) *Handlers {
	return &Handlers{collections: collections}
}

// CreateRequest is the body for POST /api/v1/collections.
type CreateRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
	IsPrivate   bool   `json:"is_private"`
}

// Create creates a collection owned by the caller.
// POST /api/v1/collections
func (h *Handlers) Create(c *gin.Context) {
	user := middleware.CurrentUser(c)

	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name is required"})
		return
	}

	collection, err := h.collections.Create(c.Request.Context(), user.ID, req.Name, req.Description, req.IsPrivate)
	if err != nil {
		httperr.Write(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"collection": collection})
}

// ListOwned lists the caller's collections, private included.
// GET /api/v1/collections/owned
func (h *Handlers) ListOwned(c *gin.Context) {
	user := middleware.CurrentUser(c)

	collections, err := h.collections.ListOwned(c.Request.Context(), user.ID)
	if err != nil {
		httperr.Write(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"collections": collections})
}

// ListPublic lists all public collections. No authentication required.
// GET /api/v1/collections/public
func (h *Handlers) ListPublic(c *gin.Context) {
	collections, err := h.collections.ListPublic(c.Request.Context())
	if err != nil {
		httperr.Write(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"collections": collections})
}

// AddContent uploads a batch of files into a collection. The request is
// multipart/form-data with a "manifest" field holding a JSON array of
// {path, filename} descriptors and one "files" part per descriptor, in the
// same order. Shape validation (count match, positional name match,
// duplicate filenames) happens in the service.
// POST /api/v1/collections/:id/dotfiles
func (h *Handlers) AddContent(c *gin.Context) {
	user := middleware.CurrentUser(c)
	collectionID := c.Param("id")

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxUploadBytes)

	form, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "request must be multipart/form-data"})
		return
	}

	manifestValues := form.Value["manifest"]
	if len(manifestValues) != 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "exactly one manifest field is required"})
		return
	}

	var descriptors []services.FileDescriptor
	if err := json.Unmarshal([]byte(manifestValues[0]), &descriptors); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "manifest is not a valid JSON descriptor array"})
		return
	}

	var files []services.FileUpload
	for _, header := range form.File["files"] {
		part, err := header.Open()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("failed to read file %q", header.Filename)})
			return
		}
		content, err := io.ReadAll(part)
		part.Close()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("failed to read file %q", header.Filename)})
			return
		}
		files = append(files, services.FileUpload{Name: header.Filename, Content: content})
	}

	dotfiles, err := h.collections.AddContent(c.Request.Context(), user.ID, collectionID, descriptors, files)
	if err != nil {
		httperr.Write(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"dotfiles": dotfiles})
}

// ListFiles lists the file metadata of a collection. Works unauthenticated
// for public collections.
// GET /api/v1/collections/:id/dotfiles
func (h *Handlers) ListFiles(c *gin.Context) {
	principalID := ""
	if user := middleware.CurrentUser(c); user != nil {
		principalID = user.ID
	}

	dotfiles, err := h.collections.ListFiles(c.Request.Context(), principalID, c.Param("id"))
	if err != nil {
		httperr.Write(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"dotfiles": dotfiles})
}

// Archive streams a zip of every file in the collection. Free-tier callers
// consume one retrieval from their monthly quota; a 429 body names the limit.
// GET /api/v1/collections/:id/archive
func (h *Handlers) Archive(c *gin.Context) {
	user := middleware.CurrentUser(c)

	archive, err := h.collections.Archive(c.Request.Context(), user, c.Param("id"))
	if err != nil {
		if services.KindOf(err) == services.KindQuotaExceeded {
			telemetry.QuotaRejectionsTotal.Inc()
		}
		httperr.Write(c, err)
		return
	}

	telemetry.ArchiveDownloadsTotal.WithLabelValues(user.AccountTier).Inc()

	c.Header("Content-Disposition", "attachment; filename=files.zip")
	c.Data(http.StatusOK, "application/zip", archive)
}

// DeleteFile removes one file from a collection, blob first.
// DELETE /api/v1/collections/:id/dotfiles/:filename
func (h *Handlers) DeleteFile(c *gin.Context) {
	user := middleware.CurrentUser(c)

	err := h.collections.DeleteFile(c.Request.Context(), user.ID, c.Param("id"), c.Param("filename"))
	if err != nil {
		httperr.Write(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "file deleted"})
}

// Delete removes a collection and all of its files. A partial cleanup
// failure keeps the collection row and reports the files left behind.
// DELETE /api/v1/collections/:id
func (h *Handlers) Delete(c *gin.Context) {
	user := middleware.CurrentUser(c)

	if err := h.collections.Delete(c.Request.Context(), user.ID, c.Param("id")); err != nil {
		httperr.Write(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "collection deleted"})
}
