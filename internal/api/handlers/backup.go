package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/MacJediWizard/hearth/internal/api/middleware"
	"github.com/MacJediWizard/hearth/internal/archive"
	"github.com/MacJediWizard/hearth/internal/export"
	"github.com/MacJediWizard/hearth/internal/models"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// Error codes returned by the backup endpoints in addition to the
// validation codes of the export package.
const (
	CodeExportFailed         = "BACKUP_EXPORT_FAILED"
	CodeImportFailed         = "BACKUP_IMPORT_FAILED"
	CodePayloadTooLarge      = "PAYLOAD_TOO_LARGE"
	CodeHistoryFailed        = "BACKUP_HISTORY_FAILED"
	CodeArchiveNotConfigured = "ARCHIVE_NOT_CONFIGURED"
	CodeArchiveNotFound      = "ARCHIVE_NOT_FOUND"
	CodeInvalidArchiveName   = "INVALID_ARCHIVE_NAME"
	CodeArchiveFailed        = "BACKUP_ARCHIVE_FAILED"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 500
)

// BackupExporter renders the current table set as a backup document.
type BackupExporter interface {
	ExportJSON(ctx context.Context) ([]byte, error)
}

// BackupImporter restores a backup document.
type BackupImporter interface {
	Import(ctx context.Context, body []byte) (*export.ImportResult, error)
}

// BackupHistoryStore lists backup audit records.
type BackupHistoryStore interface {
	ListBackupRecords(ctx context.Context, limit int) ([]*models.BackupRecord, error)
}

// BackupArchiver manages backup documents stored outside the database.
type BackupArchiver interface {
	Kind() string
	List(ctx context.Context) ([]archive.Object, error)
	Get(ctx context.Context, name string) ([]byte, error)
	Delete(ctx context.Context, name string) error
	Create(ctx context.Context) (*archive.Object, error)
	Restore(ctx context.Context, name string) (*export.ImportResult, error)
}

// ImportResponse is the body of a successful import or archive restore.
type ImportResponse struct {
	Message        string                `json:"message"`
	ImportedCounts export.ImportedCounts `json:"importedCounts"`
}

// BackupHandler handles backup export, import and archive endpoints.
type BackupHandler struct {
	exporter       BackupExporter
	importer       BackupImporter
	history        BackupHistoryStore
	archiver       BackupArchiver
	maxImportBytes int64
	logger         zerolog.Logger
}

// NewBackupHandler creates a new BackupHandler. archiver may be nil, in which
// case the archive routes answer ARCHIVE_NOT_CONFIGURED.
func NewBackupHandler(
	exporter BackupExporter,
	importer BackupImporter,
	history BackupHistoryStore,
	archiver BackupArchiver,
	maxImportBytes int64,
	logger zerolog.Logger,
) *BackupHandler {
	return &BackupHandler{
		exporter:       exporter,
		importer:       importer,
		history:        history,
		archiver:       archiver,
		maxImportBytes: maxImportBytes,
		logger:         logger.With().Str("component", "backup_handler").Logger(),
	}
}

// RegisterRoutes registers backup routes on the given router group.
func (h *BackupHandler) RegisterRoutes(r *gin.RouterGroup) {
	backup := r.Group("/backup")
	{
		backup.GET("/export", h.Export)
		backup.POST("/import", middleware.BodyLimit(h.maxImportBytes), h.Import)
		backup.GET("/history", h.History)

		archives := backup.Group("/archives")
		archives.GET("", h.ListArchives)
		archives.POST("", h.CreateArchive)
		archives.GET("/:name", h.DownloadArchive)
		archives.POST("/:name/restore", h.RestoreArchive)
		archives.DELETE("/:name", h.DeleteArchive)
	}
}

func errorResponse(c *gin.Context, status int, code, message string) {
	c.JSON(status, gin.H{"error": message, "code": code})
}

func sendBackupDocument(c *gin.Context, filename string, data []byte) {
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Data(http.StatusOK, "application/json", data)
}

// Export returns the full table set as a downloadable backup document.
// GET /api/backup/export
func (h *BackupHandler) Export(c *gin.Context) {
	data, err := h.exporter.ExportJSON(c.Request.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to export backup")
		errorResponse(c, http.StatusInternalServerError, CodeExportFailed, "Failed to export backup")
		return
	}

	sendBackupDocument(c, "backup.json", data)
}

// Import validates the request body and replaces the table set with it.
// POST /api/backup/import
func (h *BackupHandler) Import(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			errorResponse(c, http.StatusRequestEntityTooLarge, CodePayloadTooLarge, "Request body too large")
			return
		}
		h.logger.Warn().Err(err).Msg("failed to read import body")
		errorResponse(c, http.StatusBadRequest, export.CodeMalformedJSON, "Failed to read request body")
		return
	}

	result, err := h.importer.Import(c.Request.Context(), body)
	if err != nil {
		h.writeImportError(c, err)
		return
	}

	c.JSON(http.StatusOK, ImportResponse{
		Message:        "Backup imported successfully",
		ImportedCounts: result.Counts,
	})
}

func (h *BackupHandler) writeImportError(c *gin.Context, err error) {
	var vErr *export.ValidationError
	if errors.As(err, &vErr) {
		errorResponse(c, http.StatusBadRequest, vErr.Code, vErr.Message)
		return
	}

	h.logger.Error().Err(err).Msg("failed to import backup")
	errorResponse(c, http.StatusInternalServerError, CodeImportFailed, "Failed to import backup: "+err.Error())
}

// History returns backup audit records, newest first.
// GET /api/backup/history
func (h *BackupHandler) History(c *gin.Context) {
	limit := defaultHistoryLimit
	if l := c.Query("limit"); l != "" {
		parsed, err := strconv.Atoi(l)
		if err != nil || parsed <= 0 {
			errorResponse(c, http.StatusBadRequest, "INVALID_LIMIT", "limit must be a positive integer")
			return
		}
		limit = min(parsed, maxHistoryLimit)
	}

	records, err := h.history.ListBackupRecords(c.Request.Context(), limit)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to list backup history")
		errorResponse(c, http.StatusInternalServerError, CodeHistoryFailed, "Failed to list backup history")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"backups": records,
		"limit":   limit,
	})
}

// requireArchiver answers ARCHIVE_NOT_CONFIGURED and returns false when no
// archive sink is configured.
func (h *BackupHandler) requireArchiver(c *gin.Context) bool {
	if h.archiver == nil {
		errorResponse(c, http.StatusNotFound, CodeArchiveNotConfigured, "No backup archive is configured")
		return false
	}
	return true
}

// archiveName returns the validated :name parameter.
func (h *BackupHandler) archiveName(c *gin.Context) (string, bool) {
	name := c.Param("name")
	if !archive.ValidName(name) {
		errorResponse(c, http.StatusBadRequest, CodeInvalidArchiveName, "Invalid archive name")
		return "", false
	}
	return name, true
}

func (h *BackupHandler) writeArchiveError(c *gin.Context, err error, msg string) {
	switch {
	case errors.Is(err, archive.ErrNotFound):
		errorResponse(c, http.StatusNotFound, CodeArchiveNotFound, "Archive not found")
	case errors.Is(err, archive.ErrInvalidName):
		errorResponse(c, http.StatusBadRequest, CodeInvalidArchiveName, "Invalid archive name")
	default:
		h.logger.Error().Err(err).Msg(msg)
		errorResponse(c, http.StatusInternalServerError, CodeArchiveFailed, msg)
	}
}

// ListArchives lists archived backup documents, newest first.
// GET /api/backup/archives
func (h *BackupHandler) ListArchives(c *gin.Context) {
	if !h.requireArchiver(c) {
		return
	}

	objects, err := h.archiver.List(c.Request.Context())
	if err != nil {
		h.writeArchiveError(c, err, "Failed to list archives")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"sink":     h.archiver.Kind(),
		"archives": objects,
	})
}

// CreateArchive exports a backup and stores it in the archive.
// POST /api/backup/archives
func (h *BackupHandler) CreateArchive(c *gin.Context) {
	if !h.requireArchiver(c) {
		return
	}

	obj, err := h.archiver.Create(c.Request.Context())
	if err != nil {
		h.writeArchiveError(c, err, "Failed to archive backup")
		return
	}

	c.JSON(http.StatusCreated, obj)
}

// DownloadArchive returns an archived document as an attachment.
// GET /api/backup/archives/:name
func (h *BackupHandler) DownloadArchive(c *gin.Context) {
	if !h.requireArchiver(c) {
		return
	}
	name, ok := h.archiveName(c)
	if !ok {
		return
	}

	data, err := h.archiver.Get(c.Request.Context(), name)
	if err != nil {
		h.writeArchiveError(c, err, "Failed to read archive")
		return
	}

	sendBackupDocument(c, name, data)
}

// RestoreArchive imports an archived document.
// POST /api/backup/archives/:name/restore
func (h *BackupHandler) RestoreArchive(c *gin.Context) {
	if !h.requireArchiver(c) {
		return
	}
	name, ok := h.archiveName(c)
	if !ok {
		return
	}

	result, err := h.archiver.Restore(c.Request.Context(), name)
	if err != nil {
		if errors.Is(err, archive.ErrNotFound) {
			errorResponse(c, http.StatusNotFound, CodeArchiveNotFound, "Archive not found")
			return
		}
		h.writeImportError(c, err)
		return
	}

	c.JSON(http.StatusOK, ImportResponse{
		Message:        "Backup imported successfully",
		ImportedCounts: result.Counts,
	})
}

// DeleteArchive removes an archived document.
// DELETE /api/backup/archives/:name
func (h *BackupHandler) DeleteArchive(c *gin.Context) {
	if !h.requireArchiver(c) {
		return
	}
	name, ok := h.archiveName(c)
	if !ok {
		return
	}

	if err := h.archiver.Delete(c.Request.Context(), name); err != nil {
		h.writeArchiveError(c, err, "Failed to delete archive")
		return
	}

	c.Status(http.StatusNoContent)
}
