package services

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"net/http"
	"strings"
	"time"

	"notebox/models"
	"notebox/repositories"
	"notebox/storage"
	"notebox/utils"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/samber/lo"
	"gorm.io/gorm"
)

var (
	filesUploadedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "notebox_files_uploaded_total",
		Help: "Files stored and recorded successfully",
	})
	fileUploadBytesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "notebox_file_upload_bytes_total",
		Help: "Bytes written to the blob store by uploads",
	})
	fileUploadFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "notebox_file_upload_failures_total",
		Help: "Uploads rejected or failed, by reason",
	}, []string{"reason"})
	filesDeletedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "notebox_files_deleted_total",
		Help: "Files removed together with their blobs",
	})
)

// UploadSource is one named byte stream of an upload batch.
type UploadSource interface {
	Name() string
	Size() int64
	Open() (io.ReadCloser, error)
}

type FileOutput struct {
	ID          string    `json:"id"`
	Filename    string    `json:"filename"`
	StoragePath string    `json:"storage_path"`
	MimeType    string    `json:"mime_type"`
	Size        int64     `json:"size"`
	CreatedAt   time.Time `json:"created_at"`
	DownloadURL string    `json:"download_url"`
}

type ListFilesInput struct {
	Query    string
	Page     int
	PageSize int
}

// FileAccessOutput tells the transport which file to stream and how.
type FileAccessOutput struct {
	File        models.File
	AbsPath     string
	ContentType string
	Disposition string
}

type FileServiceConfig struct {
	PublicURL         string
	MaxFileSize       int64
	AllowedExtensions []string
	InlineTypes       []string
	MaxPageSize       int
}

type FileService interface {
	Upload(ctx context.Context, identity Identity, sources []UploadSource) ([]FileOutput, error)
	List(ctx context.Context, identity Identity, in ListFilesInput) (utils.Page[FileOutput], error)
	Get(ctx context.Context, identity Identity, fileID string) (FileOutput, error)
	Delete(ctx context.Context, identity Identity, fileID string) error
	Download(ctx context.Context, identity Identity, fileID string) (FileAccessOutput, error)
	Thumbnail(ctx context.Context, identity Identity, fileID string) (FileAccessOutput, error)
}

type fileService struct {
	txManager  TxManager
	files      repositories.FileRepository
	notes      repositories.NoteRepository
	blobs      storage.BlobStore
	thumbnails ThumbnailService
	cfg        FileServiceConfig
}

// NewFileService wires the file core. thumbnails may be nil to disable
// preview generation.
func NewFileService(
	txManager TxManager,
	files repositories.FileRepository,
	notes repositories.NoteRepository,
	blobs storage.BlobStore,
	thumbnails ThumbnailService,
	cfg FileServiceConfig,
) FileService {
	return &fileService{
		txManager:  txManager,
		files:      files,
		notes:      notes,
		blobs:      blobs,
		thumbnails: thumbnails,
		cfg:        cfg,
	}
}

// Upload stores the sources in order and stops at the first failure. Files
// stored before the failure stay persisted and are returned with the error.
func (s *fileService) Upload(ctx context.Context, identity Identity, sources []UploadSource) ([]FileOutput, error) {
	if len(sources) == 0 {
		return nil, newAppError(http.StatusBadRequest, "no files uploaded", nil)
	}

	created := make([]FileOutput, 0, len(sources))
	for _, src := range sources {
		out, err := s.uploadOne(ctx, identity, src)
		if err != nil {
			return created, err
		}
		created = append(created, out)
	}
	return created, nil
}

func (s *fileService) uploadOne(ctx context.Context, identity Identity, src UploadSource) (FileOutput, error) {
	filename := strings.TrimSpace(src.Name())
	if filename == "" {
		filename = "file"
	}
	if s.cfg.MaxFileSize > 0 && src.Size() > s.cfg.MaxFileSize {
		fileUploadFailuresTotal.WithLabelValues("too_large").Inc()
		return FileOutput{}, newAppErrorWithData(http.StatusRequestEntityTooLarge, "file too large", map[string]interface{}{
			"filename": filename,
			"max_size": s.cfg.MaxFileSize,
		}, nil)
	}
	if !isFileExtensionAllowed(filename, s.cfg.AllowedExtensions) {
		fileUploadFailuresTotal.WithLabelValues("extension").Inc()
		return FileOutput{}, newAppErrorWithData(http.StatusBadRequest, "file type not allowed", map[string]interface{}{
			"filename": filename,
		}, nil)
	}

	content, err := src.Open()
	if err != nil {
		return FileOutput{}, newAppError(http.StatusBadRequest, "failed to read uploaded file", err)
	}
	defer content.Close()

	blob, err := s.blobs.Store(filename, content)
	if err != nil {
		fileUploadFailuresTotal.WithLabelValues("storage").Inc()
		slog.Error("store blob", "user_id", identity.ID, "filename", filename, "error", err)
		return FileOutput{}, newKindError(ErrStorageWrite, http.StatusInternalServerError, "failed to store file", err)
	}

	record := models.File{
		ID:            uuid.NewString(),
		UserID:        identity.ID,
		Filename:      filename,
		StoragePath:   blob.Path,
		ThumbnailPath: s.generateThumbnail(blob, filename),
		MimeType:      blob.MimeType,
		Size:          blob.Size,
	}

	err = s.txManager.WithTransaction(ctx, func(tx *gorm.DB) error {
		return s.files.Create(ctx, tx, &record)
	})
	if err != nil {
		fileUploadFailuresTotal.WithLabelValues("persistence").Inc()
		slog.Error("insert file record", "user_id", identity.ID, "storage_path", blob.Path, "error", err)
		s.removeBlobs(record)
		return FileOutput{}, persistenceError("failed to save file record", err)
	}

	filesUploadedTotal.Inc()
	fileUploadBytesTotal.Add(float64(record.Size))
	slog.Info("file uploaded", "user_id", identity.ID, "file_id", record.ID, "size", record.Size)
	return s.toOutput(record), nil
}

func (s *fileService) generateThumbnail(blob storage.StoredBlob, filename string) string {
	if s.thumbnails == nil || !IsImageFile(filename) {
		return ""
	}
	srcPath, err := s.blobs.AbsPath(blob.Path)
	if err != nil {
		return ""
	}
	thumbPath, err := s.thumbnails.Generate(srcPath, filename)
	if err != nil {
		slog.Warn("thumbnail generation failed", "storage_path", blob.Path, "error", err)
		return ""
	}
	return thumbPath
}

func (s *fileService) removeBlobs(record models.File) {
	if err := s.blobs.Remove(record.StoragePath); err != nil {
		slog.Warn("remove orphaned blob", "storage_path", record.StoragePath, "error", err)
	}
	if record.ThumbnailPath != "" {
		if err := s.blobs.Remove(record.ThumbnailPath); err != nil {
			slog.Warn("remove orphaned thumbnail", "storage_path", record.ThumbnailPath, "error", err)
		}
	}
}

func (s *fileService) List(ctx context.Context, identity Identity, in ListFilesInput) (utils.Page[FileOutput], error) {
	if err := validatePage(in.Page, in.PageSize, s.cfg.MaxPageSize); err != nil {
		return utils.Page[FileOutput]{}, err
	}

	query := repositories.ListFilesInput{
		UserID: identity.ID,
		Query:  strings.TrimSpace(in.Query),
		Offset: (in.Page - 1) * in.PageSize,
		Limit:  in.PageSize,
	}
	total, err := s.files.CountByUser(ctx, nil, query)
	if err != nil {
		return utils.Page[FileOutput]{}, persistenceError("failed to count files", err)
	}
	list, err := s.files.ListByUser(ctx, nil, query)
	if err != nil {
		return utils.Page[FileOutput]{}, persistenceError("failed to list files", err)
	}

	data := lo.Map(list, func(f models.File, _ int) FileOutput {
		return s.toOutput(f)
	})
	return utils.NewPage(data, total, in.Page, in.PageSize), nil
}

func (s *fileService) Get(ctx context.Context, identity Identity, fileID string) (FileOutput, error) {
	file, err := s.getOwned(ctx, identity, fileID)
	if err != nil {
		return FileOutput{}, err
	}
	return s.toOutput(file), nil
}

// Delete removes the blob before the row. If the blob cannot be removed the
// row stays, so a record never points at a blob that was half deleted.
func (s *fileService) Delete(ctx context.Context, identity Identity, fileID string) error {
	file, err := s.getOwned(ctx, identity, fileID)
	if err != nil {
		return err
	}

	if err := s.blobs.Remove(file.StoragePath); err != nil {
		slog.Error("remove blob", "file_id", file.ID, "storage_path", file.StoragePath, "error", err)
		return newKindError(ErrStorage, http.StatusInternalServerError, "failed to remove stored file", err)
	}
	if file.ThumbnailPath != "" {
		if err := s.blobs.Remove(file.ThumbnailPath); err != nil {
			slog.Warn("remove thumbnail", "file_id", file.ID, "error", err)
		}
	}

	err = s.txManager.WithTransaction(ctx, func(tx *gorm.DB) error {
		if err := s.notes.DeleteLinksByFile(ctx, tx, file.ID); err != nil {
			return err
		}
		n, err := s.files.DeleteByIDAndUser(ctx, tx, file.ID, identity.ID)
		if err != nil {
			return err
		}
		if n == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return notFound("File not found")
		}
		return persistenceError("failed to delete file record", err)
	}

	filesDeletedTotal.Inc()
	slog.Info("file deleted", "user_id", identity.ID, "file_id", file.ID)
	return nil
}

func (s *fileService) Download(ctx context.Context, identity Identity, fileID string) (FileAccessOutput, error) {
	file, err := s.getOwned(ctx, identity, fileID)
	if err != nil {
		return FileAccessOutput{}, err
	}
	absPath, err := s.existingBlob(file.StoragePath)
	if err != nil {
		return FileAccessOutput{}, err
	}

	return FileAccessOutput{
		File:        file,
		AbsPath:     absPath,
		ContentType: file.MimeType,
		Disposition: contentDisposition(file.Filename, isInlineType(file.MimeType, s.cfg.InlineTypes)),
	}, nil
}

func (s *fileService) Thumbnail(ctx context.Context, identity Identity, fileID string) (FileAccessOutput, error) {
	file, err := s.getOwned(ctx, identity, fileID)
	if err != nil {
		return FileAccessOutput{}, err
	}
	if file.ThumbnailPath == "" {
		return FileAccessOutput{}, notFound("Thumbnail not found")
	}
	absPath, err := s.existingBlob(file.ThumbnailPath)
	if err != nil {
		return FileAccessOutput{}, err
	}

	return FileAccessOutput{
		File:        file,
		AbsPath:     absPath,
		ContentType: "image/jpeg",
		Disposition: "inline",
	}, nil
}

// getOwned masks files of other users as missing.
func (s *fileService) getOwned(ctx context.Context, identity Identity, fileID string) (models.File, error) {
	file, err := s.files.GetByIDAndUser(ctx, nil, fileID, identity.ID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.File{}, notFound("File not found")
		}
		return models.File{}, persistenceError("failed to query file", err)
	}
	return file, nil
}

func (s *fileService) existingBlob(storagePath string) (string, error) {
	exists, err := s.blobs.Exists(storagePath)
	if err != nil {
		if errors.Is(err, storage.ErrInvalidPath) {
			return "", notFound("File not found on disk")
		}
		return "", newKindError(ErrStorage, http.StatusInternalServerError, "failed to access stored file", err)
	}
	if !exists {
		return "", notFound("File not found on disk")
	}
	return s.blobs.AbsPath(storagePath)
}

func (s *fileService) toOutput(f models.File) FileOutput {
	return toFileOutput(s.cfg.PublicURL, f)
}

func toFileOutput(publicURL string, f models.File) FileOutput {
	return FileOutput{
		ID:          f.ID,
		Filename:    f.Filename,
		StoragePath: f.StoragePath,
		MimeType:    f.MimeType,
		Size:        f.Size,
		CreatedAt:   f.CreatedAt,
		DownloadURL: downloadURL(publicURL, f.ID, f.Filename),
	}
}

func validatePage(page, pageSize, maxPageSize int) error {
	if maxPageSize <= 0 {
		maxPageSize = 100
	}
	if page < 1 {
		return newAppError(http.StatusUnprocessableEntity, "page must be a positive integer", nil)
	}
	if pageSize < 1 || pageSize > maxPageSize {
		return newAppErrorWithData(http.StatusUnprocessableEntity, "page_size out of range", map[string]int{
			"min": 1,
			"max": maxPageSize,
		}, nil)
	}
	if page-1 > math.MaxInt/pageSize {
		return newAppError(http.StatusUnprocessableEntity, "page is too large", nil)
	}
	return nil
}
