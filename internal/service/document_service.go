package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/docmgmt-api/internal/models"
	appErrors "github.com/noah-isme/docmgmt-api/pkg/errors"
	"github.com/noah-isme/docmgmt-api/pkg/validation"
	"github.com/noah-isme/docmgmt-api/pkg/storage"
)

type documentRepository interface {
	Create(ctx context.Context, doc *models.Document) error
	FindByID(ctx context.Context, id int64) (*models.Document, error)
	FindByName(ctx context.Context, name string) (*models.Document, error)
	Delete(ctx context.Context, id int64) error
}

type documentOwnerLookup interface {
	FindByID(ctx context.Context, id int64) (*models.User, error)
}

// DocumentConfig tunes upload and download behaviour.
type DocumentConfig struct {
	PresignTTL     time.Duration
	MaxUploadBytes int64
}

// UploadFile is the file part of an upload request.
type UploadFile struct {
	Filename    string
	ContentType string
	Size        int64
	Content     io.Reader
}

// DocumentDownload streams a stored document. Callers must close Body.
type DocumentDownload struct {
	Filename    string
	ContentType string
	Size        int64
	Body        io.ReadCloser
}

// DocumentService manages document metadata together with the blobs it points at.
type DocumentService struct {
	docs      documentRepository
	owners    documentOwnerLookup
	store     storage.ObjectStore
	validator *validator.Validate
	metrics   *MetricsService
	logger    *zap.Logger
	config    DocumentConfig
	now       func() time.Time
}

// NewDocumentService constructs a DocumentService.
func NewDocumentService(docs documentRepository, owners documentOwnerLookup, store storage.ObjectStore, validate *validator.Validate, metrics *MetricsService, logger *zap.Logger, cfg DocumentConfig) *DocumentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validation.New()
	}
	if cfg.PresignTTL <= 0 {
		cfg.PresignTTL = 5 * time.Minute
	}
	return &DocumentService{
		docs:      docs,
		owners:    owners,
		store:     store,
		validator: validate,
		metrics:   metrics,
		logger:    logger,
		config:    cfg,
		now:       time.Now,
	}
}

// Upload writes the blob first and records it only once the write succeeded.
func (s *DocumentService) Upload(ctx context.Context, ownerID int64, req models.UploadDocumentRequest, file *UploadFile) (*models.Document, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.FromValidation(err)
	}
	if file == nil || file.Content == nil {
		return nil, appErrors.Clone(appErrors.ErrInvalidInput, "File is required")
	}
	if s.config.MaxUploadBytes > 0 && file.Size > s.config.MaxUploadBytes {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("file exceeds %d bytes", s.config.MaxUploadBytes))
	}

	owner, err := s.owners.FindByID(ctx, ownerID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "User not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch user")
	}

	contentType := file.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	key := storage.BuildObjectKey(s.now(), file.Filename)
	if err := s.store.Put(ctx, key, file.Content, file.Size, contentType); err != nil {
		s.metrics.RecordDocumentOperation("upload", "failed")
		return nil, appErrors.Wrap(err, appErrors.ErrUpstream.Code, appErrors.ErrUpstream.Status, "failed to upload document")
	}

	doc := &models.Document{
		DocumentName: req.DocumentName,
		Key:          key,
		S3URL:        s.store.Location(key),
		UserID:       owner.ID,
	}
	if err := s.docs.Create(ctx, doc); err != nil {
		if delErr := s.store.Delete(context.WithoutCancel(ctx), key); delErr != nil {
			s.logger.Error("orphaned object after failed document insert", zap.String("key", key), zap.Error(delErr))
		}
		s.metrics.RecordDocumentOperation("upload", "failed")
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save document")
	}

	s.metrics.RecordDocumentOperation("upload", "ok")
	s.logger.Info("document uploaded", zap.Int64("document_id", doc.ID), zap.String("key", key), zap.Int64("user_id", owner.ID))
	return doc, nil
}

// PresignedURL returns a time-limited GET link for the document's blob.
func (s *DocumentService) PresignedURL(ctx context.Context, id int64) (*models.PresignedURLResponse, error) {
	doc, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	url, err := s.store.PresignGet(ctx, doc.Key, s.config.PresignTTL)
	if err != nil {
		return nil, s.storeError(err, "failed to generate presigned url")
	}
	return &models.PresignedURLResponse{PresignedURL: url}, nil
}

// Delete removes the blob and then the record, returning the deleted document.
func (s *DocumentService) Delete(ctx context.Context, id int64) (*models.Document, error) {
	doc, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.store.Delete(ctx, doc.Key); err != nil && !errors.Is(err, storage.ErrObjectNotFound) {
		s.metrics.RecordDocumentOperation("delete", "failed")
		return nil, appErrors.Wrap(err, appErrors.ErrUpstream.Code, appErrors.ErrUpstream.Status, "failed to delete document object")
	}
	if err := s.docs.Delete(ctx, doc.ID); err != nil {
		s.metrics.RecordDocumentOperation("delete", "failed")
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "Document not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete document")
	}
	s.metrics.RecordDocumentOperation("delete", "ok")
	s.logger.Info("document deleted", zap.Int64("document_id", doc.ID), zap.String("key", doc.Key))
	return doc, nil
}

// Download opens the document's blob for streaming.
func (s *DocumentService) Download(ctx context.Context, id int64) (*DocumentDownload, error) {
	doc, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	obj, err := s.store.Get(ctx, doc.Key)
	if err != nil {
		s.metrics.RecordDocumentOperation("download", "failed")
		return nil, s.storeError(err, "failed to download document")
	}
	s.metrics.RecordDocumentOperation("download", "ok")
	return &DocumentDownload{
		Filename:    doc.DocumentName,
		ContentType: "application/octet-stream",
		Size:        obj.Size,
		Body:        obj.Body,
	}, nil
}

// GetByName returns the document registered under name.
func (s *DocumentService) GetByName(ctx context.Context, name string) (*models.Document, error) {
	if name == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "documentName is required")
	}
	doc, err := s.docs.FindByName(ctx, name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "Document not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch document")
	}
	return doc, nil
}

func (s *DocumentService) find(ctx context.Context, id int64) (*models.Document, error) {
	doc, err := s.docs.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "Document not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch document")
	}
	return doc, nil
}

func (s *DocumentService) storeError(err error, message string) error {
	if errors.Is(err, storage.ErrObjectNotFound) {
		return appErrors.Wrap(err, appErrors.ErrNotFound.Code, appErrors.ErrNotFound.Status, "Document content not found")
	}
	return appErrors.Wrap(err, appErrors.ErrUpstream.Code, appErrors.ErrUpstream.Status, message)
}
