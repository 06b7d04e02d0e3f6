package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/docmgmt-api/internal/models"
	"github.com/noah-isme/docmgmt-api/internal/service"
	appErrors "github.com/noah-isme/docmgmt-api/pkg/errors"
	"github.com/noah-isme/docmgmt-api/pkg/response"
)

// byNamePrefix marks GET /document/:id requests that look a document up by name.
const byNamePrefix = "documentName"

type documentService interface {
	Upload(ctx context.Context, ownerID int64, req models.UploadDocumentRequest, file *service.UploadFile) (*models.Document, error)
	PresignedURL(ctx context.Context, id int64) (*models.PresignedURLResponse, error)
	Delete(ctx context.Context, id int64) (*models.Document, error)
	Download(ctx context.Context, id int64) (*service.DocumentDownload, error)
	GetByName(ctx context.Context, name string) (*models.Document, error)
}

// DocumentHandler serves document endpoints.
type DocumentHandler struct {
	service documentService
}

// NewDocumentHandler constructs a DocumentHandler.
func NewDocumentHandler(svc documentService) *DocumentHandler {
	return &DocumentHandler{service: svc}
}

// Upload accepts a multipart form with documentName and file.
func (h *DocumentHandler) Upload(c *gin.Context) {
	ownerID, err := currentUserID(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	var req models.UploadDocumentRequest
	if err := c.ShouldBind(&req); err != nil {
		response.Error(c, invalidBody(err))
		return
	}

	header, err := c.FormFile("file")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
			response.Error(c, appErrors.Clone(appErrors.ErrInvalidInput, "File is required"))
			return
		}
		response.Error(c, invalidBody(err))
		return
	}

	file, err := header.Open()
	if err != nil {
		response.Error(c, invalidBody(err))
		return
	}
	defer file.Close()

	doc, err := h.service.Upload(c.Request.Context(), ownerID, req, &service.UploadFile{
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Size:        header.Size,
		Content:     file,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, doc)
}

// Get returns a presigned URL, or the document itself for documentName<name> lookups.
func (h *DocumentHandler) Get(c *gin.Context) {
	if name, ok := strings.CutPrefix(c.Param("id"), byNamePrefix); ok {
		h.getByName(c, name)
		return
	}

	id, err := parseIDParam(c, "id", "document")
	if err != nil {
		response.Error(c, err)
		return
	}

	res, err := h.service.PresignedURL(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, res)
}

func (h *DocumentHandler) getByName(c *gin.Context, name string) {
	name = strings.TrimPrefix(name, ":")
	if strings.TrimSpace(name) == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrInvalidInput, "document name is required"))
		return
	}

	doc, err := h.service.GetByName(c.Request.Context(), name)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, doc)
}

// Delete removes the stored object and its record, returning the deleted document.
func (h *DocumentHandler) Delete(c *gin.Context) {
	id, err := parseIDParam(c, "id", "document")
	if err != nil {
		response.Error(c, err)
		return
	}

	doc, err := h.service.Delete(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, doc)
}

// Download streams the stored object as an attachment.
func (h *DocumentHandler) Download(c *gin.Context) {
	id, err := parseIDParam(c, "id", "document")
	if err != nil {
		response.Error(c, err)
		return
	}

	file, err := h.service.Download(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer file.Body.Close()

	c.DataFromReader(http.StatusOK, file.Size, file.ContentType, file.Body, map[string]string{
		"Content-Disposition": contentDisposition(file.Filename),
	})
}

func contentDisposition(filename string) string {
	escaped := strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\r", "", "\n", "").Replace(filename)
	return fmt.Sprintf(`attachment; filename="%s"`, escaped)
}
