package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/docmgmt-api/internal/models"
	"github.com/noah-isme/docmgmt-api/pkg/response"
)

type ingestionService interface {
	Trigger(ctx context.Context, requesterID int64, req models.TriggerIngestionRequest) (*models.IngestionTask, error)
	HandleCallback(ctx context.Context, req models.IngestionCallbackRequest) (*models.IngestionCallbackResponse, error)
	Status(ctx context.Context, id int64) (*models.IngestionStatusResponse, error)
}

// IngestionHandler exposes the ingestion workflow.
type IngestionHandler struct {
	service ingestionService
}

// NewIngestionHandler constructs an IngestionHandler.
func NewIngestionHandler(svc ingestionService) *IngestionHandler {
	return &IngestionHandler{service: svc}
}

// Trigger submits a payload for processing.
func (h *IngestionHandler) Trigger(c *gin.Context) {
	requesterID, err := currentUserID(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	var req models.TriggerIngestionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidBody(err))
		return
	}

	task, err := h.service.Trigger(c.Request.Context(), requesterID, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, task)
}

// Status reports the current status of a task.
func (h *IngestionHandler) Status(c *gin.Context) {
	id, err := parseIDParam(c, "id", "ingestion task")
	if err != nil {
		response.Error(c, err)
		return
	}

	res, err := h.service.Status(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, res)
}

// Callback records a status reported by the processor.
func (h *IngestionHandler) Callback(c *gin.Context) {
	var req models.IngestionCallbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidBody(err))
		return
	}

	res, err := h.service.HandleCallback(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, res)
}
