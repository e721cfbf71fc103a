package recordings

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/bodycam/backend/internal/apperrors"
	"github.com/bodycam/backend/internal/middleware"
	"github.com/bodycam/backend/pkg/response"
)

// Handler handles recording HTTP endpoints.
type Handler struct {
	service *Service
}

// NewHandler creates a recordings handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type startRequest struct {
	ShiftID string `json:"shift_id" binding:"required"`
}

type stopRequest struct {
	JobID string `json:"job_id"`
}

// Start handles POST /recordings/start {shift_id}. Returns { job_id, recording_id }.
func (h *Handler) Start(c *gin.Context) {
	var req startRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "shift_id is required")
		return
	}
	// Shift ids are UUIDs, so anything else names no shift.
	shiftID, err := uuid.Parse(req.ShiftID)
	if err != nil {
		response.Error(c, apperrors.ErrSessionNotFound)
		return
	}
	res, err := h.service.StartCapture(c.Request.Context(), middleware.Identity(c), shiftID)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":      true,
		"job_id":       res.JobID,
		"recording_id": res.RecordingID,
	})
}

// Stop handles POST /recordings/stop {job_id}. Succeeds whenever the request is valid;
// the recording's outcome is settled by the provider callback.
func (h *Handler) Stop(c *gin.Context) {
	var req stopRequest
	_ = c.ShouldBindJSON(&req)
	if err := h.service.StopCapture(c.Request.Context(), middleware.Identity(c), req.JobID); err != nil {
		response.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// ListByShift handles GET /shifts/:id/recordings?employee_id=.
func (h *Handler) ListByShift(c *gin.Context) {
	shiftID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, apperrors.ErrNotFound)
		return
	}
	var employeeID *uuid.UUID
	if v := c.Query("employee_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			response.BadRequest(c, "invalid employee id")
			return
		}
		employeeID = &id
	}
	list, err := h.service.ListRecordings(c.Request.Context(), middleware.Identity(c), shiftID, employeeID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, list)
}

// GenerateDownloadURL handles GET /recordings/:id/download-url. Returns presigned URL; only
// the recorded employee or the shift's manager may ask.
func (h *Handler) GenerateDownloadURL(c *gin.Context) {
	recordingID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, apperrors.ErrNotFound)
		return
	}
	url, expires, err := h.service.DownloadURL(c.Request.Context(), middleware.Identity(c), recordingID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, gin.H{
		"url":        url,
		"expires_in": int(expires.Seconds()),
	})
}
