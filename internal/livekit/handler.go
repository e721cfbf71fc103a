package livekit

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/bodycam/backend/internal/apperrors"
	"github.com/bodycam/backend/internal/middleware"
	"github.com/bodycam/backend/pkg/response"
)

// Handler serves capability tokens.
type Handler struct {
	issuer *Issuer
}

// NewHandler creates a token handler.
func NewHandler(issuer *Issuer) *Handler {
	return &Handler{issuer: issuer}
}

type tokenRequest struct {
	ShiftID string `json:"shift_id" binding:"required"`
}

// GetToken handles POST /livekit/token {shift_id}.
// Returns { token, session_name, identity }. Bearer credential required.
func (h *Handler) GetToken(c *gin.Context) {
	var req tokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "shift_id is required")
		return
	}
	shiftID, err := uuid.Parse(req.ShiftID)
	if err != nil {
		response.Error(c, apperrors.ErrSessionNotFound)
		return
	}
	token, err := h.issuer.IssueToken(c.Request.Context(), middleware.Identity(c), shiftID)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":      true,
		"token":        token.Token,
		"session_name": token.SessionName,
		"identity":     token.Subject,
	})
}
