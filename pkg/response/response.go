package response

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/bodycam/backend/internal/apperrors"
)

// Body is the standard API response envelope.
type Body struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// OK sends a 200 JSON response with data.
func OK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Body{Success: true, Data: data})
}

// BadRequest sends 400 with error message.
func BadRequest(c *gin.Context, err string) {
	c.JSON(http.StatusBadRequest, Body{Success: false, Error: err})
}

// Unauthorized sends 401.
func Unauthorized(c *gin.Context, err string) {
	c.JSON(http.StatusUnauthorized, Body{Success: false, Error: err})
}

// Error maps err through the apperrors taxonomy and sends the matching status. The
// wrapped cause is never exposed; it is attached to the gin context for the request log.
func Error(c *gin.Context, err error) {
	_ = c.Error(err)
	c.JSON(apperrors.HTTPStatus(err), Body{Success: false, Error: apperrors.Message(err)})
}
