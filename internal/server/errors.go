package server

import "github.com/gin-gonic/gin"

// ErrorResponse is the structured wire error shape required by §4.11:
// {error, details?} with an appropriate HTTP status.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func writeError(c *gin.Context, status int, message, details string) {
	c.JSON(status, ErrorResponse{Error: message, Details: details})
}
