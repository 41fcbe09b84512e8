package utils

import (
	"github.com/gin-gonic/gin"
)

// Response is the envelope every endpoint answers with.
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Message string      `json:"message,omitempty"`
	Code    string      `json:"code,omitempty"`
}

// Error codes carried in failed responses.
const (
	CodeValidation      = "VALIDATION_ERROR"
	CodeMissingToken    = "MISSING_TOKEN"
	CodeInvalidToken    = "INVALID_TOKEN"
	CodeForbidden       = "INSUFFICIENT_PERMISSIONS"
	CodeNotFound        = "RESOURCE_NOT_FOUND"
	CodeConflict        = "CONFLICT"
	CodeSlotConflict    = "SLOT_CONFLICT"
	CodeSlotUnavailable = "SLOT_UNAVAILABLE"
	CodeLeadTime        = "LEAD_TIME"
	CodeInvalidState    = "INVALID_STATE"
	CodeDuplicateEmail  = "DUPLICATE_EMAIL"
	CodeBadCredentials  = "INVALID_CREDENTIALS"
	CodeDatabaseError   = "DATABASE_ERROR"
	CodeInternal        = "INTERNAL_ERROR"
)

func SendSuccess(c *gin.Context, status int, data interface{}, message string) {
	c.JSON(status, Response{Success: true, Data: data, Message: message})
}

// SendError writes a failed envelope and stops the handler chain.
func SendError(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, Response{Success: false, Message: message, Code: code})
}
