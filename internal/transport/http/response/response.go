package response

import "github.com/gin-gonic/gin"

const (
	CodeOK                 = 0
	CodeBadRequest         = 40000
	CodeInvalidDocument    = 40001
	CodeInternalServer     = 50000
	CodeGenerationFailed   = 50201
	CodeEmptyResponse      = 50202
	CodeRetrievalFailed    = 50301
	CodeIndexUnavailable   = 50302
	CodeDependencyDisabled = 50303
)

type APIResponse struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Details string      `json:"details,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

func OK(c *gin.Context, data interface{}) {
	c.JSON(200, APIResponse{
		Code:    CodeOK,
		Message: "ok",
		Data:    data,
	})
}

func Accepted(c *gin.Context, data interface{}) {
	c.JSON(202, APIResponse{
		Code:    CodeOK,
		Message: "accepted",
		Data:    data,
	})
}

func Error(c *gin.Context, httpStatus, code int, message string) {
	c.JSON(httpStatus, APIResponse{
		Code:    code,
		Message: message,
	})
}

// ErrorWithDetails reports a short error kind plus a human-readable detail string.
func ErrorWithDetails(c *gin.Context, httpStatus, code int, message, details string) {
	c.JSON(httpStatus, APIResponse{
		Code:    code,
		Message: message,
		Details: details,
	})
}
