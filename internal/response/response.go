package response

import "github.com/gin-gonic/gin"

// SuccessResponse is the envelope for successful responses
type SuccessResponse struct {
	Data interface{} `json:"data"`
}

// ErrorResponse is the envelope for error responses
type ErrorResponse struct {
	Error interface{} `json:"error"`
}

// ErrorBody is the content of ErrorResponse.Error
type ErrorBody struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details string                 `json:"details,omitempty"`
	Meta    map[string]interface{} `json:"meta,omitempty"`
}

// SendSuccess writes a success envelope
func SendSuccess(c *gin.Context, statusCode int, data interface{}) {
	c.JSON(statusCode, SuccessResponse{Data: data})
}

// SendError writes an error envelope
func SendError(c *gin.Context, statusCode int, code, message string) {
	c.JSON(statusCode, ErrorResponse{Error: ErrorBody{Code: code, Message: message}})
}

// SendAppError writes an error envelope carrying the details of an AppError
func SendAppError(c *gin.Context, statusCode int, err *AppError) {
	c.JSON(statusCode, ErrorResponse{Error: ErrorBody{
		Code:    err.Code,
		Message: err.Message,
		Details: err.Details,
		Meta:    err.Meta,
	}})
}
