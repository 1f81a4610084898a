// Package response provides the unified API response structure.
// All HTTP endpoints reply in this format so clients can rely on a single
// shape for success and error cases.
package response

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kart-io/ragops/pkg/errors"
	"github.com/kart-io/ragops/pkg/middleware"
)

// Response is the unified API response structure.
type Response struct {
	// Code is the business error code (0 = success).
	Code int `json:"code"`

	// Message is a human-readable message.
	Message string `json:"message"`

	// Data contains the response payload (nil for errors).
	Data interface{} `json:"data,omitempty"`

	// RequestID is the unique request identifier for tracing.
	RequestID string `json:"request_id,omitempty"`

	// Timestamp is the response timestamp in Unix milliseconds.
	Timestamp int64 `json:"timestamp,omitempty"`
}

// Success creates a successful response with data.
func Success(data interface{}) *Response {
	return &Response{
		Code:      0,
		Message:   "success",
		Data:      data,
		Timestamp: time.Now().UnixMilli(),
	}
}

// Err creates an error response from an Errno.
func Err(e *errors.Errno) *Response {
	if e == nil {
		return Success(nil)
	}
	return &Response{
		Code:      e.Code,
		Message:   e.Message,
		Timestamp: time.Now().UnixMilli(),
	}
}

// WriteResponse writes err or data to the client in the unified format.
// Non-Errno errors are wrapped as ErrInternal so the code field is always
// meaningful.
func WriteResponse(c *gin.Context, err error, data interface{}) {
	requestID := middleware.GetRequestID(c)

	if err != nil {
		errno := errors.FromError(err)
		resp := Err(errno)
		resp.RequestID = requestID
		c.JSON(errno.HTTPStatus(), resp)
		return
	}

	resp := Success(data)
	resp.RequestID = requestID
	c.JSON(http.StatusOK, resp)
}
