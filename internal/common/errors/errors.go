// Package errors provides structured error handling for RiskWatch
package errors

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
)

// ErrorCode represents an application error code
type ErrorCode string

const (
	// General errors
	ErrInternal   ErrorCode = "INTERNAL_ERROR"
	ErrNotFound   ErrorCode = "NOT_FOUND"
	ErrBadRequest ErrorCode = "BAD_REQUEST"
	ErrValidation ErrorCode = "VALIDATION_ERROR"
	ErrConflict   ErrorCode = "CONFLICT"

	// Resource errors
	ErrDeviceNotFound     ErrorCode = "DEVICE_NOT_FOUND"
	ErrDeviceRevoked      ErrorCode = "DEVICE_REVOKED"
	ErrAssessmentNotFound ErrorCode = "ASSESSMENT_NOT_FOUND"
	ErrAlertNotFound      ErrorCode = "ALERT_NOT_FOUND"

	// Store and delivery errors
	ErrDatabase ErrorCode = "DATABASE_ERROR"
	ErrDispatch ErrorCode = "DISPATCH_ERROR"

	// Scoring errors; inability to compute a score is never "no risk"
	ErrScoringFailed ErrorCode = "SCORING_FAILED"
)

// AppError represents a structured application error
type AppError struct {
	Code       ErrorCode              `json:"code"`
	Message    string                 `json:"message"`
	Details    string                 `json:"details,omitempty"`
	StatusCode int                    `json:"-"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
	Err        error                  `json:"-"` // Original error for logging
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the original error
func (e *AppError) Unwrap() error {
	return e.Err
}

// WithMetadata adds metadata to the error
func (e *AppError) WithMetadata(key string, value interface{}) *AppError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]interface{})
	}
	e.Metadata[key] = value
	return e
}

// WithDetails adds details to the error
func (e *AppError) WithDetails(details string) *AppError {
	e.Details = details
	return e
}

// New creates a new AppError
func New(code ErrorCode, message string, statusCode int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
	}
}

// Wrap wraps an existing error into an AppError
func Wrap(err error, code ErrorCode, message string, statusCode int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
		Err:        err,
	}
}

// Internal creates an internal server error
func Internal(message string, err error) *AppError {
	return &AppError{
		Code:       ErrInternal,
		Message:    message,
		StatusCode: http.StatusInternalServerError,
		Err:        err,
	}
}

// NotFound creates a not found error
func NotFound(resource string) *AppError {
	return &AppError{
		Code:       ErrNotFound,
		Message:    fmt.Sprintf("%s not found", resource),
		StatusCode: http.StatusNotFound,
	}
}

// BadRequest creates a bad request error
func BadRequest(message string) *AppError {
	return &AppError{
		Code:       ErrBadRequest,
		Message:    message,
		StatusCode: http.StatusBadRequest,
	}
}

// ValidationError creates a validation error; telemetry missing required
// identifiers is rejected synchronously and never partially recorded
func ValidationError(message string) *AppError {
	return &AppError{
		Code:       ErrValidation,
		Message:    message,
		StatusCode: http.StatusBadRequest,
	}
}

// DeviceNotFound creates a device not found error
func DeviceNotFound(deviceID string) *AppError {
	return (&AppError{
		Code:       ErrDeviceNotFound,
		Message:    "Device not found",
		StatusCode: http.StatusNotFound,
	}).WithMetadata("device_id", deviceID)
}

// DeviceRevoked creates a device revoked error
func DeviceRevoked(deviceID string) *AppError {
	return (&AppError{
		Code:       ErrDeviceRevoked,
		Message:    "Device has been revoked",
		StatusCode: http.StatusConflict,
	}).WithMetadata("device_id", deviceID)
}

// DatabaseError creates a database error. Store failures surface to the
// ingestion boundary as fatal for the request once retries are exhausted.
func DatabaseError(operation string, err error) *AppError {
	return &AppError{
		Code:       ErrDatabase,
		Message:    "Store operation failed",
		Details:    operation,
		StatusCode: http.StatusInternalServerError,
		Err:        err,
	}
}

// ScoringFailed creates a scoring error. Callers must treat this as
// "risk unknown", not as low risk.
func ScoringFailed(stage string, err error) *AppError {
	return &AppError{
		Code:       ErrScoringFailed,
		Message:    "Risk scoring failed",
		Details:    stage,
		StatusCode: http.StatusInternalServerError,
		Err:        err,
	}
}

// DispatchFailed creates an alert delivery error for one channel.
// Delivery is best effort; this code is logged and counted, never
// returned to the scoring path.
func DispatchFailed(channel string, err error) *AppError {
	return &AppError{
		Code:       ErrDispatch,
		Message:    "Alert delivery failed",
		Details:    channel,
		StatusCode: http.StatusInternalServerError,
		Err:        err,
	}
}

// ErrorResponse is the JSON response structure for errors
type ErrorResponse struct {
	Error     ErrorCode              `json:"error"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	RequestID string                 `json:"request_id,omitempty"`
}

// HandleError sends an error response to the client
func HandleError(c *gin.Context, err error) {
	var appErr *AppError
	var ok bool

	if appErr, ok = err.(*AppError); !ok {
		appErr = Internal("An unexpected error occurred", err)
	}

	requestID, _ := c.Get("request_id")
	reqIDStr, _ := requestID.(string)

	response := ErrorResponse{
		Error:     appErr.Code,
		Message:   appErr.Message,
		Details:   appErr.Details,
		Metadata:  appErr.Metadata,
		RequestID: reqIDStr,
	}

	c.JSON(appErr.StatusCode, response)
}

// ErrorHandler is a middleware that handles panics and converts them to errors
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				var appErr *AppError

				switch e := err.(type) {
				case *AppError:
					appErr = e
				case error:
					appErr = Internal("Internal server error", e)
				default:
					appErr = Internal("Internal server error", fmt.Errorf("%v", err))
				}

				HandleError(c, appErr)
				c.Abort()
			}
		}()

		c.Next()
	}
}

// IsNotFound reports whether err is any of the not-found error codes
func IsNotFound(err error) bool {
	if appErr, ok := err.(*AppError); ok {
		switch appErr.Code {
		case ErrNotFound, ErrDeviceNotFound, ErrAssessmentNotFound, ErrAlertNotFound:
			return true
		}
	}
	return false
}

// IsErrorCode checks if an error has a specific error code
func IsErrorCode(err error, code ErrorCode) bool {
	if appErr, ok := err.(*AppError); ok {
		return appErr.Code == code
	}
	return false
}

// GetStatusCode returns the HTTP status code for an error
func GetStatusCode(err error) int {
	if appErr, ok := err.(*AppError); ok {
		return appErr.StatusCode
	}
	return http.StatusInternalServerError
}
