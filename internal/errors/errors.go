package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"
)

// ErrorType represents different categories of errors
type ErrorType string

const (
	// Camera, upload or remote device could not produce an image
	ErrTypeAcquisition ErrorType = "acquisition"
	// Transformation failed unexpectedly
	ErrTypeEffect ErrorType = "effect"
	// Bad caller input
	ErrTypeValidation ErrorType = "validation"
	// Unknown session or photo
	ErrTypeNotFound ErrorType = "not_found"
	// Configuration errors
	ErrTypeConfig ErrorType = "configuration"
	// Generic application errors
	ErrTypeInternal ErrorType = "internal"
)

// AppError represents a structured application error
type AppError struct {
	Type        ErrorType              `json:"type"`
	Code        string                 `json:"code"`
	Message     string                 `json:"message"`
	UserMessage string                 `json:"userMessage,omitempty"`
	InternalErr error                  `json:"-"`
	Context     map[string]interface{} `json:"context,omitempty"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.InternalErr != nil {
		return fmt.Sprintf("[%s:%s] %s: %v", e.Type, e.Code, e.Message, e.InternalErr)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Type, e.Code, e.Message)
}

// Unwrap exposes the wrapped error to errors.Is and errors.As
func (e *AppError) Unwrap() error {
	return e.InternalErr
}

// Is matches on type and code so predefined errors work as sentinels
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Type == t.Type && e.Code == t.Code
}

// GetUserMessage returns a user-friendly error message
func (e *AppError) GetUserMessage() string {
	if e.UserMessage != "" {
		return e.UserMessage
	}
	return e.Message
}

// WithContext adds context information to the error
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// WithUserMessage sets a user-friendly message
func (e *AppError) WithUserMessage(msg string) *AppError {
	e.UserMessage = msg
	return e
}

// Wrap returns a copy of e carrying err as its cause
func (e *AppError) Wrap(err error) *AppError {
	c := e.clone()
	c.InternalErr = err
	return c
}

// With returns a copy of e with one context entry added
func (e *AppError) With(key string, value interface{}) *AppError {
	return e.clone().WithContext(key, value)
}

func (e *AppError) clone() *AppError {
	c := *e
	if e.Context != nil {
		c.Context = make(map[string]interface{}, len(e.Context))
		for k, v := range e.Context {
			c.Context[k] = v
		}
	}
	return &c
}

// Log logs the error with its context as fields
func (e *AppError) Log(logger logrus.FieldLogger) {
	fields := logrus.Fields{
		"error_type": e.Type,
		"error_code": e.Code,
	}
	for k, v := range e.Context {
		fields[k] = v
	}
	entry := logger.WithFields(fields)
	if e.InternalErr != nil {
		entry = entry.WithError(e.InternalErr)
	}

	switch e.Type {
	case ErrTypeValidation, ErrTypeNotFound:
		entry.Info(e.Message)
	case ErrTypeAcquisition, ErrTypeEffect:
		entry.Warn(e.Message)
	default:
		entry.Error(e.Message)
	}
}

// New creates a new AppError
func New(errType ErrorType, code, message string) *AppError {
	return &AppError{
		Type:    errType,
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an existing error with additional context
func Wrap(err error, errType ErrorType, code, message string) *AppError {
	return &AppError{
		Type:        errType,
		Code:        code,
		Message:     message,
		InternalErr: err,
	}
}

// As extracts an AppError from an error chain
func As(err error) (*AppError, bool) {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// IsType reports whether err carries an AppError of the given type
func IsType(err error, errType ErrorType) bool {
	appErr, ok := As(err)
	return ok && appErr.Type == errType
}

// HTTPStatus maps an error to the status code the API answers with
func HTTPStatus(err error) int {
	appErr, ok := As(err)
	if !ok {
		return http.StatusInternalServerError
	}

	switch appErr.Type {
	case ErrTypeValidation:
		return http.StatusBadRequest
	case ErrTypeNotFound:
		return http.StatusNotFound
	case ErrTypeAcquisition:
		switch appErr.Code {
		case ErrMalformedImage.Code, ErrUploadTooLarge.Code:
			return http.StatusBadRequest
		case ErrDeviceUnavailable.Code, ErrNoFrame.Code, ErrAcquisitionCancelled.Code:
			return http.StatusServiceUnavailable
		default:
			return http.StatusBadGateway
		}
	default:
		return http.StatusInternalServerError
	}
}

// Predefined errors for common scenarios. Use Wrap or With to attach
// details, they return copies.
var (
	// Acquisition errors
	ErrDeviceUnavailable = New(ErrTypeAcquisition, "DEVICE_UNAVAILABLE", "camera device unavailable").
				WithUserMessage("Cannot access the camera. Make sure it is connected")

	ErrNoFrame = New(ErrTypeAcquisition, "NO_FRAME", "no frame produced").
			WithUserMessage("Failed to take a picture from the camera")

	ErrMalformedImage = New(ErrTypeAcquisition, "MALFORMED_IMAGE", "image data could not be decoded").
				WithUserMessage("The image could not be read. Use a JPEG, PNG or WEBP file")

	ErrUploadTooLarge = New(ErrTypeAcquisition, "UPLOAD_TOO_LARGE", "uploaded image exceeds size limit").
				WithUserMessage("The image is too large")

	ErrRemoteUnreachable = New(ErrTypeAcquisition, "REMOTE_UNREACHABLE", "remote camera unreachable").
				WithUserMessage("Cannot connect to the remote camera. Check the address and that the app is running")

	ErrRemoteStatus = New(ErrTypeAcquisition, "REMOTE_STATUS", "remote camera returned unexpected status").
			WithUserMessage("The remote camera answered with an error")

	ErrAcquisitionCancelled = New(ErrTypeAcquisition, "ACQUISITION_CANCELLED", "acquisition cancelled before an image was produced").
				WithUserMessage("Taking the picture was interrupted. Try again")

	ErrMarkerNotFound = New(ErrTypeAcquisition, "JPEG_MARKER_NOT_FOUND", "no complete JPEG frame in stream chunk").
				WithUserMessage("No frame received from the remote camera. Try again")

	// Effect errors
	ErrEffectFailed = New(ErrTypeEffect, "EFFECT_FAILED", "effect transformation failed")

	// Validation errors
	ErrInvalidSource = New(ErrTypeValidation, "INVALID_SOURCE", "unknown image source").
				WithUserMessage("Source must be camera, upload or remote")

	ErrInvalidHost = New(ErrTypeValidation, "INVALID_HOST", "remote host must be host:port").
			WithUserMessage("Enter the remote camera address as IP:port")

	ErrMissingImage = New(ErrTypeValidation, "MISSING_IMAGE", "no image supplied").
			WithUserMessage("Take a picture or upload a file first")

	ErrInvalidPhotoID = New(ErrTypeValidation, "INVALID_PHOTO_ID", "photo id must be a positive integer")

	// Not found errors
	ErrSessionNotFound = New(ErrTypeNotFound, "SESSION_NOT_FOUND", "session not found").
				WithUserMessage("Your session has expired. Reload to start a new one")

	ErrPhotoNotFound = New(ErrTypeNotFound, "PHOTO_NOT_FOUND", "photo not found")

	ErrGalleryEmpty = New(ErrTypeNotFound, "GALLERY_EMPTY", "gallery is empty")

	// Configuration errors
	ErrInvalidConfig = New(ErrTypeConfig, "INVALID_CONFIG", "invalid configuration")
)

// Join formats several validation problems into one message
func Join(problems []string) string {
	return strings.Join(problems, "; ")
}
