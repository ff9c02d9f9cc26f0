package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const (
	ErrorBadInput         = "RENDER_BAD_INPUT"
	ErrorUnauthentic      = "RENDER_UNAUTHENTIC"
	ErrorAPI              = "RENDER_API_ERROR"
	ErrorTimeout          = "RENDER_TIMEOUT"
	ErrorProtocol         = "RENDER_PROTOCOL_ERROR"
	ErrorRenderFailed     = "RENDER_FAILED"
	ErrorTransportFailure = "RENDER_TRANSPORT_FAILURE"
	ErrorInternal         = "RENDER_INTERNAL_ERROR"
)

// APIError is a well-formed structured rejection returned by the remote service.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	RequestID  string
	Errors     any
}

func (e *APIError) Error() string {
	if e == nil {
		return "core: api error"
	}
	if strings.TrimSpace(e.Code) != "" {
		return fmt.Sprintf("core: api error %d %s: %s (request id %s)", e.StatusCode, e.Code, e.Message, e.RequestID)
	}
	return fmt.Sprintf("core: api error %d: %s (request id %s)", e.StatusCode, e.Message, e.RequestID)
}

type apiErrorEnvelope struct {
	Error *struct {
		Message string `json:"message"`
		Code    string `json:"code"`
		Errors  any    `json:"errors"`
	} `json:"error"`
	RequestID string `json:"requestId"`
}

// DecodeAPIError turns a remote error body into a typed API error. A body that
// lacks the error message or the request id is a protocol error instead.
func DecodeAPIError(statusCode int, body []byte) error {
	var envelope apiErrorEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return ProtocolError(err, "core: decode remote error body", map[string]any{"status_code": statusCode})
	}
	if envelope.Error == nil || strings.TrimSpace(envelope.Error.Message) == "" {
		return ProtocolError(nil, "core: remote error body is missing error.message", map[string]any{"status_code": statusCode})
	}
	if strings.TrimSpace(envelope.RequestID) == "" {
		return ProtocolError(nil, "core: remote error body is missing requestId", map[string]any{"status_code": statusCode})
	}
	apiErr := &APIError{
		StatusCode: statusCode,
		Code:       strings.TrimSpace(envelope.Error.Code),
		Message:    strings.TrimSpace(envelope.Error.Message),
		RequestID:  strings.TrimSpace(envelope.RequestID),
		Errors:     envelope.Error.Errors,
	}
	metadata := map[string]any{"status_code": statusCode}
	if apiErr.Code != "" {
		metadata["api_code"] = apiErr.Code
	}
	return goerrors.Wrap(apiErr, goerrors.CategoryExternal, apiErr.Message).
		WithCode(apiStatus(statusCode)).
		WithTextCode(ErrorAPI).
		WithRequestID(apiErr.RequestID).
		WithMetadata(metadata)
}

func UsageError(source error, message string, metadata map[string]any) error {
	return newError(source, message, goerrors.CategoryBadInput, http.StatusBadRequest, ErrorBadInput, metadata)
}

func UnauthenticError(source error, message string) error {
	return newError(source, message, goerrors.CategoryAuth, http.StatusUnauthorized, ErrorUnauthentic, nil)
}

func TimeoutError(source error, message string, metadata map[string]any) error {
	return newError(source, message, goerrors.CategoryOperation, http.StatusGatewayTimeout, ErrorTimeout, metadata)
}

func ProtocolError(source error, message string, metadata map[string]any) error {
	return newError(source, message, goerrors.CategoryExternal, http.StatusBadGateway, ErrorProtocol, metadata)
}

func RenderFailedError(source error, message string, metadata map[string]any) error {
	return newError(source, message, goerrors.CategoryOperation, http.StatusUnprocessableEntity, ErrorRenderFailed, metadata)
}

func TransportFailure(source error, message string, metadata map[string]any) error {
	return newError(source, message, goerrors.CategoryExternal, http.StatusBadGateway, ErrorTransportFailure, metadata)
}

func InternalError(source error, message string) error {
	return newError(source, message, goerrors.CategoryInternal, http.StatusInternalServerError, ErrorInternal, nil)
}

// FieldError reports an invalid message field. scope names the layer that
// rejected it, such as "command" or "query".
func FieldError(scope, field, message string) error {
	return goerrors.NewValidation(scope+": validation failed", goerrors.FieldError{
		Field:   field,
		Message: message,
	}).
		WithCode(http.StatusBadRequest).
		WithTextCode(ErrorBadInput).
		WithSeverity(goerrors.SeverityError)
}

// MissingDependency reports a handler invoked without the collaborator it
// needs.
func MissingDependency(scope, dependency string) error {
	return InternalError(nil, scope+": "+dependency+" is required")
}

func newError(
	source error,
	message string,
	category goerrors.Category,
	code int,
	textCode string,
	metadata map[string]any,
) error {
	var err *goerrors.Error
	if source == nil {
		err = goerrors.New(message, category)
	} else {
		err = goerrors.Wrap(source, category, message)
		// Wrap keeps the category of an existing rich error.
		err.Category = category
	}
	err = err.WithCode(code).WithTextCode(textCode)
	if len(metadata) > 0 {
		err = err.WithMetadata(metadata)
	}
	return err
}

// TextCode returns the stable text code carried by err, if any.
func TextCode(err error) string {
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return richErr.TextCode
	}
	return ""
}

func IsUsageError(err error) bool { return TextCode(err) == ErrorBadInput }

func IsUnauthentic(err error) bool { return TextCode(err) == ErrorUnauthentic }

func IsTimeout(err error) bool { return TextCode(err) == ErrorTimeout }

func IsProtocolError(err error) bool { return TextCode(err) == ErrorProtocol }

func IsRenderFailed(err error) bool { return TextCode(err) == ErrorRenderFailed }

// AsAPIError extracts the remote rejection carried by err.
func AsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

// MapError normalizes arbitrary errors into the rich error envelope.
func MapError(err error) *goerrors.Error {
	if err == nil {
		return nil
	}
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return ensureErrorEnvelope(richErr)
	}
	mapped := goerrors.MapToError(err, goerrors.DefaultErrorMappers())
	return ensureErrorEnvelope(mapped)
}

func ensureErrorEnvelope(err *goerrors.Error) *goerrors.Error {
	if err == nil {
		return nil
	}
	if err.Code == 0 {
		err.Code = categoryHTTPStatus(err.Category)
	}
	if strings.TrimSpace(err.TextCode) == "" {
		err.TextCode = defaultTextCode(err.Category)
	}
	if err.Category == goerrors.CategoryInternal && strings.TrimSpace(err.Message) == "" {
		err.Message = "An unexpected error occurred"
	}
	return err
}

func defaultTextCode(category goerrors.Category) string {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return ErrorBadInput
	case goerrors.CategoryAuth, goerrors.CategoryAuthz:
		return ErrorUnauthentic
	case goerrors.CategoryExternal:
		return ErrorTransportFailure
	default:
		return ErrorInternal
	}
}

func categoryHTTPStatus(category goerrors.Category) int {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return http.StatusBadRequest
	case goerrors.CategoryAuth:
		return http.StatusUnauthorized
	case goerrors.CategoryAuthz:
		return http.StatusForbidden
	case goerrors.CategoryExternal:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func apiStatus(statusCode int) int {
	if statusCode >= 400 && statusCode <= 599 {
		return statusCode
	}
	return http.StatusBadGateway
}
