package core

import "errors"

// Error codes for domain errors.
const (
	ErrCodeInvalidName        = "invalid_name"
	ErrCodeInvalidCode        = "invalid_code"
	ErrCodeSessionNotFound    = "session_not_found"
	ErrCodeNotInSession       = "not_in_session"
	ErrCodeBadRequest         = "bad_request"
	ErrCodeUnsupportedVersion = "unsupported_version"
	ErrCodeRateLimited        = "rate_limited"
	ErrCodeInternal           = "internal_error"
)

var (
	ErrSessionNotFound    = errors.New("session not found")
	ErrSessionExists      = errors.New("session already exists")
	ErrNotInSession       = errors.New("not in session")
	ErrInvalidName        = errors.New("invalid display name")
	ErrInvalidCode        = errors.New("invalid session code")
	ErrMissingUserID      = errors.New("user id is required")
	ErrConnectionNotFound = errors.New("connection not found")
)

// CoreError wraps a code and human-readable message.
type CoreError struct {
	Code    string
	Message string
}

func (e *CoreError) Error() string {
	return e.Message
}

func coreError(code, msg string) *CoreError {
	return &CoreError{Code: code, Message: msg}
}

// ToCoreError maps an error returned by the coordinator onto the advisory
// error taxonomy sent to clients. Unknown errors become internal_error.
func ToCoreError(err error) *CoreError {
	var ce *CoreError
	switch {
	case err == nil:
		return nil
	case errors.As(err, &ce):
		return ce
	case errors.Is(err, ErrInvalidName):
		return coreError(ErrCodeInvalidName, "display name must be 1-32 characters")
	case errors.Is(err, ErrInvalidCode):
		return coreError(ErrCodeInvalidCode, "session code must be 1-16 letters or digits")
	case errors.Is(err, ErrMissingUserID):
		return coreError(ErrCodeBadRequest, err.Error())
	case errors.Is(err, ErrSessionNotFound):
		return coreError(ErrCodeSessionNotFound, err.Error())
	case errors.Is(err, ErrNotInSession):
		return coreError(ErrCodeNotInSession, err.Error())
	default:
		return coreError(ErrCodeInternal, "internal error")
	}
}
