package dto

import "net/http"

// Error code constants organized by category
// Format: ERR_<CATEGORY>_<DESCRIPTION>

// General error codes
const (
	ErrCodeUnknown  = "ERR_UNKNOWN"
	ErrCodeInternal = "ERR_INTERNAL"
	// ErrCodeStorage is used when persisted profile data cannot be read or written
	ErrCodeStorage = "ERR_STORAGE"
)

// Validation error codes
const (
	ErrCodeValidation         = "ERR_VALIDATION"
	ErrCodeValidationRequired = "ERR_VALIDATION_REQUIRED"
	ErrCodeValidationFormat   = "ERR_VALIDATION_FORMAT"
	ErrCodeValidationRange    = "ERR_VALIDATION_RANGE"
)

// Authentication error codes
const (
	// ErrCodeUnauthorized is used when the profile token is missing or invalid
	ErrCodeUnauthorized = "ERR_UNAUTHORIZED"
	ErrCodeTokenExpired = "ERR_TOKEN_EXPIRED"
	ErrCodeTokenInvalid = "ERR_TOKEN_INVALID"
	ErrCodeTokenRevoked = "ERR_TOKEN_REVOKED"
	// ErrCodeAuthRequired is used when an operation needs a logged-in customer session
	ErrCodeAuthRequired = "ERR_AUTH_REQUIRED"
	// ErrCodeAuthFailed is used when the platform rejects customer credentials
	ErrCodeAuthFailed = "ERR_AUTH_FAILED"
)

// Resource error codes
const (
	ErrCodeNotFound = "ERR_NOT_FOUND"
	ErrCodeConflict = "ERR_CONFLICT"
	// ErrCodeLoginSuperseded is used when a newer login or logout won the race
	ErrCodeLoginSuperseded = "ERR_LOGIN_SUPERSEDED"
)

// Commerce platform error codes
const (
	ErrCodePlatformUnreachable = "ERR_PLATFORM_UNREACHABLE"
	ErrCodePlatformError       = "ERR_PLATFORM_ERROR"
	ErrCodePlatformTimeout     = "ERR_PLATFORM_TIMEOUT"
	ErrCodePlatformResponse    = "ERR_PLATFORM_INVALID_RESPONSE"
	ErrCodePlatformUnavailable = "ERR_PLATFORM_NOT_CONFIGURED"
)

// Input error codes
const (
	ErrCodeBadRequest      = "ERR_BAD_REQUEST"
	ErrCodeRequestTooLarge = "ERR_REQUEST_TOO_LARGE"
	ErrCodeRateLimited     = "ERR_RATE_LIMITED"
)

// ErrorCodeHTTPStatus maps error codes to HTTP status codes
var ErrorCodeHTTPStatus = map[string]int{
	ErrCodeUnknown:  http.StatusInternalServerError,
	ErrCodeInternal: http.StatusInternalServerError,
	ErrCodeStorage:  http.StatusInternalServerError,

	ErrCodeValidation:         http.StatusBadRequest,
	ErrCodeValidationRequired: http.StatusBadRequest,
	ErrCodeValidationFormat:   http.StatusBadRequest,
	ErrCodeValidationRange:    http.StatusBadRequest,

	ErrCodeUnauthorized: http.StatusUnauthorized,
	ErrCodeTokenExpired: http.StatusUnauthorized,
	ErrCodeTokenInvalid: http.StatusUnauthorized,
	ErrCodeTokenRevoked: http.StatusUnauthorized,
	ErrCodeAuthRequired: http.StatusUnauthorized,
	ErrCodeAuthFailed:   http.StatusUnauthorized,

	ErrCodeNotFound:        http.StatusNotFound,
	ErrCodeConflict:        http.StatusConflict,
	ErrCodeLoginSuperseded: http.StatusConflict,

	// Upstream failures -> 502/504
	ErrCodePlatformUnreachable: http.StatusBadGateway,
	ErrCodePlatformError:       http.StatusBadGateway,
	ErrCodePlatformResponse:    http.StatusBadGateway,
	ErrCodePlatformTimeout:     http.StatusGatewayTimeout,
	ErrCodePlatformUnavailable: http.StatusServiceUnavailable,

	ErrCodeBadRequest:      http.StatusBadRequest,
	ErrCodeRequestTooLarge: http.StatusRequestEntityTooLarge,
	ErrCodeRateLimited:     http.StatusTooManyRequests,
}

// GetHTTPStatus returns the HTTP status code for an error code
// Returns 500 Internal Server Error if the error code is not found
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// DomainErrorCodeMapping maps domain error codes to API error codes
var DomainErrorCodeMapping = map[string]string{
	"VALIDATION_ERROR":   ErrCodeValidation,
	"INVALID_INPUT":      ErrCodeBadRequest,
	"NOT_FOUND":          ErrCodeNotFound,
	"PROFILE_NOT_FOUND":  ErrCodeNotFound,
	"AUTH_REQUIRED":      ErrCodeAuthRequired,
	"AUTH_FAILED":        ErrCodeAuthFailed,
	"UNAUTHORIZED":       ErrCodeUnauthorized,
	"LOGIN_SUPERSEDED":   ErrCodeLoginSuperseded,
	"INVALID_STATE":      ErrCodeConflict,
	"STORAGE_CORRUPTION": ErrCodeStorage,
	"NETWORK_ERROR":      ErrCodePlatformUnreachable,
	"API_ERROR":          ErrCodePlatformError,
	"TIMEOUT":            ErrCodePlatformTimeout,
	"INVALID_RESPONSE":   ErrCodePlatformResponse,
}

// NormalizeErrorCode converts a domain error code to the API format
// If the code is already in the API format or unknown, returns it as-is
func NormalizeErrorCode(code string) string {
	if newCode, ok := DomainErrorCodeMapping[code]; ok {
		return newCode
	}
	return code
}
