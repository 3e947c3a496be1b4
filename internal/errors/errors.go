// Package errors defines the API error values returned by a2a-authd.
// Every error includes a Hint for developer guidance and a DocsURL for reference.
package errors

import "fmt"

// APIError is the base error type for all a2a-authd errors.
// It includes educational Hint and DocsURL fields for developer guidance.
type APIError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Hint    string `json:"hint,omitempty"`
	DocsURL string `json:"docs_url,omitempty"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Hint != "" {
		return fmt.Sprintf("[%d] %s (hint: %s)", e.Code, e.Message, e.Hint)
	}
	return fmt.Sprintf("[%d] %s", e.Code, e.Message)
}

// Predefined errors — each includes an educational hint and documentation URL.
var (
	ErrAuthRequired   = &APIError{Code: 401, Message: "Authentication required", Hint: "Set Authorization header: 'Bearer <token>'", DocsURL: "https://docs.agentid.dev/authd/auth"}
	ErrAuthInvalid    = &APIError{Code: 401, Message: "Invalid authentication token", Hint: "Check token expiry and issuer", DocsURL: "https://docs.agentid.dev/authd/auth"}
	ErrForbidden      = &APIError{Code: 403, Message: "Access denied", Hint: "The authenticated credential may not act on this record", DocsURL: "https://docs.agentid.dev/authd/permissions"}
	ErrRateLimited    = &APIError{Code: 429, Message: "Rate limit exceeded", Hint: "Wait before retrying. See the X-RateLimit-Reset and Retry-After headers", DocsURL: "https://docs.agentid.dev/authd/rate-limit"}
	ErrInvalidRequest = &APIError{Code: 400, Message: "Invalid request format", Hint: "Check required fields against the API reference", DocsURL: "https://docs.agentid.dev/authd/api"}
	ErrNotFound       = &APIError{Code: 404, Message: "Authorization not found", Hint: "Check the authorization id", DocsURL: "https://docs.agentid.dev/authd/authorizations"}
	ErrConflict       = &APIError{Code: 409, Message: "Authorization already resolved", Hint: "Only pending authorization requests can be approved or denied", DocsURL: "https://docs.agentid.dev/authd/authorizations"}
	// ErrDatabase is deliberately generic: infrastructure detail must not
	// leak to callers. Monitoring can still alert on it, since a clean
	// authorization deny never carries this message.
	ErrDatabase           = &APIError{Code: 500, Message: "Database error", Hint: "Retry the request; contact the operator if the error persists", DocsURL: "https://docs.agentid.dev/authd/operations"}
	ErrGlobalLimitReached = &APIError{Code: 503, Message: "Service capacity reached", Hint: "The service is at maximum request volume. Try again shortly", DocsURL: "https://docs.agentid.dev/authd/limits"}
)
