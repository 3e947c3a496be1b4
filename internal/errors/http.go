package errors

import (
	"encoding/json"
	"net/http"
)

// HTTPErrorResponse wraps an APIError for HTTP JSON responses.
type HTTPErrorResponse struct {
	Error APIError `json:"error"`
}

// WriteHTTPError writes an APIError as an HTTP JSON response.
func WriteHTTPError(w http.ResponseWriter, err *APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(err.Code)
	json.NewEncoder(w).Encode(HTTPErrorResponse{Error: *err})
}
