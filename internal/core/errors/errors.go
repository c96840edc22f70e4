package errors

const (
	HttpInternalError      = "internal_error"
	HttpInvalidJsonError   = "invalid_json"
	HttpInvalidWindowError = "invalid_window"
	HttpNoDataError        = "no_data"
	HttpSyncStartError     = "sync_start_failed"
)

// ErrorResponse is the error response body for the vitals API.
type ErrorResponse struct {
	ErrorType string      `json:"error_type"`
	Message   string      `json:"message"`
	Details   interface{} `json:"details,omitempty"`
}
