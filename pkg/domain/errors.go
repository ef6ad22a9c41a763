package domain

// Error codes carried by ErrorResponse.
const (
	CodeBadRequest    = "BAD_REQUEST"
	CodeUnknownLayer  = "UNKNOWN_LAYER"
	CodeUnknownModel  = "UNKNOWN_MODEL"
	CodeNotAssociated = "NOT_ASSOCIATED"
	CodeUnavailable   = "UNAVAILABLE"
	CodeInternal      = "INTERNAL"
)

// ErrorResponse defines the standard JSON error model returned by the admin API.
// TraceID should carry the current OpenTelemetry trace identifier when available to aid diagnostics.
type ErrorResponse struct {
	Code    string `json:"code"`               // Machine-readable error code (e.g., UNKNOWN_LAYER)
	Message string `json:"message"`            // Human-readable message (safe for logs)
	TraceID string `json:"trace_id,omitempty"` // Optional trace/correlation ID
}
