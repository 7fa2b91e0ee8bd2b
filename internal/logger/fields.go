package logger

// Fields is a set of structured log fields.
type Fields map[string]interface{}

// Tracing fields, propagated through the context.
const (
	FieldRequestID = "request_id"
	FieldSessionID = "session_id"
	FieldComponent = "component"
)

// Domain fields.
const (
	FieldTemplate = "template"
	FieldFont     = "font"
	FieldWidth    = "width"
	FieldHeight   = "height"
	FieldHistory  = "history_len"
)

// Metric fields, attached through the Entry API.
const (
	FieldDurationMs = "duration_ms"
	FieldCount      = "count"
	FieldSize       = "size"
	FieldStatus     = "status"
)
