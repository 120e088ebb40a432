package logging

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldSessionID identifies the practice session a record belongs to.
	FieldSessionID = "session_id"
	// FieldQuestionIndex is the zero-based index of the active question.
	FieldQuestionIndex = "question_index"
	// FieldAttempt is the 1-based attempt number for the active question.
	FieldAttempt = "attempt"
	// FieldCorrelationID is the standardized structured logging key for request correlation identifiers.
	FieldCorrelationID = "correlation_id"
	// FieldEventType classifies a record for filtering (e.g. "frame_rejected").
	FieldEventType = "event_type"
	// FieldErrorHint tells the reader what to do next.
	FieldErrorHint = "error_hint"
	// FieldImpact is the standardized key for user-facing consequence of a warning.
	FieldImpact = "impact"
	// FieldAlert flags warnings or anomalies that should stand out in structured logs.
	FieldAlert = "alert"
	// FieldState carries an orchestrator state name.
	FieldState = "state"
	// FieldReason carries why a recording stopped.
	FieldReason = "reason"
)
