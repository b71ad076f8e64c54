package logging

const (
	// FieldComponent names the subsystem emitting the log line.
	FieldComponent = "component"
	// FieldItemID is the Media Record id the log line concerns.
	FieldItemID = "item_id"
	// FieldAction is the pipeline action reached for an item (new_item, upgraded_item, ...).
	FieldAction = "action"
	// FieldWebhook names the Discord webhook target involved.
	FieldWebhook = "webhook"
	// FieldProvider names the metadata provider involved.
	FieldProvider = "provider"
	// FieldRequestID is the per-request correlation identifier.
	FieldRequestID = "request_id"
	// FieldSyncType identifies which reconciliation mode is running.
	FieldSyncType = "sync_type"
	// FieldEventType categorizes warning/error logs for filtering.
	FieldEventType = "event_type"
	// FieldErrorHint carries an operator-facing hint about how to respond to a failure.
	FieldErrorHint = "error_hint"
)
