package constants

// Table names
const (
	TABLE_CALLS         = "calls"
	TABLE_CALL_SESSIONS = "call_sessions"
	TABLE_TRANSCRIPTS   = "transcripts"
	TABLE_TASKS         = "tasks"
	TABLE_ESCALATIONS   = "escalations"
	TABLE_NOTIFICATIONS = "notifications"
	TABLE_CLINIC_INFO   = "clinic_info"
)

// Assignment roles for task routing
const (
	ROLE_STAFF  = "staff"
	ROLE_DOCTOR = "doctor"
)
