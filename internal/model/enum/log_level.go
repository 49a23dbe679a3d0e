package enum

// LogLevel is the operator-visible severity persisted with audit logs.
type LogLevel string

const (
	LogLevelInfo      LogLevel = "INFO"
	LogLevelSuccess   LogLevel = "SUCCESS"
	LogLevelError     LogLevel = "ERROR"
	LogLevelEmergency LogLevel = "EMERGENCY"
)

func (l LogLevel) IsAvailable() bool {
	switch l {
	case LogLevelInfo, LogLevelSuccess, LogLevelError, LogLevelEmergency:
		return true
	default:
		return false
	}
}
