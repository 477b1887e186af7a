package inventory

import "fmt"

// Level is the severity attached to a per-row commit failure.
type Level string

const (
	LevelError   Level = "E"
	LevelWarning Level = "W"
	LevelInfo    Level = "I"
)

// Error codes reported by the batch endpoints. Database failures carry
// their PostgreSQL SQLSTATE; anything else is reported as CodeException.
const (
	CodeException         = "0"
	CodeNoData            = "02000"
	CodeStringTooLong     = "22001"
	CodeInvalidDatetime   = "22007"
	CodeNotNullViolation  = "23502"
	CodeUniqueViolation   = "23505"
	CodeInvalidTextFormat = "22P02"
)

// CommitError is one entry of a failed batch's errorList.
type CommitError struct {
	Code  string `json:"code"`
	UUID  string `json:"uuid"`
	Level Level  `json:"level"`
}

// BatchError reports a rejected batch update or create. Nothing from the
// batch was persisted.
type BatchError struct {
	Errors []CommitError `json:"errorList"`
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("batch rejected: %d row error(s)", len(e.Errors))
}
