package core

// error_messages.go maps technical errors to messages that can be shown to
// whoever is editing the inventory, each with a code support can look up.
//
// Codes by category:
//
//	BAT001  batch rejected        some rows failed; see the error list
//	BAT002  submit in flight      a previous save has not finished
//	SES001  session closed        edit mode is not on
//	SES002  row not editable      the row is not part of this edit
//	SES003  session not found     the grid session expired
//	IMP001  unsupported format    only .xlsx and .csv are accepted
//	IMP002  no header             the first row must hold column labels
//	IMP003  no rows               nothing to import below the header
//	IMP004  too many imports      wait and retry
//	IMP005  unreadable file       the workbook or CSV is corrupt
//	IMP006  file too large        the upload exceeds the size limit
//	IMP007  no file               the form had no file part
//	DB001   connection refused
//	DB002   connection reset
//	DB003   timeout
//	DB004   deadlock
//	REQ001  request cancelled
//	REQ002  request timed out
//	REQ003  malformed request
//	RATE001 rate limited
//	AUTH001 missing API key
//	AUTH002 invalid API key
//	ERR000  anything else; check the logs
//
// Patterns are matched case-insensitively with strings.Contains and the
// first match wins, so specific patterns come before general ones.

import "strings"

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string `json:"message"`
	Action  string `json:"action"`
	Code    string `json:"code"`
}

type errorPattern struct {
	pattern string
	msg     UserMessage
}

var errorPatterns = []errorPattern{
	// Batch and session
	{"batch rejected", UserMessage{"Some rows could not be saved", "Correct the highlighted rows and save again", "BAT001"}},
	{"already in flight", UserMessage{"A save is already in progress", "Wait for the current save to finish", "BAT002"}},
	{"edit session is not open", UserMessage{"Editing is not turned on", "Start editing before changing cells", "SES001"}},
	{"row is not editable", UserMessage{"This row cannot be edited", "Reload the table and try again", "SES002"}},
	{"session not found", UserMessage{"The table session has expired", "Reload the page to start a new session", "SES003"}},

	// Import
	{"unsupported spreadsheet format", UserMessage{"Unsupported file format", "Upload an .xlsx or .csv file", "IMP001"}},
	{"no header row", UserMessage{"The file has no header row", "Put the column labels in the first row", "IMP002"}},
	{"no rows to import", UserMessage{"The file contains no data rows", "Add rows below the header and upload again", "IMP003"}},
	{"too many imports", UserMessage{"The system is busy with other imports", "Please wait a moment and try again", "IMP004"}},
	{"open workbook", UserMessage{"The workbook could not be read", "Save the file again from Excel and retry", "IMP005"}},
	{"parse csv", UserMessage{"The CSV file could not be read", "Check the file is comma-separated UTF-8", "IMP005"}},
	{"request body too large", UserMessage{"The file is too large", "Split the file into smaller parts", "IMP006"}},
	{"file too large", UserMessage{"The file is too large", "Split the file into smaller parts", "IMP006"}},
	{"no file provided", UserMessage{"No file was selected", "Choose a spreadsheet to import", "IMP007"}},

	// Database
	{"connection refused", UserMessage{"Unable to connect to database", "Please try again in a few moments", "DB001"}},
	{"connection reset", UserMessage{"Database connection was interrupted", "Please try again", "DB002"}},
	{"timeout", UserMessage{"Operation timed out", "Please try again later", "DB003"}},
	{"deadlock", UserMessage{"Database was busy with conflicting operations", "Please try again", "DB004"}},

	// Request
	{"context canceled", UserMessage{"Request was cancelled", "Please try again", "REQ001"}},
	{"context deadline exceeded", UserMessage{"Request timed out", "Try a smaller batch or check your connection", "REQ002"}},
	{"invalid request", UserMessage{"The request could not be understood", "Reload the page and try again", "REQ003"}},

	{"rate limit", UserMessage{"Too many requests", "Please wait a moment before trying again", "RATE001"}},
	{"missing api key", UserMessage{"Authentication required", "Send an X-API-Key header", "AUTH001"}},
	{"invalid api key", UserMessage{"The API key was not accepted", "Check the configured API key", "AUTH002"}},
}

var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message.
// It returns the ERR000 fallback when no pattern matches.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}
	return defaultMessage
}

// IsUserFacing reports whether err matches a known pattern.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}
