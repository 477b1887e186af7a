package grid

import (
	"strings"

	"github.com/JonMunkholm/factoryinv/internal/inventory"
)

// Message keys for reconciled batch errors.
const (
	MsgException           = "msg.error.Exception"
	MsgPrimaryKeyDuplicate = "msg.error.primaryKeyDuplicated"
	MsgFieldWrongSize      = "msg.error.fieldWrongSize"
	MsgRowNotFound         = "msg.warning.rowNotFound"
)

// ValidationError is a batch failure attributed to one edited row.
type ValidationError struct {
	Code       string          `json:"code"`
	UUID       string          `json:"uuid"`
	Level      inventory.Level `json:"level"`
	MessageKey string          `json:"messageKey"`
	Detail     string          `json:"detail"`
}

// knownCodes maps server error codes to message keys. Anything not listed
// falls back to MsgException.
var knownCodes = map[string]string{
	inventory.CodeException:       MsgException,
	inventory.CodeUniqueViolation: MsgPrimaryKeyDuplicate,
	inventory.CodeStringTooLong:   MsgFieldWrongSize,
	inventory.CodeNoData:          MsgRowNotFound,
}

// MessageKeyFor resolves the message key for a server error code.
func MessageKeyFor(code string) string {
	if key, ok := knownCodes[code]; ok {
		return key
	}
	return MsgException
}

// Reconcile maps a raw error list onto the rows that were submitted.
//
// Only levels E and W survive. Each error is matched to the first overlay
// row with the same uuid; its identifying fields become the detail. An
// error with no matching row still produces an entry, with empty detail
// values. Input order is kept and nothing is deduplicated.
func Reconcile(raw []inventory.CommitError, overlay []inventory.Row) []ValidationError {
	out := make([]ValidationError, 0, len(raw))
	for _, e := range raw {
		if e.Level != inventory.LevelError && e.Level != inventory.LevelWarning {
			continue
		}
		row, _ := inventory.FindRow(overlay, e.UUID)
		out = append(out, ValidationError{
			Code:       e.Code,
			UUID:       e.UUID,
			Level:      e.Level,
			MessageKey: MessageKeyFor(e.Code),
			Detail:     detailFor(row),
		})
	}
	return out
}

func detailFor(row inventory.Row) string {
	parts := make([]string, len(inventory.DetailFields))
	for i, f := range inventory.DetailFields {
		parts[i] = row.Get(f)
	}
	return strings.Join(parts, ", ")
}

// errorSet indexes reconciled errors by row identifier.
type errorSet map[string]inventory.Level

func newErrorSet(errs []ValidationError) errorSet {
	set := make(errorSet, len(errs))
	for _, e := range errs {
		// E outranks W when a row has both.
		if cur, ok := set[e.UUID]; ok && cur == inventory.LevelError {
			continue
		}
		set[e.UUID] = e.Level
	}
	return set
}

func (s errorSet) has(id string) bool {
	_, ok := s[id]
	return ok
}
