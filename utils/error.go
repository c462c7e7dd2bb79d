package utils

import "errors"

var ErrorRecordNotFound = errors.New("record not found")

// Pipeline / agent loop error taxonomy. Errors local to one tool call or
// one line item are carried as result payloads, never as these sentinels;
// only whole-operation failures surface through them.
var (
	ErrorExtractionFailed     = errors.New("extraction failed")
	ErrorValidationFailed     = errors.New("validation failed")
	ErrorModelUnavailable     = errors.New("model unavailable")
	ErrorTurnBudgetExceeded   = errors.New("turn budget exceeded")
	ErrorFinalizationConflict = errors.New("finalization conflict")
	ErrorDraftNotPending      = errors.New("draft is not awaiting confirmation")
)

func ErrorPanic(err error) {
	if err != nil {
		panic(err)
	}
}
