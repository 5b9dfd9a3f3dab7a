package internalerr

import "errors"

// Sentinel errors for common cases
var (
	ErrNotFound         = errors.New("not found")
	ErrInvalidInput     = errors.New("invalid input")
	ErrStoreUnavailable = errors.New("store unavailable")
	ErrInvalidConfig    = errors.New("invalid configuration")

	// ErrUnknownSymptom is the validation error raised at the session
	// boundary for identifiers outside the rule base vocabulary.
	ErrUnknownSymptom = errors.New("unknown symptom")

	// ErrInvalidRuleBase reports a rule base that failed validation.
	ErrInvalidRuleBase = errors.New("invalid rule base")

	// ErrInferenceOverrun is returned when forward chaining exceeds its pass
	// bound or a proof exceeds its depth bound. The run is unusable.
	ErrInferenceOverrun = errors.New("inference overrun")
)
