package classifier

import "errors"

var (
	// ErrModelUnavailable means the models could not be loaded. It is a
	// server-side readiness problem; the next call retries the load.
	ErrModelUnavailable = errors.New("model unavailable")
	// ErrPredictionFailed covers inference errors, malformed model output
	// and recovered panics.
	ErrPredictionFailed = errors.New("prediction failed")
)
