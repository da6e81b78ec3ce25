package errors

import "fmt"

var (
	ErrWorkerPanic         = fmt.Errorf("worker panic")
	ErrNoTransport         = fmt.Errorf("no active transport")
	ErrMalformedFrame      = fmt.Errorf("malformed wire frame")
	ErrUnknownEvent        = fmt.Errorf("unknown wire event")
	ErrRetriesExhausted    = fmt.Errorf("delivery retries exhausted")
	ErrMessageMissing      = fmt.Errorf("message not found")
	ErrInvalidSessionToken = fmt.Errorf("invalid session token")
)
