package domain

import "errors"

// Run-fatal error classes. Adapters wrap the underlying cause with one of
// these so the pipeline and its observers can classify failures via errors.Is.
var (
	ErrSecretUnavailable       = errors.New("secret unavailable")
	ErrAvailabilityCheckFailed = errors.New("weather api availability check failed")
	ErrRequestFailed           = errors.New("weather api request failed")
	ErrMalformedResponse       = errors.New("malformed weather api response")
	ErrTransform               = errors.New("transform observation")
	ErrLoad                    = errors.New("load object")
)

// ErrorKind returns a short label for the error class of err, or "unknown".
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrSecretUnavailable):
		return "secret_unavailable"
	case errors.Is(err, ErrAvailabilityCheckFailed):
		return "availability_check_failed"
	case errors.Is(err, ErrRequestFailed):
		return "request_failed"
	case errors.Is(err, ErrMalformedResponse):
		return "malformed_response"
	case errors.Is(err, ErrTransform):
		return "transform_error"
	case errors.Is(err, ErrLoad):
		return "load_error"
	default:
		return "unknown"
	}
}
