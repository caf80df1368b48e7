package trade

// ValidationError marks an order request rejected before any brokerage
// call (malformed or contradictory fields).
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

// AuthError marks a request refused for want of a usable session. The
// message tells the caller how to re-authenticate.
type AuthError struct {
	Msg string
}

func (e *AuthError) Error() string { return e.Msg }

// IOError marks a local persistence failure (session or log file
// unwritable). Logged and surfaced, never fatal to the process.
type IOError struct {
	Msg string
	Err error
}

func (e *IOError) Error() string { return e.Msg + ": " + e.Err.Error() }
func (e *IOError) Unwrap() error { return e.Err }

// IsValidationError reports whether err is a pre-brokerage rejection.
func IsValidationError(err error) bool {
	_, ok := err.(*ValidationError)
	return ok
}

// IsAuthError reports whether err is an authentication failure.
func IsAuthError(err error) bool {
	_, ok := err.(*AuthError)
	return ok
}
