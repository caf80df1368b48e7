package kiteconnect

import "fmt"

// Kite API error types, carried verbatim from the error_type field of
// error responses. TokenException means the access token is expired or
// revoked and the caller must re-authenticate.
const (
	TokenException   = "TokenException"
	InputException   = "InputException"
	NetworkException = "NetworkException"
	GeneralException = "GeneralException"
	OrderException   = "OrderException"
)

// Error is a structured Kite API error.
type Error struct {
	Type    string // one of the *Exception constants
	Message string
	Code    int // HTTP status code, 0 for transport-level failures
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// IsTokenError reports whether err is a Kite TokenException.
func IsTokenError(err error) bool {
	ke, ok := err.(*Error)
	return ok && ke.Type == TokenException
}

// IsInputError reports whether err is a Kite InputException
// (bad order parameters, rejected order, etc).
func IsInputError(err error) bool {
	ke, ok := err.(*Error)
	return ok && ke.Type == InputException
}

// IsNetworkError reports whether err is a transport failure reaching Kite.
func IsNetworkError(err error) bool {
	ke, ok := err.(*Error)
	return ok && ke.Type == NetworkException
}
