package gateway

import (
	"errors"
	"fmt"
)

var (
	ErrAdminPhoneRequired = errors.New("admin phone required to create group")
	ErrMalformedResponse  = errors.New("malformed gateway response")
)

// Error is a non-2xx answer from the gateway.
type Error struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *Error) Error() string {
	return fmt.Sprintf("gateway %s: status %d: %s", e.Op, e.StatusCode, e.Body)
}

// IsRetryable reports whether the failure is worth another attempt on a later tick.
func IsRetryable(err error) bool {
	var gwErr *Error
	if errors.As(err, &gwErr) {
		return gwErr.StatusCode >= 500 || gwErr.StatusCode == 429
	}
	return !errors.Is(err, ErrAdminPhoneRequired)
}
