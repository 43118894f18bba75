package mailer

import "errors"

var (
	// ErrUnsupportedPort means the configured port selects no known encryption mode.
	// No connection is attempted.
	ErrUnsupportedPort = errors.New("unsupported smtp port (use 465 or 587)")

	// ErrInvalidAddress is returned when a configured sender or recipient cannot be parsed.
	ErrInvalidAddress = errors.New("invalid mail address")
)

// IsConfigError reports whether err comes from configuration rather than delivery.
func IsConfigError(err error) bool {
	return errors.Is(err, ErrUnsupportedPort) || errors.Is(err, ErrInvalidAddress)
}
