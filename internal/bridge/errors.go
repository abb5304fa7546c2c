package bridge

import "errors"

var (
	// ErrInvalidKind reports an event kind outside the defined set.
	ErrInvalidKind = errors.New("bridge: invalid event kind")

	// ErrNilHandler reports a Subscribe call without a handler.
	ErrNilHandler = errors.New("bridge: nil handler")

	// ErrSourceUnavailable reports that the session source could not be
	// reached during bridge construction.
	ErrSourceUnavailable = errors.New("bridge: session source unavailable")

	// ErrTornDown reports a call on a bridge after Shutdown.
	ErrTornDown = errors.New("bridge: torn down")
)
