package session

import "github.com/pkg/errors"

var (
	// ErrSourceUnavailable is returned when frame source can't be opened or read.
	// Session is aborted before any observation is produced.
	ErrSourceUnavailable = errors.New("frame source unavailable")
	// ErrInvalidConfiguration is returned for out-of-range tuning values. Session never starts.
	ErrInvalidConfiguration = errors.New("invalid configuration")
)

func invalidConfiguration(format string, args ...interface{}) error {
	return errors.Wrapf(ErrInvalidConfiguration, format, args...)
}
