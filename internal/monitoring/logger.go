package monitoring

import (
	"io"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Logger is the package-level diagnostic logger. It defaults to the standard logrus
// logger but may be replaced by SetLogger. Tests or production code can redirect or mute it.
var Logger logrus.FieldLogger = logrus.StandardLogger()

// SetLogger replaces the package logger. Passing nil will set a no-op logger.
func SetLogger(l logrus.FieldLogger) {
	if l == nil {
		muted := logrus.New()
		muted.SetOutput(io.Discard)
		Logger = muted
		return
	}
	Logger = l
}

// Configure builds logger with given level ("debug", "info", ...) and format ("text" or "json")
// and installs it as package logger.
func Configure(level, format string, out io.Writer) (*logrus.Logger, error) {
	lvl, err := logrus.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil {
		return nil, errors.Wrapf(err, "can't parse log level %q", level)
	}
	logger := logrus.New()
	logger.SetLevel(lvl)
	if out != nil {
		logger.SetOutput(out)
	}
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", "text":
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	case "json":
		logger.SetFormatter(&logrus.JSONFormatter{})
	default:
		return nil, errors.Errorf("unknown log format %q", format)
	}
	Logger = logger
	return logger, nil
}
