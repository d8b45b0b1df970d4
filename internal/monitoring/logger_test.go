package monitoring

import (
	"bytes"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigureJSON(t *testing.T) {
	prev := Logger
	t.Cleanup(func() { Logger = prev })

	var buf bytes.Buffer
	logger, err := Configure("debug", "json", &buf)
	require.NoError(t, err)
	assert.Equal(t, logrus.DebugLevel, logger.GetLevel())

	Logger.WithField("session_id", "abc").Info("hello")
	assert.Contains(t, buf.String(), `"session_id":"abc"`)
	assert.Contains(t, buf.String(), `"msg":"hello"`)
}

func TestConfigureRejectsUnknownValues(t *testing.T) {
	prev := Logger
	t.Cleanup(func() { Logger = prev })

	_, err := Configure("loud", "text", nil)
	assert.Error(t, err)
	_, err = Configure("info", "xml", nil)
	assert.Error(t, err)
	assert.Same(t, prev, Logger)
}

func TestSetLoggerNilMutes(t *testing.T) {
	prev := Logger
	t.Cleanup(func() { Logger = prev })

	SetLogger(nil)
	require.NotNil(t, Logger)
	Logger.Info("nobody hears this")
}
