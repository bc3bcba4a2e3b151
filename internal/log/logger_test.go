package log

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatterPattern(t *testing.T) {
	f := &formatter{pattern: "%time [%level] %field %msg", time: "15:04:05"}
	entry := &logrus.Entry{
		Time:    time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
		Level:   logrus.WarnLevel,
		Message: "unknown object",
		Data:    logrus.Fields{"type": "0x09", "offset": 128},
	}

	out, err := f.Format(entry)
	require.NoError(t, err)
	assert.Equal(t, "03:04:05 [warning] offset=128,type=0x09 unknown object", string(out))
}

func TestFormatterCallerWithoutReport(t *testing.T) {
	f := &formatter{pattern: "%caller %func", time: DefaultTime}
	out, err := f.Format(&logrus.Entry{Data: logrus.Fields{}})
	require.NoError(t, err)
	assert.Equal(t, "unknown unknown", string(out))
}

func TestFormatterGoroutine(t *testing.T) {
	f := &formatter{pattern: "%goroutine", time: DefaultTime}
	out, err := f.Format(&logrus.Entry{Data: logrus.Fields{}})
	require.NoError(t, err)
	assert.NotEmpty(t, string(out))
	assert.NotEqual(t, "unknown", string(out))
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func TestMultiWriterContinuesAfterFailure(t *testing.T) {
	var a, b bytes.Buffer
	w := NewMultiWriter().Add(&a).Add(failingWriter{}).Add(&b)

	n, err := w.Write([]byte("line\n"))
	assert.Equal(t, 5, n)
	assert.EqualError(t, err, "disk full")
	assert.Equal(t, "line\n", a.String())
	assert.Equal(t, "line\n", b.String())
}

func TestFileAppender(t *testing.T) {
	path := filepath.Join(t.TempDir(), "warts.log")
	w := NewMultiWriter().AddFileAppender(FileAppenderOpt{Filename: path, MaxSize: 1})

	_, err := w.Write([]byte("hello\n"))
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "hello\n", string(data))
}

func TestNewLevels(t *testing.T) {
	l, err := New(&LoggerConfig{Level: "debug"})
	require.NoError(t, err)
	assert.True(t, l.IsDebugEnabled())
	assert.False(t, l.IsTraceEnabled())

	l, err = New(nil)
	require.NoError(t, err)
	assert.True(t, l.IsInfoEnabled())
	assert.False(t, l.IsDebugEnabled())

	_, err = New(&LoggerConfig{Level: "loud"})
	assert.ErrorContains(t, err, "invalid log level")
}

func TestWithFieldsKeepsLevel(t *testing.T) {
	l, err := New(&LoggerConfig{Level: "trace"})
	require.NoError(t, err)
	child := l.WithField("file", "a.warts").WithError(errors.New("x"))
	assert.True(t, child.IsTraceEnabled())
}

func TestGetLoggerBeforeInit(t *testing.T) {
	assert.NotNil(t, GetLogger())
	assert.NotPanics(t, func() { GetLogger().Warnf("dropped %d", 1) })
}
