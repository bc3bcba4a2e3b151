package log

import (
	"io"
	"sync"

	"github.com/sirupsen/logrus"
)

type Logger interface {
	Print(args ...interface{})
	Printf(format string, args ...interface{})

	Trace(args ...interface{})
	Tracef(format string, args ...interface{})

	Debug(args ...interface{})
	Debugf(format string, args ...interface{})

	Info(args ...interface{})
	Infof(format string, args ...interface{})

	Warn(args ...interface{})
	Warnf(format string, args ...interface{})

	Error(args ...interface{})
	Errorf(format string, args ...interface{})

	Fatal(args ...interface{})
	Fatalf(format string, args ...interface{})

	Panic(args ...interface{})
	Panicf(format string, args ...interface{})

	WithField(field string, value interface{}) Logger
	WithFields(fields map[string]interface{}) Logger
	WithError(err error) Logger

	IsTraceEnabled() bool
	IsDebugEnabled() bool
	IsInfoEnabled() bool
}

var (
	once   sync.Once
	logger Logger = discard()
)

// GetLogger returns the process logger. Before Init it discards everything.
func GetLogger() Logger {
	return logger
}

func Init(cfg *LoggerConfig) error {
	var err error
	once.Do(func() {
		var l Logger
		l, err = New(cfg)
		if err == nil {
			logger = l
		}
	})
	return err
}

func discard() Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return &logrusAdapter{entry: logrus.NewEntry(l)}
}
