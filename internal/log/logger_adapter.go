package log

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
)

const (
	DefaultPattern = "%time [%level] %field %msg\n"
	DefaultTime    = "2006-01-02 15:04:05.000"
)

type LoggerConfig struct {
	Pattern string           `mapstructure:"pattern"`
	Time    string           `mapstructure:"time"`
	Level   string           `mapstructure:"level"`
	Caller  bool             `mapstructure:"caller"`
	File    *FileAppenderOpt `mapstructure:"file"`
}

type logrusAdapter struct {
	entry *logrus.Entry
}

// New builds a logrus backed Logger writing to stderr and, if configured, a rotating file.
func New(cfg *LoggerConfig) (Logger, error) {
	if cfg == nil {
		cfg = &LoggerConfig{}
	}
	l := logrus.New()
	pattern, layout := cfg.Pattern, cfg.Time
	if pattern == "" {
		pattern = DefaultPattern
	}
	if layout == "" {
		layout = DefaultTime
	}
	l.SetFormatter(&formatter{
		pattern: pattern,
		time:    layout,
	})
	level := logrus.InfoLevel
	if cfg.Level != "" {
		var err error
		if level, err = logrus.ParseLevel(cfg.Level); err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
		}
	}
	l.SetLevel(level)
	l.SetReportCaller(cfg.Caller)

	out := NewMultiWriter().Add(os.Stderr)
	if cfg.File != nil && cfg.File.Filename != "" {
		out.AddFileAppender(*cfg.File)
	}
	l.SetOutput(out)

	return &logrusAdapter{
		entry: logrus.NewEntry(l),
	}, nil
}

func (l *logrusAdapter) Print(args ...interface{})                 { l.entry.Print(args...) }
func (l *logrusAdapter) Printf(format string, args ...interface{}) { l.entry.Printf(format, args...) }

func (l *logrusAdapter) Trace(args ...interface{})                 { l.entry.Trace(args...) }
func (l *logrusAdapter) Tracef(format string, args ...interface{}) { l.entry.Tracef(format, args...) }

func (l *logrusAdapter) Debug(args ...interface{})                 { l.entry.Debug(args...) }
func (l *logrusAdapter) Debugf(format string, args ...interface{}) { l.entry.Debugf(format, args...) }

func (l *logrusAdapter) Info(args ...interface{})                 { l.entry.Info(args...) }
func (l *logrusAdapter) Infof(format string, args ...interface{}) { l.entry.Infof(format, args...) }

func (l *logrusAdapter) Warn(args ...interface{})                 { l.entry.Warn(args...) }
func (l *logrusAdapter) Warnf(format string, args ...interface{}) { l.entry.Warnf(format, args...) }

func (l *logrusAdapter) Error(args ...interface{})                 { l.entry.Error(args...) }
func (l *logrusAdapter) Errorf(format string, args ...interface{}) { l.entry.Errorf(format, args...) }

func (l *logrusAdapter) Fatal(args ...interface{})                 { l.entry.Fatal(args...) }
func (l *logrusAdapter) Fatalf(format string, args ...interface{}) { l.entry.Fatalf(format, args...) }

func (l *logrusAdapter) Panic(args ...interface{})                 { l.entry.Panic(args...) }
func (l *logrusAdapter) Panicf(format string, args ...interface{}) { l.entry.Panicf(format, args...) }

func (l *logrusAdapter) WithField(field string, value interface{}) Logger {
	return &logrusAdapter{entry: l.entry.WithField(field, value)}
}
func (l *logrusAdapter) WithFields(fields map[string]interface{}) Logger {
	return &logrusAdapter{entry: l.entry.WithFields(fields)}
}
func (l *logrusAdapter) WithError(err error) Logger {
	return &logrusAdapter{entry: l.entry.WithError(err)}
}

func (l *logrusAdapter) IsTraceEnabled() bool {
	return l.entry.Logger.IsLevelEnabled(logrus.TraceLevel)
}
func (l *logrusAdapter) IsDebugEnabled() bool {
	return l.entry.Logger.IsLevelEnabled(logrus.DebugLevel)
}
func (l *logrusAdapter) IsInfoEnabled() bool {
	return l.entry.Logger.IsLevelEnabled(logrus.InfoLevel)
}
