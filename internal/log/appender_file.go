package log

import "gopkg.in/natefinch/lumberjack.v2"

// FileAppenderOpt configures the rotating log file.
type FileAppenderOpt struct {
	Filename   string `mapstructure:"filename"`
	MaxSize    int    `mapstructure:"max_size"` // megabytes
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"` // days
	Compress   bool   `mapstructure:"compress"`
}

func (m *MultiWriter) AddFileAppender(options FileAppenderOpt) *MultiWriter {
	return m.Add(&lumberjack.Logger{
		Filename:   options.Filename,
		MaxSize:    options.MaxSize,
		MaxBackups: options.MaxBackups,
		MaxAge:     options.MaxAge,
		Compress:   options.Compress,
	})
}
