// Copyright 2025 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package logger provides the structured logger used throughout the
// daemon: one slog.Logger per component, written either as text or as
// JSON, optionally rotated to disk through lumberjack.
package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/nfsmeta/distfs/cfg"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Severity strings as they appear in configuration and log output.
const (
	TRACE   = "TRACE"
	DEBUG   = "DEBUG"
	INFO    = "INFO"
	WARNING = "WARNING"
	ERROR   = "ERROR"
	OFF     = "OFF"
)

// slog has no TRACE level; we model it one step below Debug.
const (
	LevelTrace = slog.Level(-8)
	LevelDebug = slog.LevelDebug
	LevelInfo  = slog.LevelInfo
	LevelWarn  = slog.LevelWarn
	LevelError = slog.LevelError
	LevelOff   = slog.Level(16)
)

var severityNames = map[slog.Leveler]string{
	LevelTrace: TRACE,
	LevelWarn:  WARNING,
}

type loggerFactory struct {
	mu     sync.Mutex
	file   *os.File
	writer io.Writer

	format          string
	level           string
	logRotateConfig cfg.LogRotateConfig
}

func (f *loggerFactory) createJsonOrTextHandler(w io.Writer, level *slog.LevelVar, prefix string) slog.Handler {
	opts := &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			switch a.Key {
			case slog.LevelKey:
				lvl := a.Value.Any().(slog.Level)
				if name, ok := severityNames[lvl]; ok {
					a.Value = slog.StringValue(name)
				} else {
					a.Value = slog.StringValue(lvl.String())
				}
				a.Key = "severity"
			case slog.MessageKey:
				if prefix != "" {
					a.Value = slog.StringValue(prefix + a.Value.String())
				}
				a.Key = "message"
			case slog.TimeKey:
				if f.format != "json" {
					a.Value = slog.StringValue(a.Value.Time().Format("2006/01/02 15:04:05.000000"))
					a.Key = "time"
				}
			}
			return a
		},
	}
	if f.format == "json" {
		opts.ReplaceAttr = jsonReplaceAttr(prefix)
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}

func jsonReplaceAttr(prefix string) func([]string, slog.Attr) slog.Attr {
	return func(groups []string, a slog.Attr) slog.Attr {
		switch a.Key {
		case slog.LevelKey:
			lvl := a.Value.Any().(slog.Level)
			if name, ok := severityNames[lvl]; ok {
				a.Value = slog.StringValue(name)
			} else {
				a.Value = slog.StringValue(lvl.String())
			}
			a.Key = "severity"
		case slog.MessageKey:
			if prefix != "" {
				a.Value = slog.StringValue(prefix + a.Value.String())
			}
			a.Key = "message"
		case slog.TimeKey:
			t := a.Value.Time()
			return slog.Attr{
				Key: "timestamp",
				Value: slog.GroupValue(
					slog.Int64("seconds", t.Unix()),
					slog.Int64("nanos", int64(t.Nanosecond())),
				),
			}
		}
		return a
	}
}

var (
	defaultLoggerFactory = &loggerFactory{
		format: "text",
		level:  INFO,
		writer: os.Stderr,
	}
	defaultLogger = slog.New(defaultLoggerFactory.createJsonOrTextHandler(os.Stderr, levelVarFor(INFO), ""))
	mu            sync.Mutex
)

func levelVarFor(severity string) *slog.LevelVar {
	v := new(slog.LevelVar)
	setLoggingLevel(severity, v)
	return v
}

func setLoggingLevel(severity string, v *slog.LevelVar) {
	switch severity {
	case TRACE:
		v.Set(LevelTrace)
	case DEBUG:
		v.Set(LevelDebug)
	case INFO:
		v.Set(LevelInfo)
	case WARNING:
		v.Set(LevelWarn)
	case ERROR:
		v.Set(LevelError)
	case OFF:
		v.Set(LevelOff)
	default:
		v.Set(LevelInfo)
	}
}

// SetLogFormat switches the default logger between "text" and "json"
// output. An empty format is treated as "json".
func SetLogFormat(format string) {
	mu.Lock()
	defer mu.Unlock()
	if format == "" {
		format = "json"
	}
	defaultLoggerFactory.format = format
	lv := levelVarFor(defaultLoggerFactory.level)
	defaultLogger = slog.New(defaultLoggerFactory.createJsonOrTextHandler(defaultLoggerFactory.writer, lv, ""))
}

// InitLogFile wires the default logger to a rotated log file described
// by cfg.LoggingConfig. An empty FilePath keeps logging on stderr.
func InitLogFile(logConfig cfg.LoggingConfig) error {
	mu.Lock()
	defer mu.Unlock()

	defaultLoggerFactory.format = logConfig.Format
	defaultLoggerFactory.level = string(logConfig.Severity)
	defaultLoggerFactory.logRotateConfig = logConfig.LogRotateConfig

	var w io.Writer = os.Stderr
	if logConfig.FilePath != "" {
		lj := &lumberjack.Logger{
			Filename:   string(logConfig.FilePath),
			MaxSize:    logConfig.LogRotateConfig.MaxFileSizeMB,
			MaxBackups: logConfig.LogRotateConfig.BackupFileCount,
			Compress:   logConfig.LogRotateConfig.Compress,
		}
		f, err := os.OpenFile(string(logConfig.FilePath), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return fmt.Errorf("opening log file: %w", err)
		}
		defaultLoggerFactory.file = f
		w = NewAsyncLogger(lj, 4096)
	}
	defaultLoggerFactory.writer = w

	lv := levelVarFor(string(logConfig.Severity))
	defaultLogger = slog.New(defaultLoggerFactory.createJsonOrTextHandler(w, lv, ""))
	return nil
}

// Component returns a child logger tagged with a "component" attribute,
// used by the FUSE adapter and the metrics exporter to namespace their
// log lines.
func Component(name string) *slog.Logger {
	return defaultLogger.With("component", name)
}

func Tracef(format string, args ...interface{}) {
	defaultLogger.Log(context.Background(), LevelTrace, fmt.Sprintf(format, args...))
}

func Debugf(format string, args ...interface{}) {
	defaultLogger.Debug(fmt.Sprintf(format, args...))
}

func Infof(format string, args ...interface{}) {
	defaultLogger.Info(fmt.Sprintf(format, args...))
}

func Warnf(format string, args ...interface{}) {
	defaultLogger.Warn(fmt.Sprintf(format, args...))
}

func Errorf(format string, args ...interface{}) {
	defaultLogger.Error(fmt.Sprintf(format, args...))
}

// Inconsistent logs an InconsistentFS-class failure with the offending
// inode number and operation name, per the postmortem requirement.
func Inconsistent(op string, ino uint64, err error) {
	defaultLogger.Error("inconsistent filesystem state", "op", op, "ino", ino, "err", err, "time", time.Now())
}
