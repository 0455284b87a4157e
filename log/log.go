// Copyright 2024 The Evloop Authors.
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0

// Package log provides the logging facade used throughout evloop.
package log

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is the logging interface evloop depends on. Any *zap.SugaredLogger
// satisfies it, as does any adapter a caller wants to wire in via
// WithLogger.
type Logger interface {
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
}

var encoderConfig = zapcore.EncoderConfig{
	TimeKey:        "T",
	LevelKey:       "L",
	NameKey:        "N",
	CallerKey:      "C",
	MessageKey:     "M",
	StacktraceKey:  "S",
	LineEnding:     zapcore.DefaultLineEnding,
	EncodeLevel:    zapcore.CapitalLevelEncoder,
	EncodeTime:     zapcore.ISO8601TimeEncoder,
	EncodeDuration: zapcore.SecondsDurationEncoder,
	EncodeCaller:   zapcore.ShortCallerEncoder,
}

// Default is the package-level logger used by Loop when no logger is
// supplied via WithLogger.
var Default Logger = zap.New(
	zapcore.NewCore(zapcore.NewConsoleEncoder(encoderConfig), zapcore.AddSync(os.Stdout), zap.NewAtomicLevelAt(zapcore.InfoLevel)),
	zap.AddCaller(),
	zap.AddCallerSkip(1),
).Sugar()

// Debug calls Default.Debug.
func Debug(args ...interface{}) { Default.Debug(args...) }

// Debugf calls Default.Debugf.
func Debugf(format string, args ...interface{}) { Default.Debugf(format, args...) }

// Info calls Default.Info.
func Info(args ...interface{}) { Default.Info(args...) }

// Infof calls Default.Infof.
func Infof(format string, args ...interface{}) { Default.Infof(format, args...) }

// Warn calls Default.Warn.
func Warn(args ...interface{}) { Default.Warn(args...) }

// Warnf calls Default.Warnf.
func Warnf(format string, args ...interface{}) { Default.Warnf(format, args...) }

// Error calls Default.Error.
func Error(args ...interface{}) { Default.Error(args...) }

// Errorf calls Default.Errorf.
func Errorf(format string, args ...interface{}) { Default.Errorf(format, args...) }

// Fatal calls Default.Fatal.
func Fatal(args ...interface{}) { Default.Fatal(args...) }

// Fatalf calls Default.Fatalf.
func Fatalf(format string, args ...interface{}) { Default.Fatalf(format, args...) }
