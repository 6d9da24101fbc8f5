// Copyright 2026 Conductor OSS
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with
// the License. You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on
// an "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied. See the License for the
// specific language governing permissions and limitations under the License.

package fileconv

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrorKind classifies why a conversion job failed.
type ErrorKind string

const (
	KindNone                  ErrorKind = ""
	KindInput                 ErrorKind = "InputError"
	KindUnsupportedConversion ErrorKind = "UnsupportedConversion"
	KindNoAvailableEngine     ErrorKind = "NoAvailableEngine"
	KindAllStrategiesFailed   ErrorKind = "AllStrategiesFailed"
	KindOutputDirectory       ErrorKind = "OutputDirectoryError"
	KindOutputExists          ErrorKind = "OutputExists"
	KindOutputPath            ErrorKind = "OutputPathError"
	KindCancelled             ErrorKind = "Cancelled"
	KindTimeout               ErrorKind = "Timeout"
)

// Sentinel errors, one per kind. Use with errors.Is.
var (
	ErrInput                 = errors.New("invalid input file")
	ErrUnsupportedConversion = errors.New("unsupported conversion")
	ErrNoAvailableEngine     = errors.New("no available engine")
	ErrAllStrategiesFailed   = errors.New("all strategies failed")
	ErrOutputDirectory       = errors.New("output directory unavailable")
	ErrOutputExists          = errors.New("output already exists")
	ErrOutputPath            = errors.New("invalid output path")
	ErrCancelled             = errors.New("cancelled")
	ErrTimeout               = errors.New("timed out")
)

var kindSentinels = map[ErrorKind]error{
	KindInput:                 ErrInput,
	KindUnsupportedConversion: ErrUnsupportedConversion,
	KindNoAvailableEngine:     ErrNoAvailableEngine,
	KindAllStrategiesFailed:   ErrAllStrategiesFailed,
	KindOutputDirectory:       ErrOutputDirectory,
	KindOutputExists:          ErrOutputExists,
	KindOutputPath:            ErrOutputPath,
	KindCancelled:             ErrCancelled,
	KindTimeout:               ErrTimeout,
}

// Error is the terminal failure of one job, or of a whole batch for
// KindOutputDirectory.
type Error struct {
	Kind ErrorKind
	Path string
	Err  error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Kind))
	if e.Path != "" {
		fmt.Fprintf(&b, " %q", e.Path)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the sentinel for the error's kind.
func (e *Error) Is(target error) bool {
	return kindSentinels[e.Kind] == target
}

func newError(kind ErrorKind, path string, format string, args ...any) *Error {
	return &Error{Kind: kind, Path: path, Err: fmt.Errorf(format, args...)}
}

// KindOf returns the kind of err, or KindNone when err carries none.
func KindOf(err error) ErrorKind {
	if err == nil {
		return KindNone
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	for kind, sentinel := range kindSentinels {
		if errors.Is(err, sentinel) {
			return kind
		}
	}
	return KindNone
}

// IsUnsupportedConversion reports whether err is an unsupported conversion.
func IsUnsupportedConversion(err error) bool {
	return errors.Is(err, ErrUnsupportedConversion)
}

// FailedAttempt records a strategy that was tried and failed.
type FailedAttempt struct {
	Strategy string
	Err      error
	Elapsed  time.Duration
}

// TimedOut reports whether the attempt was cut off by its timeout.
func (a FailedAttempt) TimedOut() bool {
	return errors.Is(a.Err, ErrTimeout)
}

// ConversionError aggregates the attempts of a job whose strategies all failed.
type ConversionError struct {
	Attempts []FailedAttempt
}

func (e *ConversionError) Error() string {
	if len(e.Attempts) == 0 {
		return "conversion failed"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "conversion failed after %d attempt(s):", len(e.Attempts))
	for _, a := range e.Attempts {
		fmt.Fprintf(&b, "\n  %s: %v", a.Strategy, a.Err)
	}
	return b.String()
}

func (e *ConversionError) Unwrap() error {
	if len(e.Attempts) > 0 {
		return e.Attempts[len(e.Attempts)-1].Err
	}
	return nil
}
