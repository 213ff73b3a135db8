// Package errors provides error annotation with slog attributes and source
// locations. It re-exports the standard library helpers so that callers only
// need one errors import.
package errors

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"runtime"
	"strings"
)

// annotatedError carries a message, an optional cause, slog attributes, and
// the program counter of the annotation site.
type annotatedError struct {
	msg   string
	cause error
	attrs []slog.Attr
	pc    uintptr
}

func (e *annotatedError) Error() string {
	if e.cause == nil {
		return e.msg
	}
	return e.msg + ": " + e.cause.Error()
}

func (e *annotatedError) Unwrap() error {
	return e.cause
}

// Wrap annotates err with a message and optional slog attributes. The source
// location of the Wrap call is recorded for logging with SlogError.
func Wrap(err error, msg string, attrs ...slog.Attr) error {
	var pcs [1]uintptr
	runtime.Callers(2, pcs[:]) //nolint:mnd // skip runtime.Callers and Wrap.
	return &annotatedError{
		msg:   msg,
		cause: err,
		attrs: attrs,
		pc:    pcs[0],
	}
}

// New creates a new error with the source location of the caller.
func New(msg string) error {
	var pcs [1]uintptr
	runtime.Callers(2, pcs[:]) //nolint:mnd // skip runtime.Callers and New.
	return &annotatedError{
		msg:   msg,
		cause: nil,
		attrs: nil,
		pc:    pcs[0],
	}
}

// NewSentinel creates an error meant to be declared at package level and
// matched with Is. It carries no source location since the declaration site
// is not interesting.
func NewSentinel(msg string) error {
	return errors.New(msg)
}

// Is reports whether any error in err's tree matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's tree that matches target.
func As(err error, target any) bool {
	return errors.As(err, target)
}

// Unwrap returns the result of calling the Unwrap method on err.
func Unwrap(err error) error {
	return errors.Unwrap(err)
}

// Join wraps the given errors into a single error.
func Join(errs ...error) error {
	return errors.Join(errs...)
}

// SlogError converts an error into a structured slog attribute with the
// message, the source location of the annotation, and any attached
// annotations.
func SlogError(err error) slog.Attr {
	if err == nil {
		return slog.Attr{} //nolint:exhaustruct // empty attr is discarded by slog.
	}

	args := []any{slog.String("message", err.Error())}

	var annotated *annotatedError
	if errors.As(err, &annotated) {
		if source := sourceLocation(annotated.pc); source != "" {
			args = append(args, slog.String("source", source))
		}
		if len(annotated.attrs) > 0 {
			annotationArgs := make([]any, 0, len(annotated.attrs))
			for _, attr := range annotated.attrs {
				annotationArgs = append(annotationArgs, attr)
			}
			args = append(args, slog.Group("annotations", annotationArgs...))
		}
	}

	return slog.Group("error", args...)
}

// DecoratePanic converts a recovered panic value into an error pointing at
// the panic site. Use it in deferred recover blocks.
func DecoratePanic(excp any) error {
	var pcs [32]uintptr
	n := runtime.Callers(2, pcs[:]) //nolint:mnd // skip runtime.Callers and DecoratePanic.
	frames := runtime.CallersFrames(pcs[:n])

	// The interesting frame is the one that panicked, i.e. the first
	// non-runtime frame after runtime.gopanic.
	var pc uintptr
	seenGopanic := false
	for {
		frame, more := frames.Next()
		if strings.HasPrefix(frame.Function, "runtime.") {
			if frame.Function == "runtime.gopanic" {
				seenGopanic = true
			}
		} else if seenGopanic {
			pc = frame.PC
			break
		}
		if !more {
			break
		}
	}

	return &annotatedError{
		msg:   fmt.Sprintf("panic: %v", excp),
		cause: nil,
		attrs: nil,
		pc:    pc,
	}
}

// sourceLocation resolves a program counter into a "file.go:line" string.
func sourceLocation(pc uintptr) string {
	if pc == 0 {
		return ""
	}
	frame, _ := runtime.CallersFrames([]uintptr{pc}).Next()
	if frame.File == "" {
		return ""
	}
	return fmt.Sprintf("%s:%d", filepath.Base(frame.File), frame.Line)
}
