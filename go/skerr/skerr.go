// Package skerr provides errors that carry the call site at which they were
// created or wrapped, plus any context added along the way.
package skerr

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
)

// StackTrace identifies a single call site.
type StackTrace struct {
	File string
	Line int
}

func (st *StackTrace) String() string {
	return fmt.Sprintf("%s:%d", st.File, st.Line)
}

// ErrorWithContext wraps an error with the call stack at the point it was
// first seen and any number of context messages.
type ErrorWithContext struct {
	// Wrapped is the original error. Never nil.
	Wrapped error
	// CallStack is the stack of the first call to Wrap/Wrapf/Fmt.
	CallStack []StackTrace
	// Context is added by Wrapf, innermost first.
	Context []string
}

// CallStack returns the call stack, skipping startAt frames from the caller,
// and keeping at most height frames.
func CallStack(height, startAt int) []StackTrace {
	stack := []StackTrace{}
	for i := 0; i < height; i++ {
		_, file, line, ok := runtime.Caller(startAt + i + 1)
		if !ok {
			break
		}
		if slash := strings.LastIndex(file, "/"); slash >= 0 {
			// Keep the package directory for readability.
			if prev := strings.LastIndex(file[:slash], "/"); prev >= 0 {
				file = file[prev+1:]
			}
		}
		stack = append(stack, StackTrace{File: file, Line: line})
	}
	return stack
}

// Error implements the error interface.
func (err *ErrorWithContext) Error() string {
	var out strings.Builder
	for i := len(err.Context) - 1; i >= 0; i-- {
		out.WriteString(err.Context[i])
		out.WriteString(": ")
	}
	out.WriteString(err.Wrapped.Error())
	out.WriteString(". At")
	for _, st := range err.CallStack {
		out.WriteString(" ")
		out.WriteString(st.String())
	}
	return out.String()
}

// Unwrap supports errors.Is and errors.As.
func (err *ErrorWithContext) Unwrap() error {
	return err.Wrapped
}

const stackHeight = 3

// Wrap adds the caller's location to err. Returns nil if err is nil. If err
// already carries a call stack it is returned unchanged.
func Wrap(err error) error {
	if err == nil {
		return nil
	}
	var ewc *ErrorWithContext
	if errors.As(err, &ewc) {
		return err
	}
	return &ErrorWithContext{
		Wrapped:   err,
		CallStack: CallStack(stackHeight, 1),
	}
}

// Wrapf is like Wrap, but also adds a formatted context message.
func Wrapf(err error, fmtStr string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	msg := fmt.Sprintf(fmtStr, args...)
	var ewc *ErrorWithContext
	if errors.As(err, &ewc) && ewc == err {
		return &ErrorWithContext{
			Wrapped:   ewc.Wrapped,
			CallStack: ewc.CallStack,
			Context:   append(append([]string{}, ewc.Context...), msg),
		}
	}
	return &ErrorWithContext{
		Wrapped:   err,
		CallStack: CallStack(stackHeight, 1),
		Context:   []string{msg},
	}
}

// Fmt creates a new error with the caller's location. The format string
// supports %w.
func Fmt(fmtStr string, args ...interface{}) error {
	return &ErrorWithContext{
		Wrapped:   fmt.Errorf(fmtStr, args...),
		CallStack: CallStack(stackHeight, 1),
	}
}

// Unwrap returns the original error, stripping any context added by this
// package.
func Unwrap(err error) error {
	var ewc *ErrorWithContext
	if errors.As(err, &ewc) {
		return ewc.Wrapped
	}
	return err
}
