package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"invclose/internal/core/apperror"
)

// Exit codes of the closer command.
const (
	ExitSuccess      = 0 // the command did what was asked
	ExitFailure      = 1 // infrastructure or internal failure
	ExitCommandError = 2 // bad arguments, configuration or unknown record
	ExitPolicy       = 3 // blocked by timing, integrity, prerequisites or unmatched lines
	ExitConflict     = 4 // a close record already exists in another state
)

// ExitError carries the process exit code of a failed command.
type ExitError struct {
	Code    int
	Message string
	Err     error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// NewExitError creates an ExitError.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError wraps err with an exit code.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// ExitCode maps err onto an exit code. ExitErrors keep their code,
// AppErrors are classified by their code, anything else is a failure.
func ExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	appErr, ok := apperror.AsAppError(err)
	if !ok {
		return ExitFailure
	}
	switch appErr.Code {
	case apperror.CodeValidation, apperror.CodeNotFound:
		return ExitCommandError
	case apperror.CodeTimingViolation, apperror.CodeDataIntegrity, apperror.CodeMissingPrerequisite,
		apperror.CodeUnmatchPending, apperror.CodeBusinessRule:
		return ExitPolicy
	case apperror.CodeDuplicateClose, apperror.CodeConflict:
		return ExitConflict
	}
	return ExitFailure
}

// Response is the JSON envelope of every command.
type Response struct {
	Status string         `json:"status"`
	Data   any            `json:"data,omitempty"`
	Error  *ResponseError `json:"error,omitempty"`
}

// ResponseError describes a failed command.
type ResponseError struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// OutputFormatter writes results as text or JSON.
type OutputFormatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer
}

// JSON reports whether the JSON envelope is selected.
func (f *OutputFormatter) JSON() bool {
	return f.Format == "json"
}

// Success writes data. In text mode text renders it.
func (f *OutputFormatter) Success(data any, text func(w io.Writer) error) error {
	if f.JSON() {
		return encode(f.Writer, Response{Status: "ok", Data: data})
	}
	return text(f.Writer)
}

// Error writes err. JSON goes to the regular writer so scripts read one
// stream; text goes to the error writer.
func (f *OutputFormatter) Error(err error) {
	re := &ResponseError{Code: apperror.CodeInternal, Message: err.Error()}
	if appErr, ok := apperror.AsAppError(err); ok {
		re = &ResponseError{Code: appErr.Code, Message: appErr.Message, Details: appErr.Details}
	}

	if f.JSON() {
		_ = encode(f.Writer, Response{Status: "error", Error: re})
		return
	}
	fmt.Fprintf(f.ErrWriter, "error: %s\n", err)
}

func encode(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
