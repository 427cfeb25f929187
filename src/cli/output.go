package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/Udit004/alumni-networking-sub003/src/models"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Successful execution
	ExitFailure      = 1 // Every notification source failed
	ExitCommandError = 2 // Bad flags or config
)

// ExitError represents an error with a specific exit code.
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

// NewExitError creates a new ExitError with the given code and message.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError wraps an existing error with an exit code.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the exit code from an error.
// Returns ExitFailure (1) if the error is not an ExitError.
func GetExitCode(err error) int {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// printer writes command results as text or JSON
type printer struct {
	format string
	w      io.Writer
}

func (p printer) json(v interface{}) error {
	enc := json.NewEncoder(p.w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (p printer) notifications(list []models.Notification) error {
	if p.format == "json" {
		return p.json(list)
	}
	if len(list) == 0 {
		_, err := fmt.Fprintln(p.w, "no notifications")
		return err
	}
	for _, n := range list {
		mark := " "
		if n.Read {
			mark = "x"
		}
		if _, err := fmt.Fprintf(p.w, "[%s] %s %s %-20s %s\n",
			mark, n.Id, n.CreatedAt.UTC().Format(time.RFC3339), n.Type, n.Payload.Message); err != nil {
			return err
		}
	}
	return nil
}

func (p printer) message(format string, args ...interface{}) error {
	if p.format == "json" {
		return p.json(map[string]string{"status": "ok", "message": fmt.Sprintf(format, args...)})
	}
	_, err := fmt.Fprintf(p.w, format+"\n", args...)
	return err
}
