package errors

import (
	"errors"
	"fmt"
	"os"

	"github.com/julianstephens/habitkit/internal/logger"
)

// Exit statuses returned by the CLI.
const (
	ExitFailure    = 1
	ExitBadInput   = 2
	ExitNotFound   = 3
	ExitSyncFailed = 4
)

var exit = os.Exit

// Format prefixes err with "Error: ". A nil error formats as "".
func Format(err error) string {
	if err == nil {
		return ""
	}
	return fmt.Sprintf("Error: %v", err)
}

// ExitCode maps err onto the CLI exit statuses. Nil maps to 0.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, ErrValidation), errors.Is(err, ErrFutureDate):
		return ExitBadInput
	case errors.Is(err, ErrNotFound):
		return ExitNotFound
	case errors.Is(err, ErrSyncTransport):
		return ExitSyncFailed
	default:
		return ExitFailure
	}
}

// Fatal logs err, prints it to stderr, runs cleanup and exits with
// ExitCode(err). It does nothing for a nil error.
func Fatal(err error, cleanup ...func() error) {
	if err == nil {
		return
	}
	logger.Error("Command execution failed", "error", err, "exit", ExitCode(err))
	fmt.Fprintln(os.Stderr, Format(err))
	for _, fn := range cleanup {
		if cerr := fn(); cerr != nil {
			logger.Warn("Cleanup failed", "error", cerr)
		}
	}
	exit(ExitCode(err))
}
