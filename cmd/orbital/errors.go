package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net"
	"os"

	"github.com/elee1766/orbital/src/config"
	"github.com/elee1766/orbital/src/conversation"
	"github.com/elee1766/orbital/src/orclient"
)

// Exit codes following standard conventions
const (
	ExitSuccess     = 0 // Success
	ExitError       = 1 // General error
	ExitUsage       = 2 // Usage error
	ExitConfig      = 3 // Configuration error
	ExitAuth        = 4 // Authentication error
	ExitPermission  = 5 // Permission error
	ExitNetwork     = 6 // Network error
	ExitTimeout     = 7 // Timeout error
	ExitInterrupted = 8 // Interrupted by user
)

// ErrorHandler handles different types of errors and exits with appropriate codes
type ErrorHandler struct {
	logger *slog.Logger
	exit   func(int)
}

// NewErrorHandler creates a new error handler
func NewErrorHandler(logger *slog.Logger) *ErrorHandler {
	return &ErrorHandler{logger: logger, exit: os.Exit}
}

// HandleError handles an error and exits with the appropriate code
func (h *ErrorHandler) HandleError(err error) {
	if err == nil {
		return
	}

	h.logger.Debug("command failed", "error", err)
	fmt.Fprintf(os.Stderr, "Error: %s\n", err.Error())
	h.exit(exitCode(err))
}

// exitCode determines the appropriate exit code for an error
func exitCode(err error) int {
	var (
		apiErr  *orclient.APIError
		cfgErr  config.ValidationError
		netErr  net.Error
		timeout *orclient.TimeoutError
	)

	switch {
	case errors.As(err, &cfgErr), errors.Is(err, errConfig):
		return ExitConfig
	case errors.As(err, &apiErr):
		if apiErr.IsAuthError() {
			return ExitAuth
		}
		return ExitNetwork
	case errors.Is(err, errNoAPIKey):
		return ExitAuth
	case errors.As(err, &timeout), errors.Is(err, context.DeadlineExceeded):
		return ExitTimeout
	case errors.Is(err, context.Canceled):
		return ExitInterrupted
	case errors.Is(err, fs.ErrPermission):
		return ExitPermission
	case errors.As(err, &netErr):
		return ExitNetwork
	case errors.Is(err, conversation.ErrConversationNotFound),
		errors.Is(err, conversation.ErrEmptyMessage),
		errors.Is(err, conversation.ErrStreamInFlight):
		return ExitUsage
	default:
		return ExitError
	}
}
