package main

import (
	"errors"
	"fmt"
	"os"
)

// Exit codes for different failure modes
const (
	ExitSuccess     = 0 // Every requested audit completed
	ExitAuditFailed = 1 // One or more audit types ended FAILED
	ExitError       = 2 // Configuration or runtime error
)

// AuditFailureError indicates that the audit ran, but one or more audit
// types ended FAILED.
type AuditFailureError struct {
	Message string
}

func (e *AuditFailureError) Error() string {
	return e.Message
}

func main() {
	os.Exit(exitCode(execute()))
}

func exitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}

	fmt.Fprintln(os.Stderr, err)

	var auditFailureErr *AuditFailureError
	if errors.As(err, &auditFailureErr) {
		return ExitAuditFailed
	}

	// All other errors are configuration/runtime errors
	return ExitError
}
