// FilePath: internal/filetransfer/filetransfer.errors.go
package filetransfer

import (
	"errors"
	"fmt"
	"strings"
)

// FailureKind classifies transfer failures so the dispatcher can log
// them distinctly. All kinds are retried the same way; the job record
// is marked failed either way.
type FailureKind string

const (
	FailureConnection     FailureKind = "connection"
	FailureAuthentication FailureKind = "authentication"
	FailureTransfer       FailureKind = "transfer"
	FailurePermission     FailureKind = "permission"
)

// TransferError wraps an underlying client error with a failure kind
// and the host it occurred against.
type TransferError struct {
	Kind FailureKind
	Host string
	Err  error
}

func (e *TransferError) Error() string {
	return fmt.Sprintf("%s failure against %s: %v", e.Kind, e.Host, e.Err)
}

func (e *TransferError) Unwrap() error {
	return e.Err
}

func newTransferError(kind FailureKind, host string, err error) *TransferError {
	return &TransferError{Kind: kind, Host: host, Err: err}
}

// KindOf returns the failure kind of err, or FailureTransfer when err
// is not a TransferError.
func KindOf(err error) FailureKind {
	var te *TransferError
	if errors.As(err, &te) {
		return te.Kind
	}
	return FailureTransfer
}

func containsAny(s string, substrs ...string) bool {
	lower := strings.ToLower(s)
	for _, sub := range substrs {
		if strings.Contains(lower, sub) {
			return true
		}
	}
	return false
}
