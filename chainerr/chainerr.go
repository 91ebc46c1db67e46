// Package chainerr defines the error taxonomy shared by every chain-engine
// subsystem: storage, validation, consensus, initialization, mempool, and
// object-store faults are distinguished by Kind so that callers (and the RPC
// adapter) can branch on failure class without string matching.
package chainerr

import "fmt"

type Kind string

const (
	KindStorage        Kind = "storage"
	KindValidation     Kind = "validation"
	KindConsensus      Kind = "consensus"
	KindInitialization Kind = "initialization"
	KindMempool        Kind = "mempool"
	KindObjectStore    Kind = "objectstore"
)

// Error is the concrete type behind every error this module returns from a
// chain-engine subsystem. Op names the failing operation (e.g. "add_block",
// "chainstore.put_block") for log correlation; Kind is the taxonomy bucket.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func New(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

func Newf(kind Kind, op string, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

// Is reports whether err is a *Error of the given Kind, unwrapping as needed.
func Is(err error, kind Kind) bool {
	for err != nil {
		if ce, ok := err.(*Error); ok {
			return ce.Kind == kind
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
