package probe

import (
	"errors"
	"fmt"
)

type ErrorKind string

const (
	ErrConnection    ErrorKind = "connection"
	ErrTimeout       ErrorKind = "timeout"
	ErrNoCertificate ErrorKind = "no_certificate"
)

// Error is a probe transport failure. From the monitoring engine's point of
// view these are data, not faults: the check cycle converts them into alert
// state instead of aborting.
type Error struct {
	Kind   ErrorKind
	Domain string
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("probe %s: %s: %v", e.Domain, e.Kind, e.Err)
	}
	return fmt.Sprintf("probe %s: %s", e.Domain, e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// AsError unwraps err into a probe Error, if it is one.
func AsError(err error) (*Error, bool) {
	var pe *Error
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}

func connectionError(domain string, err error) *Error {
	return &Error{Kind: ErrConnection, Domain: domain, Err: err}
}

func timeoutError(domain string, err error) *Error {
	return &Error{Kind: ErrTimeout, Domain: domain, Err: err}
}

func noCertificateError(domain string) *Error {
	return &Error{Kind: ErrNoCertificate, Domain: domain}
}
