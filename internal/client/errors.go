package client

import (
	"errors"
	"fmt"
)

// Kind classifies why a remote call failed.
type Kind int

const (
	KindNone Kind = iota
	// KindTransport covers dial failures, timeouts and undecodable replies.
	KindTransport
	// KindValidation is a 400 from the service.
	KindValidation
	// KindNotFound is a 404 from the service.
	KindNotFound
	// KindServer is any other non-2xx reply.
	KindServer
)

func (k Kind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not-found"
	case KindServer:
		return "server"
	default:
		return "none"
	}
}

// Error is returned by every Client method that fails.
type Error struct {
	Kind    Kind
	Op      string
	Status  int
	Message string
	Err     error
}

func (e *Error) Error() string {
	switch {
	case e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
	case e.Message != "":
		return fmt.Sprintf("%s: %s (%d): %s", e.Op, e.Kind, e.Status, e.Message)
	default:
		return fmt.Sprintf("%s: %s (%d)", e.Op, e.Kind, e.Status)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the Kind carried by err, or KindNone.
func KindOf(err error) Kind {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return KindNone
}

// Retryable reports whether err is a transport failure worth repeating.
func Retryable(err error) bool {
	return KindOf(err) == KindTransport
}

func kindForStatus(status int) Kind {
	switch status {
	case 400:
		return KindValidation
	case 404:
		return KindNotFound
	default:
		return KindServer
	}
}
