package masterstat

import (
	"errors"
	"fmt"
)

// Error kinds returned by queries. Use errors.Is to match them.
var (
	// ErrAddressResolution means the master address could not be resolved to a UDP endpoint.
	ErrAddressResolution = errors.New("address resolution failed")

	// ErrSend means the request datagram could not be transmitted.
	ErrSend = errors.New("send failed")

	// ErrReceive means the socket failed while waiting for the response,
	// e.g. the master host rejected the datagram with ICMP port unreachable.
	ErrReceive = errors.New("receive failed")

	// ErrTimeout means no response arrived before the deadline.
	ErrTimeout = errors.New("timeout waiting for response")

	// ErrInvalidResponseHeader means the response does not start with the expected marker.
	ErrInvalidResponseHeader = errors.New("invalid response header")

	// ErrMalformedResponse means the payload is not a whole number of address records.
	ErrMalformedResponse = errors.New("malformed response")

	// ErrNoMastersProvided is returned by QueryMany when called without master addresses.
	ErrNoMastersProvided = errors.New("no master servers provided")
)

// QueryError describes a failed query against a single master server.
type QueryError struct {
	// Kind is one of the Err* sentinels
	Kind error

	// Err is the underlying cause, may be nil
	Err error

	// Master is the queried master address
	Master string

	// Op is the failed step: resolve, dial, send, receive or parse
	Op string
}

func (e *QueryError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("master %s: %s: %v", e.Master, e.Op, e.Kind)
	}

	return fmt.Sprintf("master %s: %s: %v: %v", e.Master, e.Op, e.Kind, e.Err)
}

// Unwrap exposes both the kind and the cause to errors.Is and errors.As.
func (e *QueryError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}

	return []error{e.Kind, e.Err}
}

func queryErr(master, op string, kind, err error) error {
	return &QueryError{Master: master, Op: op, Kind: kind, Err: err}
}
