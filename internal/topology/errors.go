package topology

import (
	"errors"
	"fmt"
)

// ErrProtocolUnsupported is returned when a device does not serve the
// requested API or command.
var ErrProtocolUnsupported = errors.New("protocol unsupported")

// ErrMissingCredentials is returned when no device credentials were configured.
var ErrMissingCredentials = errors.New("missing device credentials")

// AuthenticationError means the device rejected the configured credentials.
type AuthenticationError struct {
	Address string
	Err     error
}

func (e *AuthenticationError) Error() string {
	return fmt.Sprintf("authentication failed for %s: %v", e.Address, e.Err)
}

func (e *AuthenticationError) Unwrap() error { return e.Err }

// ConnectivityError covers unreachable devices, timeouts and dropped sessions.
type ConnectivityError struct {
	Address string
	Err     error
}

func (e *ConnectivityError) Error() string {
	return fmt.Sprintf("connectivity to %s: %v", e.Address, e.Err)
}

func (e *ConnectivityError) Unwrap() error { return e.Err }

// ParseError reports output that could not be turned into records.
type ParseError struct {
	Dialect Dialect
	Command string
	Reason  string
}

func (e *ParseError) Error() string {
	if e.Command == "" {
		return fmt.Sprintf("parse %s output: %s", e.Dialect, e.Reason)
	}
	return fmt.Sprintf("parse %s output of %q: %s", e.Dialect, e.Command, e.Reason)
}

// StateIOError wraps failures reading or writing persisted snapshots.
type StateIOError struct {
	Site string
	Op   string
	Err  error
}

func (e *StateIOError) Error() string {
	return fmt.Sprintf("state %s for site %q: %v", e.Op, e.Site, e.Err)
}

func (e *StateIOError) Unwrap() error { return e.Err }

func IsAuthentication(err error) bool {
	var ae *AuthenticationError
	return errors.As(err, &ae)
}

func IsConnectivity(err error) bool {
	var ce *ConnectivityError
	return errors.As(err, &ce)
}
