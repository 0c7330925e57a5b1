package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
)

// Kind classifies an operation failure so handlers can map it
// into a result payload without string matching.
type Kind int

const (
	KindConfiguration Kind = iota // missing host/user/secret, bad settings
	KindConnection                // dial, handshake, auth, timeout
	KindPath                      // local or remote path missing / wrong type
	KindTransfer                  // one file's transfer failed mid-sync
	KindDecoding                  // remote content not decodable as requested
)

// OpError is the error type returned by every package in this module.
// Message is safe to surface directly to the calling agent.
type OpError struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *OpError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *OpError) Unwrap() error {
	return e.Err
}

// Configuration reports invalid or incomplete settings. Raised before
// any network attempt is made.
func Configuration(format string, args ...any) error {
	return &OpError{Kind: KindConfiguration, Message: fmt.Sprintf(format, args...)}
}

// WrapConnection wraps dial/handshake failures with the target endpoint.
func WrapConnection(err error, host string, port int) error {
	if err == nil {
		return nil
	}
	return &OpError{
		Kind:    KindConnection,
		Message: fmt.Sprintf("failed to connect to %s:%d (%s)", host, port, connectionReason(err)),
		Err:     err,
	}
}

// Path reports a missing or wrong-typed local/remote path.
func Path(format string, args ...any) error {
	return &OpError{Kind: KindPath, Message: fmt.Sprintf(format, args...)}
}

// WrapPath wraps an underlying filesystem or SFTP error as a path failure.
func WrapPath(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return &OpError{Kind: KindPath, Message: fmt.Sprintf(format, args...), Err: err}
}

// Decoding reports remote file content that cannot be decoded under the
// requested text encoding.
func Decoding(format string, args ...any) error {
	return &OpError{Kind: KindDecoding, Message: fmt.Sprintf(format, args...)}
}

// WrapTransfer wraps a single file's upload failure during a multi-file
// sync. Recorded per item; never aborts the walk.
func WrapTransfer(err error, relPath string) error {
	if err == nil {
		return nil
	}
	return &OpError{
		Kind:    KindTransfer,
		Message: fmt.Sprintf("failed to upload %s", relPath),
		Err:     err,
	}
}

// KindOf returns the Kind of err, or KindConnection for unwrapped
// transport errors that reach a handler.
func KindOf(err error) (Kind, bool) {
	var oe *OpError
	if stderrors.As(err, &oe) {
		return oe.Kind, true
	}
	return 0, false
}

// Is reports whether err carries the given Kind anywhere in its chain.
func Is(err error, kind Kind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}

func connectionReason(err error) string {
	errStr := err.Error()

	if strings.Contains(errStr, "timeout") || strings.Contains(errStr, "deadline exceeded") {
		return "connection timeout - host may be offline or unreachable"
	}
	if strings.Contains(errStr, "connection refused") {
		return "connection refused - host may not be listening on this port"
	}
	if strings.Contains(errStr, "no route to host") {
		return "no route to host"
	}
	if strings.Contains(errStr, "unable to authenticate") || strings.Contains(errStr, "permission denied") {
		return "authentication failed - check username and password"
	}
	if strings.Contains(errStr, "connection reset") {
		return "connection reset by remote host"
	}

	return "connection failed"
}
