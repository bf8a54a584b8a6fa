package probe

import (
	"context"
	"errors"
	"net"
	"os"
	"strings"
	"syscall"

	"github.com/sectorwatch/sectorwatch/internal/models"
)

// Classify maps a probe error to an error kind. An empty result means the
// error is a clean "target did not answer" signal rather than a failure of
// the probing mechanism.
func Classify(err error) string {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, context.Canceled):
		return models.ErrorKindCanceled
	case errors.Is(err, context.DeadlineExceeded):
		return ""
	case errors.Is(err, os.ErrPermission),
		errors.Is(err, syscall.EPERM),
		errors.Is(err, syscall.EACCES):
		return models.ErrorKindPermission
	case errors.Is(err, syscall.EHOSTUNREACH),
		errors.Is(err, syscall.ENETUNREACH),
		errors.Is(err, syscall.EHOSTDOWN):
		return ""
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return models.ErrorKindResolve
	}

	var addrErr *net.AddrError
	if errors.As(err, &addrErr) {
		return models.ErrorKindInvalidAddress
	}

	var parseErr *net.ParseError
	if errors.As(err, &parseErr) {
		return models.ErrorKindInvalidAddress
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ""
	}

	return models.ErrorKindSocket
}

// isRefused reports whether the target actively rejected the probe, which
// proves the host is up.
func isRefused(err error) bool {
	return errors.Is(err, syscall.ECONNREFUSED)
}

// isTimeout reports whether err is a deadline expiry. gosnmp replaces socket
// timeouts with a plain "request timeout" error once retries run out, so the
// message is matched last.
func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "timeout")
}
