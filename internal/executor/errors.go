package executor

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"net"
	"syscall"
)

// Kind names the cause of a failed call. Callers see one generic failure;
// the kind only feeds structured logs.
type Kind string

const (
	KindTimeout           Kind = "timeout"
	KindDNS               Kind = "dns"
	KindConnectionRefused Kind = "connection_refused"
	KindTLS               Kind = "tls"
	KindInvalidURL        Kind = "invalid_url"
	KindTransport         Kind = "transport"
)

// Classify maps a call error onto a Kind.
func Classify(err error) Kind {
	if err == nil {
		return ""
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return KindTimeout
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return KindDNS
	}

	if errors.Is(err, syscall.ECONNREFUSED) {
		return KindConnectionRefused
	}

	var (
		unknownAuthority x509.UnknownAuthorityError
		hostnameErr      x509.HostnameError
		certInvalid      x509.CertificateInvalidError
		recordHeaderErr  tls.RecordHeaderError
		certVerifyErr    *tls.CertificateVerificationError
	)
	if errors.As(err, &unknownAuthority) || errors.As(err, &hostnameErr) ||
		errors.As(err, &certInvalid) || errors.As(err, &recordHeaderErr) ||
		errors.As(err, &certVerifyErr) {
		return KindTLS
	}

	var buildErr *requestError
	if errors.As(err, &buildErr) {
		return KindInvalidURL
	}

	return KindTransport
}

// requestError marks failures that happened while building the request,
// before anything was sent. Its message is the wrapped error's.
type requestError struct {
	err error
}

func (e *requestError) Error() string { return e.err.Error() }
func (e *requestError) Unwrap() error { return e.err }
