// Package probe performs single timed network exchanges against a target and
// reports every failure as data.
package probe

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net"
	"text/template"
	"time"

	"github.com/google/uuid"
)

// Operation performs exactly one exchange. Implementations must not panic
// and must not retry.
type Operation interface {
	Do(ctx context.Context, index int) Outcome
}

// OperationFunc adapts a function to Operation.
type OperationFunc func(ctx context.Context, index int) Outcome

func (f OperationFunc) Do(ctx context.Context, index int) Outcome {
	return f(ctx, index)
}

// New returns the Operation matching the target scheme.
func New(t Target) (Operation, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}
	switch t.Scheme {
	case SchemeTCP, SchemeTLS:
		return NewStreamProbe(t)
	default:
		return NewHTTPProbe(t)
	}
}

// ProtocolError marks a malformed or unexpected response.
type ProtocolError struct {
	Msg string
}

func (e *ProtocolError) Error() string {
	return "protocol error: " + e.Msg
}

func protocolErrorf(format string, args ...any) error {
	return &ProtocolError{Msg: fmt.Sprintf(format, args...)}
}

// exchangeFunc is one attempt; it returns bytes consumed and the status code.
type exchangeFunc func(ctx context.Context, index int, path string) (int64, int, error)

// timed brackets the full exchange with the target timeout and converts any
// error into a failed Outcome.
func timed(ctx context.Context, t Target, index int, engine *TemplateEngine, path *template.Template, fn exchangeFunc) Outcome {
	started := time.Now()
	timeout := t.timeout()

	rendered, err := engine.Execute(path, TemplateData{
		Size:      t.Size,
		Index:     index,
		RequestID: uuid.New().String(),
	})
	if err != nil {
		return Failed(index, started, time.Since(started), KindProtocol, fmt.Errorf("render path: %w", err))
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	n, status, err := fn(ctx, index, rendered)
	elapsed := time.Since(started)
	if err != nil {
		kind, err := classify(ctx, err, timeout)
		o := Failed(index, started, elapsed, kind, err)
		o.Status = status
		o.Bytes = n
		return o
	}
	return Succeeded(index, started, elapsed, n, status)
}

func classify(ctx context.Context, err error, timeout time.Duration) (FailureKind, error) {
	var (
		netErr   net.Error
		protoErr *ProtocolError
		recErr   tls.RecordHeaderError
		alertErr tls.AlertError
		certErr  *tls.CertificateVerificationError
		hostErr  x509.HostnameError
		authErr  x509.UnknownAuthorityError
	)

	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded), errors.Is(err, context.DeadlineExceeded):
		return KindTimeout, fmt.Errorf("timeout after %s: %w", timeout, err)
	case errors.Is(err, context.Canceled):
		return KindCanceled, err
	case errors.As(err, &protoErr):
		return KindProtocol, err
	case errors.As(err, &recErr), errors.As(err, &alertErr), errors.As(err, &certErr),
		errors.As(err, &hostErr), errors.As(err, &authErr):
		return KindProtocol, fmt.Errorf("tls handshake: %w", err)
	case errors.As(err, &netErr) && netErr.Timeout():
		return KindTimeout, fmt.Errorf("timeout after %s: %w", timeout, err)
	default:
		return KindTransport, err
	}
}
