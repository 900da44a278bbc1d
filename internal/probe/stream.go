package probe

import (
	"bufio"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sort"
	"strings"
	"text/template"
)

// StreamProbe writes a hand-built HTTP/1.1 request over a raw TCP stream,
// optionally wrapped in TLS, and reads the response until the peer closes.
type StreamProbe struct {
	target Target
	engine *TemplateEngine
	path   *template.Template
	dialer net.Dialer
}

func NewStreamProbe(t Target) (*StreamProbe, error) {
	engine := NewTemplateEngine()
	path, err := engine.Parse("path", t.Path)
	if err != nil {
		return nil, err
	}
	return &StreamProbe{
		target: t,
		engine: engine,
		path:   path,
		dialer: net.Dialer{KeepAlive: -1},
	}, nil
}

func (p *StreamProbe) Do(ctx context.Context, index int) Outcome {
	return timed(ctx, p.target, index, p.engine, p.path, p.exchange)
}

func (p *StreamProbe) exchange(ctx context.Context, _ int, path string) (int64, int, error) {
	conn, err := p.dialer.DialContext(ctx, "tcp", p.target.Address())
	if err != nil {
		return 0, 0, err
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	if p.target.Scheme == SchemeTLS {
		serverName := p.target.ServerName
		if serverName == "" {
			serverName = p.target.Host
		}
		tc := tls.Client(conn, &tls.Config{
			ServerName:         serverName,
			InsecureSkipVerify: p.target.Insecure,
		})
		if err := tc.HandshakeContext(ctx); err != nil {
			return 0, 0, err
		}
		conn = tc
	}

	if _, err := io.WriteString(conn, p.request(path)); err != nil {
		return 0, 0, err
	}

	resp, err := http.ReadResponse(bufio.NewReader(conn), nil)
	if err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) {
			return 0, 0, err
		}
		if errors.Is(err, io.EOF) {
			return 0, 0, protocolErrorf("connection closed before response")
		}
		return 0, 0, protocolErrorf("malformed response: %v", err)
	}
	defer resp.Body.Close()

	n, err := io.Copy(io.Discard, resp.Body)
	if err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) {
			return n, resp.StatusCode, err
		}
		return n, resp.StatusCode, protocolErrorf("body truncated after %d bytes: %v", n, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return n, resp.StatusCode, protocolErrorf("unexpected status %d", resp.StatusCode)
	}
	return n, resp.StatusCode, nil
}

func (p *StreamProbe) request(path string) string {
	if path == "" {
		path = "/"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s HTTP/1.1\r\n", p.target.method(), path)
	fmt.Fprintf(&b, "Host: %s\r\n", p.target.HostHeader())
	b.WriteString("Connection: close\r\n")

	// Stable header order keeps captures comparable across runs.
	keys := make([]string, 0, len(p.target.Headers))
	for k := range p.target.Headers {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, "%s: %s\r\n", k, p.target.Headers[k])
	}
	b.WriteString("\r\n")
	return b.String()
}
