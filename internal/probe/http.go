package probe

import (
	"context"
	"crypto/tls"
	"errors"
	"io"
	"net"
	"net/http"
	"text/template"

	"github.com/google/uuid"
)

// HTTPProbe issues one net/http request per call. Keep-alives are off so
// every exchange includes connection setup.
type HTTPProbe struct {
	target Target
	client *http.Client
	engine *TemplateEngine
	path   *template.Template
}

func NewHTTPProbe(t Target) (*HTTPProbe, error) {
	engine := NewTemplateEngine()
	path, err := engine.Parse("path", t.Path)
	if err != nil {
		return nil, err
	}

	tr := http.DefaultTransport.(*http.Transport).Clone()
	tr.Proxy = nil
	tr.DisableKeepAlives = true
	tr.DialContext = (&net.Dialer{KeepAlive: -1}).DialContext
	tr.TLSClientConfig = &tls.Config{
		ServerName:         t.ServerName,
		InsecureSkipVerify: t.Insecure,
	}

	return &HTTPProbe{
		target: t,
		client: &http.Client{
			Transport: tr,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		engine: engine,
		path:   path,
	}, nil
}

func (p *HTTPProbe) Do(ctx context.Context, index int) Outcome {
	return timed(ctx, p.target, index, p.engine, p.path, p.exchange)
}

func (p *HTTPProbe) exchange(ctx context.Context, _ int, path string) (int64, int, error) {
	scheme := "http"
	if p.target.Scheme == SchemeHTTPS {
		scheme = "https"
	}

	req, err := http.NewRequestWithContext(ctx, p.target.method(), scheme+"://"+p.target.Address()+path, nil)
	if err != nil {
		return 0, 0, protocolErrorf("build request: %v", err)
	}
	if p.target.VirtualHost != "" {
		req.Host = p.target.VirtualHost
	}
	for k, v := range p.target.Headers {
		req.Header.Set(k, v)
	}
	req.Header.Set("X-Request-ID", uuid.New().String())

	resp, err := p.client.Do(req)
	if err != nil {
		return 0, 0, err
	}
	defer resp.Body.Close()

	n, err := io.Copy(io.Discard, resp.Body)
	if err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return n, resp.StatusCode, protocolErrorf("body truncated after %d bytes", n)
		}
		return n, resp.StatusCode, err
	}
	if req.Method != http.MethodHead && resp.ContentLength >= 0 && n != resp.ContentLength {
		return n, resp.StatusCode, protocolErrorf("read %d of %d bytes", n, resp.ContentLength)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return n, resp.StatusCode, protocolErrorf("unexpected status %d", resp.StatusCode)
	}
	return n, resp.StatusCode, nil
}

// Close releases idle connections held by the probe transport.
func (p *HTTPProbe) Close() error {
	p.client.CloseIdleConnections()
	return nil
}
