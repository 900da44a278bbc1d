package probe

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Scheme selects how a Target is spoken to.
type Scheme string

const (
	SchemeHTTP  Scheme = "http"
	SchemeHTTPS Scheme = "https"
	SchemeTCP   Scheme = "tcp" // raw HTTP/1.1 over a plain stream
	SchemeTLS   Scheme = "tls" // raw HTTP/1.1 over a TLS-wrapped stream
)

const DefaultTimeout = 10 * time.Second

var ErrInvalidTarget = errors.New("invalid target")

// Target describes the endpoint a single exchange is made against.
type Target struct {
	Scheme      Scheme            `json:"scheme"`
	Host        string            `json:"host"`
	Port        int               `json:"port"`
	Path        string            `json:"path,omitempty"` // may be a template, e.g. /bytes/{{.Size}}
	Size        int64             `json:"size,omitempty"`
	VirtualHost string            `json:"virtual_host,omitempty"`
	ServerName  string            `json:"server_name,omitempty"`
	Insecure    bool              `json:"insecure,omitempty"`
	Method      string            `json:"method,omitempty"`
	Headers     map[string]string `json:"headers,omitempty"`
	Timeout     time.Duration     `json:"timeout"`
}

// ParseURL builds a Target from a URL such as http://127.0.0.1:8080/get or
// tls://127.0.0.1:8081/get. The port defaults from the scheme.
func ParseURL(raw string) (Target, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return Target{}, fmt.Errorf("%w: %v", ErrInvalidTarget, err)
	}
	if u.Host == "" {
		return Target{}, fmt.Errorf("%w: %q has no host", ErrInvalidTarget, raw)
	}

	t := Target{
		Scheme: Scheme(strings.ToLower(u.Scheme)),
		Host:   u.Hostname(),
		Path:   u.RequestURI(),
	}

	if p := u.Port(); p != "" {
		port, err := strconv.Atoi(p)
		if err != nil {
			return Target{}, fmt.Errorf("%w: bad port %q", ErrInvalidTarget, p)
		}
		t.Port = port
	} else {
		t.Port = defaultPort(t.Scheme)
	}
	return t, nil
}

func defaultPort(s Scheme) int {
	switch s {
	case SchemeHTTPS, SchemeTLS:
		return 443
	default:
		return 80
	}
}

// Validate reports every problem with the target at once.
func (t Target) Validate() error {
	var errs []error
	switch t.Scheme {
	case SchemeHTTP, SchemeHTTPS, SchemeTCP, SchemeTLS:
	default:
		errs = append(errs, fmt.Errorf("unknown scheme %q", t.Scheme))
	}
	if t.Host == "" {
		errs = append(errs, errors.New("host is required"))
	}
	if t.Port < 1 || t.Port > 65535 {
		errs = append(errs, fmt.Errorf("port %d out of range", t.Port))
	}
	if t.Size < 0 {
		errs = append(errs, fmt.Errorf("size %d is negative", t.Size))
	}
	if t.Timeout < 0 {
		errs = append(errs, fmt.Errorf("timeout %s is negative", t.Timeout))
	}
	if _, err := NewTemplateEngine().Parse("path", t.Path); err != nil {
		errs = append(errs, fmt.Errorf("path template: %w", err))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidTarget, errors.Join(errs...))
	}
	return nil
}

func (t Target) Address() string {
	return net.JoinHostPort(t.Host, strconv.Itoa(t.Port))
}

// HostHeader is the Host value sent on the wire.
func (t Target) HostHeader() string {
	if t.VirtualHost != "" {
		return t.VirtualHost
	}
	return t.Address()
}

func (t Target) timeout() time.Duration {
	if t.Timeout <= 0 {
		return DefaultTimeout
	}
	return t.Timeout
}

func (t Target) method() string {
	if t.Method == "" {
		return "GET"
	}
	return strings.ToUpper(t.Method)
}

func (t Target) String() string {
	return fmt.Sprintf("%s://%s%s", t.Scheme, t.Address(), t.Path)
}
