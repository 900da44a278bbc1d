package probe

import (
	"context"
	"crypto/tls"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"faultcheck/internal/dummy"
)

func targetFor(t *testing.T, rawURL, path string) Target {
	t.Helper()
	tgt, err := ParseURL(rawURL)
	require.NoError(t, err)
	tgt.Path = path
	tgt.Timeout = 2 * time.Second
	return tgt
}

func mustNew(t *testing.T, tgt Target) Operation {
	t.Helper()
	op, err := New(tgt)
	require.NoError(t, err)
	return op
}

func TestHTTPProbe_DownloadCountsBytes(t *testing.T) {
	srv := httptest.NewServer(dummy.Handler())
	defer srv.Close()

	tgt := targetFor(t, srv.URL, "/bytes/{{.Size}}")
	tgt.Size = 4096

	o := mustNew(t, tgt).Do(context.Background(), 7)
	require.True(t, o.Success, o.Err)
	assert.Equal(t, 7, o.Index)
	assert.Equal(t, int64(4096), o.Bytes)
	assert.Equal(t, http.StatusOK, o.Status)
	assert.Empty(t, o.Err)
	assert.Greater(t, o.Duration, time.Duration(0))
	assert.Greater(t, o.Speed(), 0.0)
}

func TestHTTPProbe_SendsVirtualHost(t *testing.T) {
	seen := make(chan *http.Request, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen <- r.Clone(context.Background())
	}))
	defer srv.Close()

	tgt := targetFor(t, srv.URL, "/")
	tgt.VirtualHost = "httpbin.org"

	o := mustNew(t, tgt).Do(context.Background(), 0)
	require.True(t, o.Success, o.Err)

	r := <-seen
	assert.Equal(t, "httpbin.org", r.Host)
	assert.NotEmpty(t, r.Header.Get("X-Request-ID"))
}

func TestHTTPProbe_Failures(t *testing.T) {
	srv := httptest.NewServer(dummy.Handler())
	defer srv.Close()

	tests := []struct {
		name    string
		path    string
		timeout time.Duration
		kind    FailureKind
		errPart string
	}{
		{"server error status", "/status/500", 0, KindProtocol, "unexpected status 500"},
		{"truncated body", "/truncate/2048", 0, KindProtocol, "truncated"},
		{"timeout", "/delay/500", 50 * time.Millisecond, KindTimeout, "timeout after 50ms"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tgt := targetFor(t, srv.URL, tt.path)
			if tt.timeout > 0 {
				tgt.Timeout = tt.timeout
			}
			o := mustNew(t, tgt).Do(context.Background(), 1)
			assert.False(t, o.Success)
			assert.Equal(t, tt.kind, o.Kind)
			assert.Contains(t, o.Err, tt.errPart)
		})
	}
}

func TestHTTPProbe_ConnectionRefused(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	o := mustNew(t, targetFor(t, "http://"+addr, "/")).Do(context.Background(), 0)
	assert.False(t, o.Success)
	assert.Equal(t, KindTransport, o.Kind)
	assert.NotEmpty(t, o.Err)
}

func TestStreamProbe_PlainTCP(t *testing.T) {
	srv := httptest.NewServer(dummy.Handler())
	defer srv.Close()

	tgt := targetFor(t, srv.URL, "/bytes/{{size}}")
	tgt.Scheme = SchemeTCP
	tgt.Size = 1000

	o := mustNew(t, tgt).Do(context.Background(), 0)
	require.True(t, o.Success, o.Err)
	assert.Equal(t, int64(1000), o.Bytes)
}

func TestStreamProbe_TLS(t *testing.T) {
	srv := httptest.NewTLSServer(dummy.Handler())
	defer srv.Close()

	tgt := targetFor(t, srv.URL, "/get")
	tgt.Scheme = SchemeTLS
	tgt.ServerName = "httpbin.org"
	tgt.VirtualHost = "httpbin.org"

	t.Run("untrusted certificate is a protocol failure", func(t *testing.T) {
		o := mustNew(t, tgt).Do(context.Background(), 0)
		assert.False(t, o.Success)
		assert.Equal(t, KindProtocol, o.Kind)
		assert.Contains(t, o.Err, "tls handshake")
	})

	t.Run("insecure succeeds", func(t *testing.T) {
		tgt.Insecure = true
		o := mustNew(t, tgt).Do(context.Background(), 0)
		require.True(t, o.Success, o.Err)
		assert.Positive(t, o.Bytes)
	})
}

func TestStreamProbe_SNIDefaultsToHost(t *testing.T) {
	sni := make(chan string, 1)
	srv := httptest.NewUnstartedServer(dummy.Handler())
	srv.TLS = &tls.Config{
		GetConfigForClient: func(hello *tls.ClientHelloInfo) (*tls.Config, error) {
			select {
			case sni <- hello.ServerName:
			default:
			}
			return nil, nil
		},
	}
	srv.StartTLS()
	defer srv.Close()

	_, port, err := net.SplitHostPort(srv.Listener.Addr().String())
	require.NoError(t, err)

	// SNI is never sent for IP literals, so dial by name.
	tgt := targetFor(t, "tls://localhost:"+port, "/get")
	tgt.Insecure = true

	o := mustNew(t, tgt).Do(context.Background(), 0)
	require.True(t, o.Success, o.Err)
	assert.Equal(t, "localhost", <-sni)
}

func TestStreamProbe_MalformedResponse(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	go func() {
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			go func(conn net.Conn) {
				defer conn.Close()
				buf := make([]byte, 1024)
				_, _ = conn.Read(buf)
				_, _ = conn.Write([]byte("SSH-2.0-OpenSSH\r\n\r\n"))
			}(c)
		}
	}()

	tgt := targetFor(t, "tcp://"+ln.Addr().String(), "/")
	o := mustNew(t, tgt).Do(context.Background(), 0)
	assert.False(t, o.Success)
	assert.Equal(t, KindProtocol, o.Kind)
	assert.Contains(t, o.Err, "malformed response")
}

func TestStreamProbe_Timeout(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	// Accept and never answer.
	go func() {
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			defer c.Close()
		}
	}()

	tgt := targetFor(t, "tcp://"+ln.Addr().String(), "/")
	tgt.Timeout = 80 * time.Millisecond

	o := mustNew(t, tgt).Do(context.Background(), 0)
	assert.False(t, o.Success)
	assert.Equal(t, KindTimeout, o.Kind)
	assert.Less(t, o.Duration, time.Second)
}

func TestFailed_NeverEmptyError(t *testing.T) {
	o := Failed(3, time.Now(), -time.Second, KindNone, nil)
	assert.False(t, o.Success)
	assert.Equal(t, KindTransport, o.Kind)
	assert.Equal(t, "transport", o.Err)
	assert.Equal(t, time.Duration(0), o.Duration)
}
