package player

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	utls "github.com/refraction-networking/utls"
	"golang.org/x/net/http2"
	"golang.org/x/net/proxy"
)

// FingerprintChrome selects the Chrome TLS client hello.
const FingerprintChrome = "chrome"

// defaultTransport is a tuned HTTP transport cloned for every Fetcher.
var defaultTransport = &http.Transport{
	Proxy:                 http.ProxyFromEnvironment,
	MaxIdleConns:          100,
	MaxIdleConnsPerHost:   10,
	IdleConnTimeout:       90 * time.Second,
	TLSHandshakeTimeout:   10 * time.Second,
	ExpectContinueTimeout: 1 * time.Second,
	ResponseHeaderTimeout: 10 * time.Second,
	ForceAttemptHTTP2:     true,
	// Bodies are decoded by readBody so gzip, br and deflate all go
	// through one path.
	DisableCompression: true,
	ReadBufferSize:     16 * 1024,
	WriteBufferSize:    16 * 1024,
	DialContext: (&net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}).DialContext,
}

type dialContextFunc func(ctx context.Context, network, addr string) (net.Conn, error)

// buildTransport returns the round tripper for cfg. A bad proxy URL is
// reported; the caller decides whether to continue without it.
func buildTransport(cfg Config) (http.RoundTripper, error) {
	tr := defaultTransport.Clone()
	dial := dialContextFunc(tr.DialContext)

	if cfg.ProxyURL != "" {
		u, err := url.Parse(cfg.ProxyURL)
		if err != nil {
			return tr, fmt.Errorf("parse proxy url: %w", err)
		}
		switch u.Scheme {
		case "socks5", "socks5h":
			d, err := proxy.FromURL(u, proxy.Direct)
			if err != nil {
				return tr, fmt.Errorf("socks5 dialer: %w", err)
			}
			cd, ok := d.(proxy.ContextDialer)
			if !ok {
				return tr, fmt.Errorf("socks5 dialer does not support contexts")
			}
			tr.Proxy = nil
			tr.DialContext = cd.DialContext
			dial = cd.DialContext
		case "http", "https":
			tr.Proxy = http.ProxyURL(u)
		default:
			return tr, fmt.Errorf("unsupported proxy scheme %q", u.Scheme)
		}
	}

	switch strings.ToLower(cfg.Fingerprint) {
	case "":
		return tr, nil
	case FingerprintChrome:
		if tr.Proxy != nil && cfg.ProxyURL != "" {
			// CONNECT tunnelling is not implemented for the utls path.
			return tr, fmt.Errorf("fingerprint %q needs a socks5 proxy or none", cfg.Fingerprint)
		}
		return newUTLSRoundTripper(dial, tr), nil
	default:
		return tr, fmt.Errorf("unknown fingerprint %q", cfg.Fingerprint)
	}
}

// utlsRoundTripper speaks TLS with a Chrome client hello and picks HTTP/2 or
// HTTP/1.1 from the negotiated ALPN protocol.
type utlsRoundTripper struct {
	dial        dialContextFunc
	plain       http.RoundTripper
	h2Transport *http2.Transport
}

func newUTLSRoundTripper(dial dialContextFunc, plain http.RoundTripper) *utlsRoundTripper {
	return &utlsRoundTripper{
		dial:  dial,
		plain: plain,
		h2Transport: &http2.Transport{
			DisableCompression: true,
		},
	}
}

func (t *utlsRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.URL.Scheme != "https" {
		return t.plain.RoundTrip(req)
	}

	addr := req.URL.Host
	if req.URL.Port() == "" {
		addr = net.JoinHostPort(req.URL.Hostname(), "443")
	}
	conn, err := t.dial(req.Context(), "tcp", addr)
	if err != nil {
		return nil, err
	}

	uconn := utls.UClient(conn, &utls.Config{ServerName: req.URL.Hostname()}, utls.HelloChrome_120)
	if err := uconn.HandshakeContext(req.Context()); err != nil {
		_ = conn.Close()
		return nil, err
	}

	if uconn.ConnectionState().NegotiatedProtocol == http2.NextProtoTLS {
		h2Conn, err := t.h2Transport.NewClientConn(uconn)
		if err != nil {
			_ = uconn.Close()
			return nil, err
		}
		resp, err := h2Conn.RoundTrip(req)
		if err != nil {
			_ = uconn.Close()
			return nil, err
		}
		resp.Body = &connCloser{ReadCloser: resp.Body, conn: uconn}
		return resp, nil
	}

	if err := req.Write(uconn); err != nil {
		_ = uconn.Close()
		return nil, err
	}
	resp, err := http.ReadResponse(bufio.NewReader(uconn), req)
	if err != nil {
		_ = uconn.Close()
		return nil, err
	}
	resp.Body = &connCloser{ReadCloser: resp.Body, conn: uconn}
	return resp, nil
}

// connCloser closes the single-use connection with the body.
type connCloser struct {
	io.ReadCloser
	conn net.Conn
}

func (c *connCloser) Close() error {
	err := c.ReadCloser.Close()
	if cerr := c.conn.Close(); err == nil {
		err = cerr
	}
	return err
}
