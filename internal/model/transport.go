package model

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os"
	"time"

	"golang.org/x/net/proxy"
)

// ProxyFromEnv returns the first proxy address set in the environment.
func ProxyFromEnv() string {
	for _, key := range []string{
		"ALL_PROXY", "all_proxy",
		"HTTPS_PROXY", "https_proxy",
		"HTTP_PROXY", "http_proxy",
		"SOCKS_PROXY", "socks_proxy",
	} {
		if v := os.Getenv(key); v != "" {
			return v
		}
	}
	return ""
}

// NewHTTPClient builds an HTTP client that routes through proxyAddr when
// set. SOCKS proxies go through a proxy dialer; HTTP proxies use the
// transport's own proxy support.
func NewHTTPClient(proxyAddr string, timeout time.Duration) (*http.Client, error) {
	direct := &net.Dialer{Timeout: 30 * time.Second, KeepAlive: 30 * time.Second}
	transport := &http.Transport{
		DialContext:         direct.DialContext,
		TLSHandshakeTimeout: 10 * time.Second,
		MaxIdleConns:        4,
		IdleConnTimeout:     90 * time.Second,
	}

	if proxyAddr != "" {
		u, err := url.Parse(proxyAddr)
		if err != nil {
			return nil, fmt.Errorf("parsing proxy address %q: %w", proxyAddr, err)
		}
		switch u.Scheme {
		case "socks", "socks5", "socks5h":
			if u.Scheme == "socks" {
				u.Scheme = "socks5"
			}
			d, err := proxy.FromURL(u, direct)
			if err != nil {
				return nil, fmt.Errorf("creating proxy dialer: %w", err)
			}
			transport.DialContext = contextDialer(d)
		case "http", "https":
			transport.Proxy = http.ProxyURL(u)
		default:
			return nil, fmt.Errorf("unsupported proxy scheme %q", u.Scheme)
		}
	}

	return &http.Client{Transport: transport, Timeout: timeout}, nil
}

func contextDialer(d proxy.Dialer) func(ctx context.Context, network, addr string) (net.Conn, error) {
	if cd, ok := d.(proxy.ContextDialer); ok {
		return cd.DialContext
	}
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		return d.Dial(network, addr)
	}
}
