// Package fetch downloads rule lists and PAC scripts for profiles with a
// remote source.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"switchpac/internal/logger"

	"golang.org/x/net/proxy"
)

// MaxBodySize caps a single download.
const MaxBodySize = 32 << 20

var ErrUnsupportedScheme = errors.New("unsupported url scheme")

type Fetcher struct {
	Timeout  time.Duration
	Retries  int
	ProxyURL string // http://, https://, socks5:// or empty for direct

	client *http.Client
}

func New(timeout time.Duration, retries int, proxyURL string) (*Fetcher, error) {
	f := &Fetcher{Timeout: timeout, Retries: retries, ProxyURL: proxyURL}
	if err := f.init(); err != nil {
		return nil, err
	}
	return f, nil
}

func (f *Fetcher) init() error {
	if f.client != nil {
		return nil
	}
	timeout := f.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	client := &http.Client{Timeout: timeout}

	if f.ProxyURL != "" {
		u, err := url.Parse(f.ProxyURL)
		if err != nil {
			return fmt.Errorf("invalid proxy url: %w", err)
		}
		switch u.Scheme {
		case "http", "https":
			client.Transport = &http.Transport{Proxy: http.ProxyURL(u)}
		case "socks5", "socks5h":
			if u.Scheme == "socks5h" {
				u.Scheme = "socks5"
			}
			dialer, err := proxy.FromURL(u, proxy.Direct)
			if err != nil {
				return fmt.Errorf("failed to create proxy dialer: %w", err)
			}
			client.Transport = &http.Transport{DialContext: dialContext(dialer)}
		default:
			return fmt.Errorf("%w: proxy %q", ErrUnsupportedScheme, u.Scheme)
		}
		logger.L().Debugf("Fetcher using proxy: %s", f.ProxyURL)
	}

	f.client = client
	return nil
}

func dialContext(d proxy.Dialer) func(ctx context.Context, network, addr string) (net.Conn, error) {
	if cd, ok := d.(proxy.ContextDialer); ok {
		return cd.DialContext
	}
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		return d.Dial(network, addr)
	}
}

// Get returns the body at rawURL. file:// URLs are read from disk; http(s)
// downloads are retried on transport errors and 5xx responses.
func (f *Fetcher) Get(ctx context.Context, rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("invalid url: %w", err)
	}
	switch strings.ToLower(u.Scheme) {
	case "file":
		return readFile(u)
	case "http", "https":
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedScheme, u.Scheme)
	}
	if err := f.init(); err != nil {
		return "", err
	}

	for i := 0; i <= f.Retries; i++ {
		logger.L().Debugf("Fetching URL: %s (Attempt %d/%d)", rawURL, i+1, f.Retries+1)
		var body string
		var retry bool
		body, retry, err = f.get(ctx, rawURL)
		if err == nil {
			return body, nil
		}
		if !retry || i == f.Retries {
			break
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(time.Second):
		}
	}
	return "", fmt.Errorf("failed to fetch %s: %w", rawURL, err)
}

func (f *Fetcher) get(ctx context.Context, rawURL string) (string, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", false, err
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return "", ctx.Err() == nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", resp.StatusCode >= 500, fmt.Errorf("non-200 status code: %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxBodySize+1))
	if err != nil {
		return "", true, fmt.Errorf("failed to read body: %w", err)
	}
	if len(data) > MaxBodySize {
		return "", false, fmt.Errorf("body exceeds %d bytes", MaxBodySize)
	}
	return string(data), false, nil
}

func readFile(u *url.URL) (string, error) {
	path := u.Path
	if path == "" {
		path = u.Opaque
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", path, err)
	}
	return string(data), nil
}
