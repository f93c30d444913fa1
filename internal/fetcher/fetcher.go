// Package fetcher downloads a single page and returns it as UTF-8 text.
package fetcher

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"syscall"
	"time"

	"golang.org/x/net/html/charset"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
)

const (
	DefaultTimeout      = 15 * time.Second
	DefaultMaxBodyBytes = 10 << 20

	userAgent      = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	acceptHeader   = "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8"
	acceptLanguage = "en-US,en;q=0.5"
)

// ErrDisallowedAddress is returned when the target resolves to a loopback,
// private, link-local or otherwise internal address and BlockPrivate is set.
var ErrDisallowedAddress = errors.New("disallowed host ip range")

// HTTPStatusError reports a non-2xx answer from the target.
type HTTPStatusError struct {
	Code int
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("HTTP Error %d: %s", e.Code, http.StatusText(e.Code))
}

type Options struct {
	Timeout      time.Duration
	InsecureTLS  bool
	BlockPrivate bool
	MaxBodyBytes int64
}

type Fetcher struct {
	client  *http.Client
	header  http.Header
	maxBody int64
}

func New(opts Options) *Fetcher {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = DefaultMaxBodyBytes
	}
	dialer := &net.Dialer{Timeout: opts.Timeout, KeepAlive: 30 * time.Second}
	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		DialContext:         dialer.DialContext,
		TLSHandshakeTimeout: opts.Timeout,
		MaxIdleConns:        64,
		IdleConnTimeout:     90 * time.Second,
	}
	if opts.BlockPrivate {
		// The guard inspects the dialed address, so a proxy would hide the target.
		dialer.Control = guardAddress
		transport.Proxy = nil
	}
	if opts.InsecureTLS {
		// Certificate chain and hostname checks are both skipped.
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec
	}
	header := make(http.Header)
	header.Set("User-Agent", userAgent)
	header.Set("Accept", acceptHeader)
	header.Set("Accept-Language", acceptLanguage)
	return &Fetcher{
		client:  &http.Client{Transport: transport, Timeout: opts.Timeout},
		header:  header,
		maxBody: opts.MaxBodyBytes,
	}
}

// NormalizeURL trims raw and prefixes https:// when no http(s) scheme is present.
func NormalizeURL(raw string) string {
	raw = strings.TrimSpace(raw)
	lower := strings.ToLower(raw)
	if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") {
		return raw
	}
	return "https://" + raw
}

// Fetch issues one GET for rawURL and returns the decoded body. Bodies larger
// than the configured cap are truncated.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (string, error) {
	target := NormalizeURL(rawURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return "", err
	}
	req.Header = f.header.Clone()

	resp, err := f.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &HTTPStatusError{Code: resp.StatusCode}
	}

	body := io.LimitReader(resp.Body, f.maxBody)
	decoded, err := charset.NewReader(body, resp.Header.Get("Content-Type"))
	if errors.Is(err, io.EOF) { // empty body
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("decode body: %w", err)
	}
	data, err := io.ReadAll(transform.NewReader(decoded, runes.ReplaceIllFormed()))
	if err != nil {
		return "", fmt.Errorf("read body: %w", err)
	}
	return string(data), nil
}

// guardAddress runs after DNS resolution, so address is always an IP:port.
func guardAddress(network, address string, _ syscall.RawConn) error {
	host, _, err := net.SplitHostPort(address)
	if err != nil {
		return err
	}
	if ip := net.ParseIP(host); ip != nil && IsDisallowedIP(ip) {
		return fmt.Errorf("%w: %s", ErrDisallowedAddress, host)
	}
	return nil
}

// IsDisallowedIP returns true if the IP is within private, loopback, link-local,
// multicast, unspecified or unique-local (IPv6) ranges.
func IsDisallowedIP(ip net.IP) bool {
	if ip.IsLoopback() || ip.IsUnspecified() || ip.IsMulticast() || ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() {
		return true
	}
	if v4 := ip.To4(); v4 != nil {
		switch {
		case v4[0] == 10: // 10.0.0.0/8
			return true
		case v4[0] == 172 && v4[1] >= 16 && v4[1] <= 31: // 172.16.0.0/12
			return true
		case v4[0] == 192 && v4[1] == 168: // 192.168.0.0/16
			return true
		case v4[0] == 100 && v4[1]&0xc0 == 64: // 100.64.0.0/10 carrier-grade NAT
			return true
		}
		return false
	}
	// fc00::/7
	return len(ip) == net.IPv6len && ip[0]&0xfe == 0xfc
}
