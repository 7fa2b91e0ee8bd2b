package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"syscall"
	"time"

	"github.com/go-resty/resty/v2"
)

// ErrBlockedAddress is returned when an import would connect to a loopback,
// private, link-local or otherwise internal address.
var ErrBlockedAddress = errors.New("address not allowed")

// sharedAddressSpace is the carrier-grade NAT range (RFC 6598).
var sharedAddressSpace = func() *net.IPNet {
	_, n, _ := net.ParseCIDR("100.64.0.0/10")
	return n
}()

// ImageImporter downloads images by URL.
type ImageImporter struct {
	client   *resty.Client
	maxBytes int64
}

// ImporterConfig holds configuration for the image importer.
type ImporterConfig struct {
	Timeout  time.Duration
	MaxBytes int64
	// AllowPrivate permits loopback and private destinations. Only tests
	// and trusted deployments should set it.
	AllowPrivate bool
}

// NewImageImporter creates a new importer.
// Parameters:
//   - cfg: timeout, size limit and destination policy for downloads.
//
// Returns:
//   - *ImageImporter: initialized importer.
func NewImageImporter(cfg *ImporterConfig) *ImageImporter {
	dialer := &net.Dialer{
		Timeout:   10 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	if !cfg.AllowPrivate {
		// Checked on every connection, so redirects are covered too
		dialer.Control = publicOnly
	}

	client := resty.New()
	client.SetTransport(&http.Transport{
		DialContext:         dialer.DialContext,
		TLSHandshakeTimeout: 10 * time.Second,
		MaxIdleConns:        10,
		IdleConnTimeout:     90 * time.Second,
	})
	client.SetHeader("Accept", "image/png, image/jpeg")
	client.SetRedirectPolicy(resty.FlexibleRedirectPolicy(5))

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	client.SetTimeout(timeout)

	return &ImageImporter{
		client:   client,
		maxBytes: cfg.MaxBytes,
	}
}

// Fetch downloads the body at rawURL. Only http and https URLs are accepted
// and bodies over the size limit are rejected. Every failure wraps
// ErrInvalidUpload.
func (i *ImageImporter) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: unsupported url %q", ErrInvalidUpload, rawURL)
	}

	resp, err := i.client.R().
		SetContext(ctx).
		SetDoNotParseResponse(true).
		Get(u.String())
	if err != nil {
		if errors.Is(err, ErrBlockedAddress) {
			return nil, fmt.Errorf("%w: %w", ErrInvalidUpload, ErrBlockedAddress)
		}
		return nil, fmt.Errorf("%w: failed to fetch image: %v", ErrInvalidUpload, err)
	}
	body := resp.RawBody()
	defer body.Close()

	if resp.StatusCode() < 200 || resp.StatusCode() >= 300 {
		return nil, fmt.Errorf("%w: fetching image returned HTTP %d", ErrInvalidUpload, resp.StatusCode())
	}

	return readLimited(body, i.maxBytes)
}

// publicOnly is a net.Dialer Control hook refusing internal destinations.
// It sees the resolved address, so DNS names pointing inward are caught.
func publicOnly(_, address string, _ syscall.RawConn) error {
	host, _, err := net.SplitHostPort(address)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrBlockedAddress, address)
	}
	ip := net.ParseIP(host)
	if ip == nil || internalIP(ip) {
		return fmt.Errorf("%w: %s", ErrBlockedAddress, host)
	}
	return nil
}

func internalIP(ip net.IP) bool {
	return ip.IsLoopback() ||
		ip.IsPrivate() ||
		ip.IsUnspecified() ||
		ip.IsLinkLocalUnicast() ||
		ip.IsLinkLocalMulticast() ||
		ip.IsInterfaceLocalMulticast() ||
		ip.IsMulticast() ||
		sharedAddressSpace.Contains(ip)
}

// readLimited reads r fully, failing once more than max bytes arrive. A max
// <= 0 means no limit.
func readLimited(r io.Reader, max int64) ([]byte, error) {
	if max > 0 {
		r = io.LimitReader(r, max+1)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read image: %v", ErrInvalidUpload, err)
	}
	if max > 0 && int64(len(data)) > max {
		return nil, fmt.Errorf("%w: image exceeds %d bytes", ErrInvalidUpload, max)
	}
	return data, nil
}
