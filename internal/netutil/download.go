// Package netutil downloads component archives from remote catalogs over
// HTTPS, with SSRF-safe dialing and size limits.
package netutil

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"
)

type DownloadConfig struct {
	AllowPrivateHosts bool
	MaxRedirects      int
	Timeout           time.Duration
	MaxSize           int64
}

const DefaultMaxArchiveSize = 500 * 1024 * 1024

func DefaultConfig() DownloadConfig {
	return DownloadConfig{
		AllowPrivateHosts: false,
		MaxRedirects:      5,
		Timeout:           60 * time.Second,
		MaxSize:           DefaultMaxArchiveSize,
	}
}

// DownloadResult points at the fetched archive. The SHA256 is recorded so
// callers can log provenance of everything that entered the cache.
type DownloadResult struct {
	Path    string
	SHA256  string
	Size    int64
	Cleanup func()
}

// DownloadArchive fetches a component archive into a temp file.
func DownloadArchive(ctx context.Context, archiveURL string, config DownloadConfig) (*DownloadResult, error) {
	if err := ValidateArchiveURL(archiveURL, config.AllowPrivateHosts); err != nil {
		return nil, fmt.Errorf("invalid archive URL: %w", err)
	}

	client := createSecureClient(config)

	return downloadWithSHA256(ctx, client, archiveURL, config.MaxSize)
}

func ValidateArchiveURL(rawURL string, allowPrivate bool) error {
	if rawURL == "" {
		return fmt.Errorf("empty URL")
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("malformed URL: %w", err)
	}

	// SECURITY: Only allow https:// scheme
	if parsed.Scheme != "https" {
		return fmt.Errorf("only https:// URLs allowed for archive downloads; got %q", parsed.Scheme)
	}

	// SECURITY: Block private/reserved IPs (unless explicitly allowed)
	if !allowPrivate {
		host := strings.ToLower(parsed.Hostname())
		if err := validateHostNotPrivate(host); err != nil {
			return fmt.Errorf("%w (use --unsafe-allow-private-hosts to override)", err)
		}
	}

	return nil
}

func validateHostNotPrivate(host string) error {
	if host == "localhost" {
		return fmt.Errorf("localhost not allowed")
	}

	ip := net.ParseIP(host)
	if ip != nil && IsPrivateOrReservedIP(ip) {
		return fmt.Errorf("private/reserved IP address not allowed: %s", host)
	}

	return nil
}

func IsPrivateOrReservedIP(ip net.IP) bool {
	if ip.IsLoopback() || ip.IsPrivate() || ip.IsUnspecified() || ip.IsMulticast() {
		return true
	}
	if ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() {
		return true
	}

	if ip4 := ip.To4(); ip4 != nil {
		switch {
		case ip4[0] == 0:
			return true
		case ip4[0] == 100 && ip4[1] >= 64 && ip4[1] <= 127: // CGNAT
			return true
		case ip4[0] == 198 && (ip4[1] == 18 || ip4[1] == 19): // benchmarking
			return true
		case ip4[0] == 192 && ip4[1] == 0 && (ip4[2] == 0 || ip4[2] == 2):
			return true
		case ip4[0] == 198 && ip4[1] == 51 && ip4[2] == 100: // TEST-NET-2
			return true
		case ip4[0] == 203 && ip4[1] == 0 && ip4[2] == 113: // TEST-NET-3
			return true
		case ip4[0] >= 240:
			return true
		}
	}

	return false
}

func createSecureClient(config DownloadConfig) *http.Client {
	var dialCtx func(ctx context.Context, network, addr string) (net.Conn, error)
	if config.AllowPrivateHosts {
		dialer := &net.Dialer{Timeout: 30 * time.Second}
		dialCtx = dialer.DialContext
	} else {
		dialCtx = safeDialContext
	}

	maxRedirects := config.MaxRedirects
	if maxRedirects == 0 {
		maxRedirects = 5
	}

	redirectCount := 0

	return &http.Client{
		Timeout: config.Timeout,
		// SECURITY: Validate each redirect target
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			redirectCount++
			if redirectCount > maxRedirects {
				return fmt.Errorf("too many redirects (%d)", redirectCount)
			}

			if err := ValidateArchiveURL(req.URL.String(), config.AllowPrivateHosts); err != nil {
				return fmt.Errorf("redirect to insecure URL blocked: %w", err)
			}

			return nil
		},
		Transport: &http.Transport{
			// SECURITY: Validate resolved IPs at connect time
			DialContext: dialCtx,
			// SECURITY: Disable proxy to prevent SSRF via proxy
			Proxy: nil,
		},
	}
}

func safeDialContext(ctx context.Context, network, addr string) (net.Conn, error) {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, err
	}

	ips, err := net.DefaultResolver.LookupIP(ctx, "ip", host)
	if err != nil {
		return nil, err
	}
	if len(ips) == 0 {
		return nil, fmt.Errorf("no IP addresses found for %s", host)
	}

	for _, ip := range ips {
		if IsPrivateOrReservedIP(ip) {
			return nil, fmt.Errorf("DNS resolved to private/reserved IP address (%s -> %s); connection blocked", host, ip.String())
		}
	}

	dialer := &net.Dialer{Timeout: 30 * time.Second}
	return dialer.DialContext(ctx, network, net.JoinHostPort(ips[0].String(), port))
}

func downloadWithSHA256(ctx context.Context, client *http.Client, archiveURL string, maxSize int64) (*DownloadResult, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", archiveURL, nil)
	if err != nil {
		return nil, err
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download failed with status %d", resp.StatusCode)
	}

	tmpFile, err := os.CreateTemp("", "edupack-archive-*.cpk")
	if err != nil {
		return nil, err
	}

	var body io.Reader = resp.Body
	if maxSize > 0 {
		body = io.LimitReader(resp.Body, maxSize+1)
	}

	h := sha256.New()
	tee := io.TeeReader(body, h)

	size, err := io.Copy(tmpFile, tee)
	if err != nil {
		tmpFile.Close()
		os.Remove(tmpFile.Name())
		return nil, err
	}
	tmpFile.Close()

	if maxSize > 0 && size > maxSize {
		os.Remove(tmpFile.Name())
		return nil, fmt.Errorf("archive exceeds maximum size limit (%d bytes > %d bytes)", size, maxSize)
	}

	return &DownloadResult{
		Path:   tmpFile.Name(),
		SHA256: hex.EncodeToString(h.Sum(nil)),
		Size:   size,
		Cleanup: func() {
			os.Remove(tmpFile.Name())
		},
	}, nil
}
