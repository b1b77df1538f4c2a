package contentstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/netip"
	"net/url"
	"strings"
	"syscall"
	"time"
)

// Router resolves asset locators to the backend that holds the bytes.
// Writes always go to the primary store.
type Router struct {
	primary Store
	stores  map[string]Store
	web     *URLFetcher
}

func NewRouter(primary Store, others ...Store) *Router {
	r := &Router{
		primary: primary,
		stores:  map[string]Store{primary.Scheme(): primary},
	}
	for _, s := range others {
		r.stores[s.Scheme()] = s
	}
	return r
}

// WithURLFetcher enables plain http(s) locators.
func (r *Router) WithURLFetcher(f *URLFetcher) *Router {
	r.web = f
	return r
}

func (r *Router) Primary() Store { return r.primary }

// Open reads length bytes at offset from the content behind locator, with
// the same span rules as Store.GetRange.
func (r *Router) Open(ctx context.Context, locator string, offset, length int64) (io.ReadCloser, int64, error) {
	scheme, rest, err := ParseLocator(locator)
	if err != nil {
		return nil, 0, err
	}

	if scheme == "http" || scheme == "https" {
		if r.web == nil {
			return nil, 0, fmt.Errorf("%w: no fetcher for %s locators", ErrBadLocator, scheme)
		}
		return r.web.GetRange(ctx, locator, offset, length)
	}

	store, ok := r.stores[scheme]
	if !ok {
		return nil, 0, fmt.Errorf("%w: unknown scheme %q", ErrBadLocator, scheme)
	}
	return store.GetRange(ctx, rest, offset, length)
}

// IsReady probes the primary store.
func (r *Router) IsReady(ctx context.Context) error {
	return r.primary.IsReady(ctx)
}

var errBlockedAddress = fmt.Errorf("%w: address is not public", ErrBadLocator)

// cgnat is the shared address space of RFC 6598.
var cgnat = netip.MustParsePrefix("100.64.0.0/10")

// URLFetcher reads externally hosted videos referenced by URL. Only hosts on
// the allowlist are contacted, and only at public addresses.
type URLFetcher struct {
	client   *http.Client
	hosts    map[string]struct{}
	timeout  time.Duration
	maxBytes int64

	allowPrivate bool
}

func NewURLFetcher(timeout time.Duration, maxBytes int64, allowedHosts []string) *URLFetcher {
	f := &URLFetcher{
		hosts:    make(map[string]struct{}, len(allowedHosts)),
		timeout:  timeout,
		maxBytes: maxBytes,
	}
	for _, h := range allowedHosts {
		if h = strings.ToLower(strings.TrimSpace(h)); h != "" {
			f.hosts[h] = struct{}{}
		}
	}

	dialer := &net.Dialer{Timeout: timeout, Control: f.checkDial}
	f.client = &http.Client{
		Transport: &http.Transport{
			Proxy:                 nil,
			DialContext:           dialer.DialContext,
			TLSHandshakeTimeout:   timeout,
			ResponseHeaderTimeout: timeout,
			MaxIdleConnsPerHost:   4,
		},
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 5 {
				return errors.New("too many redirects")
			}
			return f.checkURL(req.URL)
		},
	}
	return f
}

// GetRange reads a span of the resource at rawURL. See Store.GetRange.
func (f *URLFetcher) GetRange(ctx context.Context, rawURL string, offset, length int64) (io.ReadCloser, int64, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrBadLocator, err)
	}
	if err := f.checkURL(u); err != nil {
		return nil, 0, err
	}

	ctx, cancel, stop := headerDeadline(ctx, f.timeout)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		cancel()
		return nil, 0, fmt.Errorf("%w: %v", ErrBadLocator, err)
	}

	rc, size, err := getRange(f.client, req, offset, length)
	stop()
	if err != nil {
		cancel()
		return nil, 0, err
	}
	if size > f.maxBytes {
		rc.Close()
		cancel()
		return nil, 0, unavailable("fetch", fmt.Errorf("remote content of %d bytes exceeds size limit", size))
	}
	return &cancelOnClose{ReadCloser: rc, cancel: cancel}, size, nil
}

func (f *URLFetcher) checkURL(u *url.URL) error {
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: scheme %q", ErrBadLocator, u.Scheme)
	}
	if _, ok := f.hosts[strings.ToLower(u.Hostname())]; !ok {
		return fmt.Errorf("%w: host %q is not allowed", ErrBadLocator, u.Hostname())
	}
	return nil
}

// checkDial runs after name resolution, so it sees the address actually
// dialled rather than the name in the URL.
func (f *URLFetcher) checkDial(network, address string, _ syscall.RawConn) error {
	if f.allowPrivate {
		return nil
	}
	addrPort, err := netip.ParseAddrPort(address)
	if err != nil {
		return fmt.Errorf("%w: %s", errBlockedAddress, address)
	}
	ip := addrPort.Addr().Unmap()
	if ip.IsLoopback() || ip.IsPrivate() || ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() ||
		ip.IsInterfaceLocalMulticast() || ip.IsMulticast() || ip.IsUnspecified() || cgnat.Contains(ip) {
		return fmt.Errorf("%w: %s", errBlockedAddress, ip)
	}
	return nil
}
