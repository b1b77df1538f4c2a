package contentstore

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// localFetcher allows the loopback address httptest listens on.
func localFetcher(t *testing.T, srv *httptest.Server, maxBytes int64) *URLFetcher {
	u, err := url.Parse(srv.URL)
	require.NoError(t, err)
	f := NewURLFetcher(time.Second, maxBytes, []string{u.Hostname()})
	f.allowPrivate = true
	return f
}

func openAll(t *testing.T, r *Router, locator string) string {
	t.Helper()
	rc, _, err := r.Open(context.Background(), locator, 0, -1)
	require.NoError(t, err)
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	return string(data)
}

func TestRouterOpen(t *testing.T) {
	mem := NewMemoryStore()
	ctx := context.Background()
	obj, err := mem.Put(ctx, PutInput{Data: []byte("bytes")})
	require.NoError(t, err)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/external.mp4" {
			w.Write([]byte("external"))
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	router := NewRouter(mem).WithURLFetcher(localFetcher(t, srv, 1024))
	assert.Same(t, mem, router.Primary())

	assert.Equal(t, "bytes", openAll(t, router, obj.Locator))
	assert.Equal(t, "external", openAll(t, router, srv.URL+"/external.mp4"))

	rc, size, err := router.Open(ctx, obj.Locator, 2, 2)
	require.NoError(t, err)
	data, _ := io.ReadAll(rc)
	rc.Close()
	assert.Equal(t, "te", string(data))
	assert.Equal(t, int64(5), size)

	_, _, err = router.Open(ctx, srv.URL+"/gone.mp4", 0, -1)
	assert.ErrorIs(t, err, ErrNotFound)

	_, _, err = router.Open(ctx, "ipfs://bafy", 0, -1)
	assert.ErrorIs(t, err, ErrBadLocator)
}

func TestRouterWithoutFetcherRefusesURLs(t *testing.T) {
	_, _, err := NewRouter(NewMemoryStore()).Open(context.Background(), "https://cdn.example.com/a.mp4", 0, -1)
	assert.ErrorIs(t, err, ErrBadLocator)
}

func TestURLFetcherSizeLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(make([]byte, 64))
	}))
	defer srv.Close()

	_, _, err := localFetcher(t, srv, 16).GetRange(context.Background(), srv.URL, 0, -1)
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestURLFetcherOnlyContactsAllowedHosts(t *testing.T) {
	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.Write([]byte("internal"))
	}))
	defer srv.Close()

	ctx := context.Background()

	f := NewURLFetcher(time.Second, 1024, []string{"cdn.example.com"})
	f.allowPrivate = true
	_, _, err := f.GetRange(ctx, srv.URL+"/admin", 0, -1)
	assert.ErrorIs(t, err, ErrBadLocator)

	_, _, err = f.GetRange(ctx, "file:///etc/passwd", 0, -1)
	assert.ErrorIs(t, err, ErrBadLocator)

	// Allowlisted, but the name resolves to loopback.
	u, _ := url.Parse(srv.URL)
	strict := NewURLFetcher(time.Second, 1024, []string{u.Hostname(), "localhost"})
	_, _, err = strict.GetRange(ctx, srv.URL+"/admin", 0, -1)
	assert.ErrorIs(t, err, ErrBadLocator)
	_, _, err = strict.GetRange(ctx, "http://localhost:"+u.Port()+"/admin", 0, -1)
	assert.ErrorIs(t, err, ErrBadLocator)

	assert.Zero(t, hits)
}

func TestURLFetcherRechecksRedirects(t *testing.T) {
	var hits int
	internal := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.Write([]byte("secret"))
	}))
	defer internal.Close()

	public := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "http://localhost:"+mustPort(t, internal)+"/metadata", http.StatusFound)
	}))
	defer public.Close()

	f := localFetcher(t, public, 1024)
	_, _, err := f.GetRange(context.Background(), public.URL+"/video.mp4", 0, -1)
	assert.ErrorIs(t, err, ErrBadLocator)
	assert.Zero(t, hits)
}

func TestCheckDial(t *testing.T) {
	f := NewURLFetcher(time.Second, 1024, nil)

	for _, addr := range []string{
		"127.0.0.1:80",
		"10.1.2.3:443",
		"172.16.0.1:80",
		"192.168.1.1:80",
		"169.254.169.254:80",
		"100.64.0.1:80",
		"0.0.0.0:80",
		"[::1]:443",
		"[fe80::1]:443",
		"[fd00::1]:443",
		"[::ffff:127.0.0.1]:80",
	} {
		assert.ErrorIs(t, f.checkDial("tcp", addr, nil), ErrBadLocator, addr)
	}

	for _, addr := range []string{"93.184.216.34:443", "[2606:2800:220:1::1]:443"} {
		assert.NoError(t, f.checkDial("tcp", addr, nil), addr)
	}
}

func mustPort(t *testing.T, srv *httptest.Server) string {
	u, err := url.Parse(srv.URL)
	require.NoError(t, err)
	return u.Port()
}
