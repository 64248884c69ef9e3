package fetch

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/node-bin-gen/internal/domain/release"
	"github.com/oshokin/node-bin-gen/internal/repository/cache"
)

const payload = `[{"version":"v18.2.0","files":["linux-x64"]}]`

// newETagServer serves payload with an ETag and honours If-None-Match.
func newETagServer(t *testing.T, hits *atomic.Int32) *httptest.Server {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)

		if r.Header.Get("If-None-Match") == `"v1"` {
			w.WriteHeader(http.StatusNotModified)

			return
		}

		w.Header().Set("ETag", `"v1"`)
		_, _ = io.WriteString(w, payload)
	}))
	t.Cleanup(srv.Close)

	return srv
}

func readAll(t *testing.T, resp *Response) string {
	t.Helper()

	defer func() {
		_ = resp.Body.Close()
	}()

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	return string(data)
}

// TestGet_OK streams a 200 body without a cache.
func TestGet_OK(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32

	srv := newETagServer(t, &hits)
	client := New(WithTimeout(5 * time.Second))

	resp, err := client.Get(context.Background(), srv.URL+"/dist/index.json")
	require.NoError(t, err)
	require.False(t, resp.Cached)
	require.Equal(t, payload, readAll(t, resp))
}

// TestGet_BadStatus maps a 404 to a TransportError naming the URL.
func TestGet_BadStatus(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.NotFoundHandler())
	t.Cleanup(srv.Close)

	url := srv.URL + "/dist/v18.2.0/node-v18.2.0-linux-x64.tar.gz"

	_, err := New().Get(context.Background(), url)
	require.ErrorIs(t, err, release.ErrTransport)

	var transportErr *release.TransportError
	require.True(t, errors.As(err, &transportErr))
	require.Equal(t, url, transportErr.URL)
	require.Equal(t, http.StatusNotFound, transportErr.StatusCode)
	require.Contains(t, err.Error(), url)
}

// TestGet_NetworkFailure maps a refused connection to a TransportError.
func TestGet_NetworkFailure(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL + "/dist/index.json"
	srv.Close()

	_, err := New().Get(context.Background(), url)
	require.ErrorIs(t, err, release.ErrTransport)
}

// TestGet_NotModifiedServesCache checks the conditional request round trip.
func TestGet_NotModifiedServesCache(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32

	srv := newETagServer(t, &hits)
	client := New(WithCache(cache.NewFileRepository(t.TempDir())))
	url := srv.URL + "/dist/index.json"

	first, err := client.Get(context.Background(), url)
	require.NoError(t, err)
	require.False(t, first.Cached)
	require.Equal(t, payload, readAll(t, first))

	second, err := client.Get(context.Background(), url)
	require.NoError(t, err)
	require.True(t, second.Cached)
	require.Equal(t, payload, readAll(t, second))
	require.EqualValues(t, 2, hits.Load())
}

// TestGet_PartialReadNotCached discards a body that was closed before EOF.
func TestGet_PartialReadNotCached(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32

	srv := newETagServer(t, &hits)
	repo := cache.NewFileRepository(t.TempDir())
	client := New(WithCache(repo))
	url := srv.URL + "/dist/index.json"

	resp, err := client.Get(context.Background(), url)
	require.NoError(t, err)

	buf := make([]byte, 4)
	_, err = io.ReadFull(resp.Body, buf)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())

	_, err = repo.Lookup(context.Background(), url)
	require.ErrorIs(t, err, cache.ErrNotFound)
}
