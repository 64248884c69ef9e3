// Package fetch is the HTTP capability used for catalogs and archives.
//
// Client issues GET requests and, when a cache repository is configured,
// turns them into conditional requests: a 304 response is served from the
// cached body and a 200 response is streamed to the caller while it is
// written to the cache. Any other status becomes a *release.TransportError.
package fetch
