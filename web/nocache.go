// Package web contains HTTP middleware for applications served by hutils.
package web

import (
	"io"
	"net/http"
	"time"

	"github.com/felixge/httpsnoop"
)

// CacheControlNoCache is the Cache-Control value set by NoCache.
const CacheControlNoCache = "no-store, no-cache, must-revalidate, post-check=0, pre-check=0, max-age=0"

// now is replaced in tests.
var now = time.Now

// NoCache wraps a handler so that every response it produces tells the browser never to cache
// it. The headers are applied when the handler writes its status line, so they override any
// conflicting caching headers the handler set itself.
func NoCache(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		headersSet := false
		setHeaders := func() {
			if headersSet {
				return
			}
			headersSet = true
			header := w.Header()
			header.Set("Last-Modified", now().UTC().Format(http.TimeFormat))
			header.Set("Cache-Control", CacheControlNoCache)
			header.Set("Pragma", "no-cache")
			header.Set("Expires", "-1")
		}
		wrapped := httpsnoop.Wrap(w, httpsnoop.Hooks{
			WriteHeader: func(next httpsnoop.WriteHeaderFunc) httpsnoop.WriteHeaderFunc {
				return func(code int) {
					setHeaders()
					next(code)
				}
			},
			Write: func(next httpsnoop.WriteFunc) httpsnoop.WriteFunc {
				return func(b []byte) (int, error) {
					setHeaders()
					return next(b)
				}
			},
			ReadFrom: func(next httpsnoop.ReadFromFunc) httpsnoop.ReadFromFunc {
				return func(src io.Reader) (int64, error) {
					setHeaders()
					return next(src)
				}
			},
			Flush: func(next httpsnoop.FlushFunc) httpsnoop.FlushFunc {
				return func() {
					setHeaders()
					next()
				}
			},
		})
		h.ServeHTTP(wrapped, r)
		// a handler that wrote nothing still gets an implicit 200 with our headers
		setHeaders()
	})
}

// NoCacheFunc is NoCache for a plain handler function.
func NoCacheFunc(f http.HandlerFunc) http.Handler {
	return NoCache(f)
}
