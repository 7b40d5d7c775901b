// Package server exposes resource readers over HTTP through middleware
// functions.
package server

import (
	"errors"
	"log/slog"
	"mime"
	"net/http"
	"path"
	"strconv"
	"strings"

	"github.com/agentic-research/resfs/internal/resource"
)

// Resources are the readers a middleware may serve from.
type Resources struct {
	// All reads the root project first, then its dependencies.
	All          resource.Reader
	RootProject  resource.Reader
	Dependencies resource.Reader
}

// Options are middleware options.
type Options struct {
	Configuration any
}

// MimeInfo describes the media type of a path.
type MimeInfo struct {
	Type        string
	Charset     string
	ContentType string
}

// MiddlewareUtil offers request helpers to middleware.
type MiddlewareUtil struct{}

// Pathname returns the decoded URL path of req.
func (MiddlewareUtil) Pathname(req *http.Request) string {
	if req.URL.Path == "" {
		return "/"
	}
	return req.URL.Path
}

// MimeInfo guesses the media type from the path extension. Text types get a
// UTF-8 charset.
func (MiddlewareUtil) MimeInfo(p string) MimeInfo {
	typ := mime.TypeByExtension(path.Ext(p))
	if typ == "" {
		typ = "application/octet-stream"
	}
	mediaType, params, err := mime.ParseMediaType(typ)
	if err != nil {
		mediaType = typ
	}
	charset := params["charset"]
	if charset == "" && isText(mediaType) {
		charset = "utf-8"
	}
	ct := mediaType
	if charset != "" {
		ct = mime.FormatMediaType(mediaType, map[string]string{"charset": charset})
	}
	return MimeInfo{Type: mediaType, Charset: strings.ToLower(charset), ContentType: ct}
}

func isText(mediaType string) bool {
	switch {
	case strings.HasPrefix(mediaType, "text/"),
		mediaType == "application/javascript",
		mediaType == "application/json",
		mediaType == "application/xml",
		strings.HasSuffix(mediaType, "+xml"),
		strings.HasSuffix(mediaType, "+json"):
		return true
	}
	return false
}

// MiddlewareParams are handed to every middleware.
type MiddlewareParams struct {
	Resources Resources
	Options   Options
	Util      MiddlewareUtil
	Logger    *slog.Logger
}

// MiddlewareFunc builds a handler. next is called for requests the
// middleware does not answer; it may be nil.
type MiddlewareFunc func(p MiddlewareParams, next http.Handler) http.Handler

// Chain applies middleware so that the first one sees a request first.
func Chain(p MiddlewareParams, fns ...MiddlewareFunc) http.Handler {
	var h http.Handler = http.NotFoundHandler()
	for i := len(fns) - 1; i >= 0; i-- {
		h = fns[i](p, h)
	}
	return h
}

// Serve answers GET and HEAD requests from Resources.All. Absent paths are
// passed on to next.
func Serve(p MiddlewareParams, next http.Handler) http.Handler {
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if next == nil {
		next = http.NotFoundHandler()
	}
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodGet && req.Method != http.MethodHead {
			next.ServeHTTP(w, req)
			return
		}
		pathname := p.Util.Pathname(req)
		if len(pathname) > 1 && strings.HasSuffix(pathname, "/") {
			// Directory listings are left to later middleware.
			next.ServeHTTP(w, req)
			return
		}
		if err := resource.ValidatePath(pathname); err != nil {
			http.Error(w, "invalid path", http.StatusBadRequest)
			return
		}

		r, err := p.Resources.All.ByPath(req.Context(), pathname, resource.GlobOptions{})
		if err != nil {
			logger.Error("resource lookup failed", "path", pathname, "error", err)
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		if r == nil {
			next.ServeHTTP(w, req)
			return
		}

		body, err := r.Buffer()
		if err != nil {
			var cse *resource.ContentStateError
			if errors.As(err, &cse) {
				logger.Warn("resource without content", "path", pathname, "error", err)
			} else {
				logger.Error("reading resource failed", "path", pathname, "error", err)
			}
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		info := p.Util.MimeInfo(pathname)
		w.Header().Set("Content-Type", info.ContentType)
		w.Header().Set("Content-Length", strconv.Itoa(len(body)))
		if st := r.StatInfo(); st != nil && !st.ModTime().IsZero() {
			w.Header().Set("Last-Modified", st.ModTime().UTC().Format(http.TimeFormat))
		}
		w.WriteHeader(http.StatusOK)
		if req.Method == http.MethodHead {
			return
		}
		if _, err := w.Write(body); err != nil {
			logger.Debug("writing response failed", "path", pathname, "error", err)
		}
	})
}
