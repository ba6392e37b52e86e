// Package fetcher retrieves raw dataset bytes over HTTP, FTP or the local
// filesystem and parses the tabular formats (CSV, XLSX, JSON, ZIP) the map
// pipeline consumes.
package fetcher

import (
	"context"
	"io"
	"net/url"
	"os"
	"strings"

	"github.com/rotisserie/eris"
)

// Fetcher defines the interface for downloading remote data.
type Fetcher interface {
	// Download fetches the URL and returns the response body.
	Download(ctx context.Context, url string) (io.ReadCloser, error)

	// DownloadToFile fetches the URL and writes it to the given path. Returns bytes written.
	DownloadToFile(ctx context.Context, url string, path string) (int64, error)
}

// Router dispatches a dataset reference to the fetcher for its scheme.
// References without a scheme (or with file://) are opened from disk.
type Router struct {
	HTTP Fetcher
	FTP  Fetcher
}

// NewRouter creates a Router from the given HTTP and FTP fetchers.
func NewRouter(httpFetcher, ftpFetcher Fetcher) *Router {
	return &Router{HTTP: httpFetcher, FTP: ftpFetcher}
}

// Open returns a reader for the reference. The caller must close it.
func (r *Router) Open(ctx context.Context, ref string) (io.ReadCloser, error) {
	switch Scheme(ref) {
	case "http", "https":
		if r.HTTP == nil {
			return nil, eris.Errorf("fetcher: no http fetcher for %s", ref)
		}
		return r.HTTP.Download(ctx, ref)
	case "ftp":
		if r.FTP == nil {
			return nil, eris.Errorf("fetcher: no ftp fetcher for %s", ref)
		}
		return r.FTP.Download(ctx, ref)
	case "file", "":
		f, err := os.Open(LocalPath(ref))
		if err != nil {
			return nil, eris.Wrap(err, "fetcher: open local file")
		}
		return f, nil
	default:
		return nil, eris.Errorf("fetcher: unsupported scheme in %q", ref)
	}
}

// Fetch copies the reference to path. Local files are copied as well so
// callers can always work on a private copy.
func (r *Router) Fetch(ctx context.Context, ref, path string) (int64, error) {
	rc, err := r.Open(ctx, ref)
	if err != nil {
		return 0, err
	}
	defer rc.Close() //nolint:errcheck

	out, err := os.Create(path)
	if err != nil {
		return 0, eris.Wrap(err, "fetcher: create file")
	}
	defer out.Close() //nolint:errcheck

	n, err := io.Copy(out, rc)
	if err != nil {
		return n, eris.Wrap(err, "fetcher: write file")
	}
	return n, nil
}

// Scheme returns the lower-cased URL scheme of ref, or "" for plain paths.
// Windows drive letters ("C:\data") are treated as plain paths.
func Scheme(ref string) string {
	u, err := url.Parse(ref)
	if err != nil || len(u.Scheme) <= 1 {
		return ""
	}
	return strings.ToLower(u.Scheme)
}

// LocalPath strips a file:// prefix.
func LocalPath(ref string) string {
	if Scheme(ref) == "file" {
		if u, err := url.Parse(ref); err == nil {
			return u.Path
		}
	}
	return ref
}
