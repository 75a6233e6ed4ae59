package netcache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/neurodesk/texttemplate/pkg/texttemplate"
)

// ErrNotFound is returned for URLs the server answers with 404 or 410.
var ErrNotFound = errors.New("remote resource not found")

// Cache is a persistent HTTP cache for remote templates and data files.
// Cached entries are revalidated with ETag/Last-Modified.
type Cache struct {
	Dir     string
	Client  *http.Client
	Logger  *slog.Logger
	Retries int
	// Backoff is the delay before the first retry; it doubles per attempt.
	Backoff time.Duration
}

func New(dir string) *Cache {
	return &Cache{
		Dir:     dir,
		Client:  &http.Client{Timeout: 30 * time.Second},
		Logger:  slog.Default(),
		Retries: 3,
		Backoff: 500 * time.Millisecond,
	}
}

type meta struct {
	URL          string `json:"url"`
	ETag         string `json:"etag,omitempty"`
	LastModified string `json:"last_modified,omitempty"`
	DataFile     string `json:"data_file"`
}

// Get fetches url into the cache and returns the local file path and
// whether the cached copy was reused.
func (c *Cache) Get(ctx context.Context, url string) (string, bool, error) {
	key := hash(url)
	mpath := filepath.Join(c.Dir, key+".json")
	m, haveMeta := c.readMeta(mpath, url)

	var lastErr error
	for attempt := 0; attempt < max(c.Retries, 1); attempt++ {
		if attempt > 0 {
			delay := c.Backoff << (attempt - 1)
			c.logger().Debug("retrying download", "url", url, "attempt", attempt+1, "delay", delay)
			select {
			case <-ctx.Done():
				return "", false, ctx.Err()
			case <-time.After(delay):
			}
		}
		path, fromCache, retry, err := c.fetch(ctx, url, key, mpath, m, haveMeta)
		if err == nil {
			return path, fromCache, nil
		}
		lastErr = err
		if !retry {
			break
		}
	}
	// Serve a stale copy rather than failing when the server is unreachable.
	if haveMeta && !errors.Is(lastErr, ErrNotFound) {
		p := filepath.Join(c.Dir, m.DataFile)
		c.logger().Warn("using stale cache entry", "url", url, "error", lastErr)
		return p, true, nil
	}
	return "", false, lastErr
}

// fetch performs one request. retry reports whether the error is
// transient.
func (c *Cache) fetch(ctx context.Context, url, key, mpath string, m meta, haveMeta bool) (path string, fromCache, retry bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", false, false, err
	}
	if haveMeta {
		if m.ETag != "" {
			req.Header.Set("If-None-Match", m.ETag)
		}
		if m.LastModified != "" {
			req.Header.Set("If-Modified-Since", m.LastModified)
		}
	}
	resp, err := c.client().Do(req)
	if err != nil {
		return "", false, ctx.Err() == nil, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotModified && haveMeta:
		c.logger().Debug("cache hit", "url", url)
		return filepath.Join(c.Dir, m.DataFile), true, false, nil
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		return "", false, false, fmt.Errorf("%w: %s", ErrNotFound, url)
	case resp.StatusCode >= 500:
		return "", false, true, fmt.Errorf("GET %s: HTTP %d", url, resp.StatusCode)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return "", false, false, fmt.Errorf("GET %s: HTTP %d", url, resp.StatusCode)
	}

	dataFile := key + ".data"
	path = filepath.Join(c.Dir, dataFile)
	if err := streamToFile(resp.Body, path, 0o644); err != nil {
		return "", false, true, err
	}
	nm := meta{
		URL:          url,
		ETag:         resp.Header.Get("ETag"),
		LastModified: resp.Header.Get("Last-Modified"),
		DataFile:     dataFile,
	}
	if err := writeMeta(mpath, nm); err != nil {
		return "", false, false, err
	}
	c.logger().Debug("downloaded", "url", url, "path", path)
	return path, false, false, nil
}

func (c *Cache) readMeta(mpath, url string) (meta, bool) {
	var m meta
	b, err := os.ReadFile(mpath)
	if err != nil {
		return m, false
	}
	if err := json.Unmarshal(b, &m); err != nil || m.URL != url || m.DataFile == "" {
		return m, false
	}
	return m, fileExists(filepath.Join(c.Dir, m.DataFile))
}

func (c *Cache) client() *http.Client {
	if c.Client == nil {
		return http.DefaultClient
	}
	return c.Client
}

func (c *Cache) logger() *slog.Logger {
	if c.Logger == nil {
		return slog.Default()
	}
	return c.Logger
}

// ReadString fetches url through the cache and returns its content.
func (c *Cache) ReadString(ctx context.Context, url string) (string, error) {
	path, _, err := c.Get(ctx, url)
	if err != nil {
		return "", err
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Loader serves templates by URL through a Cache.
type Loader struct {
	Cache   *Cache
	Context context.Context
}

var _ texttemplate.Loader = Loader{}

func (l Loader) Load(url string) (string, error) {
	ctx := l.Context
	if ctx == nil {
		ctx = context.Background()
	}
	s, err := l.Cache.ReadString(ctx, url)
	if errors.Is(err, ErrNotFound) {
		return "", fmt.Errorf("%w: %s", texttemplate.ErrTemplateNotFound, url)
	}
	return s, err
}

func streamToFile(r io.Reader, dst string, mode os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	tmp := dst + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, mode)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, r); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, dst)
}

func writeMeta(path string, m meta) error {
	b, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func hash(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

func fileExists(p string) bool {
	st, err := os.Stat(p)
	return err == nil && !st.IsDir()
}

// IsURL reports whether s looks like an http(s) URL.
func IsURL(s string) bool {
	return len(s) > 7 && (s[:7] == "http://" || (len(s) > 8 && s[:8] == "https://"))
}
