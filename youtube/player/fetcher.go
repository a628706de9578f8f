package player

import (
	"bytes"
	"compress/flate"
	"compress/gzip"
	"compress/zlib"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/andybalholm/brotli"

	"github.com/ytget/ytsig/errs"
	"github.com/ytget/ytsig/internal/logger"
)

const (
	defaultTimeout  = 30 * time.Second
	defaultRetries  = 3
	defaultCacheTTL = 10 * time.Minute
	defaultBaseURL  = "https://www.youtube.com"

	userAgentValue   = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"
	initialBackoff   = 200 * time.Millisecond
	maxBackoff       = 3 * time.Second
	successMinCode   = http.StatusOK                  // 200
	redirectMinCode  = http.StatusMultipleChoices     // 300
	retryableMinCode = http.StatusInternalServerError // 500

	playerResponseMarker = "ytInitialPlayerResponse = "
)

var (
	jsURLRe     = regexp.MustCompile(`"jsUrl":"([^"]+)"`)
	apiKeyRe    = regexp.MustCompile(`"INNERTUBE_API_KEY":"([^"]+)"`)
	clientVerRe = regexp.MustCompile(`"INNERTUBE_CLIENT_VERSION":"([^"]+)"`)
	videoIDRe   = regexp.MustCompile(`^[A-Za-z0-9_-]{11}$`)
)

// Config holds optional fetcher parameters. Zero values use defaults.
type Config struct {
	Timeout     time.Duration
	Retries     int
	UserAgent   string
	ProxyURL    string // http, https, socks5 or socks5h
	Fingerprint string // "" or "chrome"
	CacheTTL    time.Duration
	BaseURL     string
}

// Fetcher downloads watch pages and player bundles.
type Fetcher struct {
	HTTPClient *http.Client
	Retries    int
	UserAgent  string
	BaseURL    string

	cache *bodyCache
	log   *logger.ComponentLogger
}

// WatchPage is what the resolver needs from a watch page. APIKey and
// ClientVersion are empty when the page does not carry them.
type WatchPage struct {
	VideoID        string
	PlayerURL      string
	PlayerResponse json.RawMessage
	APIKey         string
	ClientVersion  string
}

// New creates a Fetcher from cfg. A proxy or fingerprint that cannot be set
// up is logged and the plain transport is used instead.
func New(cfg Config) *Fetcher {
	log := logger.WithComponent(logger.ComponentPlayer)

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	retries := cfg.Retries
	if retries <= 0 {
		retries = defaultRetries
	}
	ua := cfg.UserAgent
	if ua == "" {
		ua = userAgentValue
	}
	ttl := cfg.CacheTTL
	if ttl == 0 {
		ttl = defaultCacheTTL
	}
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = defaultBaseURL
	}

	tr, err := buildTransport(cfg)
	if err != nil {
		log.Warn("transport option ignored", map[string]any{"error": err})
	}

	return &Fetcher{
		HTTPClient: &http.Client{Timeout: timeout, Transport: tr},
		Retries:    retries,
		UserAgent:  ua,
		BaseURL:    base,
		cache:      newBodyCache(ttl),
		log:        log,
	}
}

// Fetch returns the body of the player bundle at playerURL. Relative URLs
// such as "/s/player/.../base.js" are resolved against BaseURL. Bodies are
// cached by absolute URL.
func (f *Fetcher) Fetch(ctx context.Context, playerURL string) (string, error) {
	abs, err := f.absolute(playerURL)
	if err != nil {
		return "", fmt.Errorf("%w: %v", errs.ErrPlayerFetch, err)
	}
	if body, ok := f.cache.get(abs); ok {
		f.log.Debug("player bundle cache hit", map[string]any{"url": abs})
		return body, nil
	}

	body, err := f.get(ctx, abs)
	if err != nil {
		return "", err
	}
	f.cache.set(abs, body)
	f.log.Debug("player bundle fetched", map[string]any{"url": abs, "bytes": len(body)})
	return body, nil
}

// WatchPage loads the watch page for a video ID or URL and returns the
// player bundle URL and the embedded player response.
func (f *Fetcher) WatchPage(ctx context.Context, videoURLOrID string) (*WatchPage, error) {
	id, err := ExtractVideoID(videoURLOrID)
	if err != nil {
		return nil, err
	}
	page, err := f.get(ctx, f.BaseURL+"/watch?v="+url.QueryEscape(id))
	if err != nil {
		return nil, err
	}

	m := jsURLRe.FindStringSubmatch(page)
	if m == nil {
		return nil, fmt.Errorf("%w: jsUrl not found in watch page", errs.ErrPlayerFetch)
	}
	playerURL, err := f.absolute(strings.ReplaceAll(m[1], `\/`, `/`))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrPlayerFetch, err)
	}

	_, rest, ok := strings.Cut(page, playerResponseMarker)
	if !ok {
		return nil, fmt.Errorf("%w: ytInitialPlayerResponse not found in watch page", errs.ErrPlayerFetch)
	}
	var raw json.RawMessage
	if err := json.NewDecoder(strings.NewReader(rest)).Decode(&raw); err != nil {
		return nil, fmt.Errorf("%w: decode ytInitialPlayerResponse: %v", errs.ErrPlayerFetch, err)
	}

	wp := &WatchPage{VideoID: id, PlayerURL: playerURL, PlayerResponse: raw}
	if m := apiKeyRe.FindStringSubmatch(page); m != nil {
		wp.APIKey = m[1]
	}
	if m := clientVerRe.FindStringSubmatch(page); m != nil {
		wp.ClientVersion = m[1]
	}
	f.log.Debug("watch page parsed", map[string]any{"video": id, "player": playerURL})
	return wp, nil
}

// Post sends body to rawURL with the fetcher's retry policy and returns the
// decoded response. Relative URLs are resolved against BaseURL. Responses
// are not cached.
func (f *Fetcher) Post(ctx context.Context, rawURL string, header http.Header, body []byte) (string, error) {
	abs, err := f.absolute(rawURL)
	if err != nil {
		return "", fmt.Errorf("%w: %v", errs.ErrPlayerFetch, err)
	}
	return f.do(ctx, http.MethodPost, abs, header, body)
}

func (f *Fetcher) absolute(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	if u.IsAbs() {
		return u.String(), nil
	}
	base, err := url.Parse(f.BaseURL + "/")
	if err != nil {
		return "", err
	}
	return base.ResolveReference(u).String(), nil
}

func (f *Fetcher) get(ctx context.Context, rawURL string) (string, error) {
	return f.do(ctx, http.MethodGet, rawURL, nil, nil)
}

// do performs a request with a simple retry policy for transient errors
// (HTTP 5xx or network failures) and returns the decoded body.
func (f *Fetcher) do(ctx context.Context, method, rawURL string, header http.Header, body []byte) (string, error) {
	retries := f.Retries
	if retries < 1 {
		retries = 1
	}

	var lastErr error
	backoff := initialBackoff
	for attempt := 0; attempt < retries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return "", fmt.Errorf("%w: %v", errs.ErrPlayerFetch, ctx.Err())
			case <-time.After(backoff):
			}
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
		}

		out, retry, err := f.once(ctx, method, rawURL, header, body)
		if err == nil {
			return out, nil
		}
		lastErr = err
		f.log.Debug("fetch attempt failed", map[string]any{"url": rawURL, "attempt": attempt + 1, "error": err})
		if !retry {
			break
		}
	}
	return "", fmt.Errorf("%w: %v", errs.ErrPlayerFetch, lastErr)
}

// once performs one request. The bool reports whether a failure is worth
// retrying.
func (f *Fetcher) once(ctx context.Context, method, rawURL string, header http.Header, body []byte) (string, bool, error) {
	var reqBody io.Reader
	if body != nil {
		reqBody = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, rawURL, reqBody)
	if err != nil {
		return "", false, err
	}
	ua := f.UserAgent
	if ua == "" {
		ua = userAgentValue
	}
	req.Header.Set("User-Agent", ua)
	req.Header.Set("Accept", "*/*")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("Accept-Encoding", "gzip, deflate, br")
	for k, vs := range header {
		req.Header[k] = vs
	}

	resp, err := f.HTTPClient.Do(req)
	if err != nil {
		return "", ctx.Err() == nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= retryableMinCode {
		return "", true, fmt.Errorf("%s %s: status %d", method, rawURL, resp.StatusCode)
	}
	if resp.StatusCode < successMinCode || resp.StatusCode >= redirectMinCode {
		return "", false, fmt.Errorf("%s %s: status %d", method, rawURL, resp.StatusCode)
	}

	data, err := readBody(resp)
	if err != nil {
		return "", true, err
	}
	return string(data), false, nil
}

// readBody decodes the response according to Content-Encoding.
func readBody(resp *http.Response) ([]byte, error) {
	var reader io.Reader = resp.Body
	switch strings.ToLower(strings.TrimSpace(resp.Header.Get("Content-Encoding"))) {
	case "", "identity":
	case "gzip":
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("gzip reader: %w", err)
		}
		defer gz.Close()
		reader = gz
	case "br":
		reader = brotli.NewReader(resp.Body)
	case "deflate":
		raw, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("read body: %w", err)
		}
		return inflate(raw)
	default:
		return nil, fmt.Errorf("unsupported content encoding %q", resp.Header.Get("Content-Encoding"))
	}

	body, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return body, nil
}

// inflate accepts both zlib-wrapped and raw DEFLATE data; servers send
// either under "deflate".
func inflate(raw []byte) ([]byte, error) {
	if zr, err := zlib.NewReader(bytes.NewReader(raw)); err == nil {
		defer zr.Close()
		if body, err := io.ReadAll(zr); err == nil {
			return body, nil
		}
	}
	fr := flate.NewReader(bytes.NewReader(raw))
	defer fr.Close()
	body, err := io.ReadAll(fr)
	if err != nil {
		return nil, fmt.Errorf("deflate: %w", err)
	}
	return body, nil
}

// ExtractVideoID accepts a bare video ID or a watch, short, embed or
// youtu.be URL.
func ExtractVideoID(videoURLOrID string) (string, error) {
	s := strings.TrimSpace(videoURLOrID)
	if videoIDRe.MatchString(s) {
		return s, nil
	}
	u, err := url.Parse(s)
	if err != nil {
		return "", fmt.Errorf("parse video url: %w", err)
	}

	var id string
	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	switch host {
	case "youtu.be":
		id = strings.Trim(u.Path, "/")
	case "youtube.com", "m.youtube.com", "music.youtube.com", "youtube-nocookie.com":
		switch {
		case u.Path == "/watch":
			id = u.Query().Get("v")
		case strings.HasPrefix(u.Path, "/shorts/"), strings.HasPrefix(u.Path, "/embed/"), strings.HasPrefix(u.Path, "/live/"):
			parts := strings.Split(strings.Trim(u.Path, "/"), "/")
			if len(parts) >= 2 {
				id = parts[1]
			}
		}
	}
	if !videoIDRe.MatchString(id) {
		return "", fmt.Errorf("invalid youtube url %q", videoURLOrID)
	}
	return id, nil
}
