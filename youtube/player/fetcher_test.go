package player

import (
	"bytes"
	"compress/flate"
	"compress/gzip"
	"compress/zlib"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/andybalholm/brotli"

	"github.com/ytget/ytsig/errs"
)

const bundleBody = `var Zx={Ab:function(a){a.reverse()}};`

func encode(t *testing.T, encoding string, body string) []byte {
	t.Helper()
	var buf bytes.Buffer
	var w interface {
		Write([]byte) (int, error)
		Close() error
	}
	switch encoding {
	case "gzip":
		w = gzip.NewWriter(&buf)
	case "br":
		w = brotli.NewWriter(&buf)
	case "deflate":
		w = zlib.NewWriter(&buf)
	case "raw-deflate":
		fw, err := flate.NewWriter(&buf, flate.DefaultCompression)
		if err != nil {
			t.Fatal(err)
		}
		w = fw
	default:
		return []byte(body)
	}
	if _, err := w.Write([]byte(body)); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestFetchDecodesBodies(t *testing.T) {
	tests := []struct {
		name     string
		encoding string
		header   string
	}{
		{name: "identity", encoding: "", header: ""},
		{name: "gzip", encoding: "gzip", header: "gzip"},
		{name: "brotli", encoding: "br", header: "br"},
		{name: "zlib deflate", encoding: "deflate", header: "deflate"},
		{name: "raw deflate", encoding: "raw-deflate", header: "deflate"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload := encode(t, tt.encoding, bundleBody)
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if got := r.Header.Get("Accept-Encoding"); got != "gzip, deflate, br" {
					t.Errorf("Accept-Encoding = %q", got)
				}
				if tt.header != "" {
					w.Header().Set("Content-Encoding", tt.header)
				}
				_, _ = w.Write(payload)
			}))
			defer server.Close()

			f := New(Config{})
			body, err := f.Fetch(context.Background(), server.URL+"/base.js")
			if err != nil {
				t.Fatalf("Fetch() error = %v", err)
			}
			if body != bundleBody {
				t.Errorf("Fetch() = %q, want %q", body, bundleBody)
			}
		})
	}
}

func TestFetchUnsupportedEncoding(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Encoding", "zstd")
		_, _ = w.Write([]byte("x"))
	}))
	defer server.Close()

	_, err := New(Config{Retries: 1}).Fetch(context.Background(), server.URL)
	if !errors.Is(err, errs.ErrPlayerFetch) || !strings.Contains(err.Error(), "zstd") {
		t.Fatalf("Fetch() error = %v", err)
	}
}

func TestFetchRetriesServerErrors(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(bundleBody))
	}))
	defer server.Close()

	body, err := New(Config{Retries: 3}).Fetch(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if body != bundleBody {
		t.Errorf("Fetch() = %q", body)
	}
	if got := hits.Load(); got != 3 {
		t.Errorf("hits = %d, want 3", got)
	}
}

func TestFetchDoesNotRetryClientErrors(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.NotFound(w, r)
	}))
	defer server.Close()

	_, err := New(Config{Retries: 3}).Fetch(context.Background(), server.URL)
	if !errors.Is(err, errs.ErrPlayerFetch) {
		t.Fatalf("Fetch() error = %v, want ErrPlayerFetch", err)
	}
	if got := hits.Load(); got != 1 {
		t.Errorf("hits = %d, want 1", got)
	}
}

func TestFetchContextCanceled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := New(Config{Retries: 10}).Fetch(ctx, server.URL)
	if !errors.Is(err, errs.ErrPlayerFetch) {
		t.Fatalf("Fetch() error = %v", err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("Fetch() ignored cancellation, took %v", elapsed)
	}
}

func TestFetchCachesByURL(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte(r.URL.Path))
	}))
	defer server.Close()

	t.Run("enabled", func(t *testing.T) {
		hits.Store(0)
		f := New(Config{BaseURL: server.URL})
		for i := 0; i < 3; i++ {
			body, err := f.Fetch(context.Background(), "/s/player/abc/base.js")
			if err != nil {
				t.Fatalf("Fetch() error = %v", err)
			}
			if body != "/s/player/abc/base.js" {
				t.Errorf("Fetch() = %q", body)
			}
		}
		if _, err := f.Fetch(context.Background(), server.URL+"/s/player/def/base.js"); err != nil {
			t.Fatal(err)
		}
		if got := hits.Load(); got != 2 {
			t.Errorf("hits = %d, want 2", got)
		}
		if f.cache.len() != 2 {
			t.Errorf("cache entries = %d, want 2", f.cache.len())
		}
	})

	t.Run("disabled", func(t *testing.T) {
		hits.Store(0)
		f := New(Config{BaseURL: server.URL, CacheTTL: -1})
		for i := 0; i < 2; i++ {
			if _, err := f.Fetch(context.Background(), "/base.js"); err != nil {
				t.Fatal(err)
			}
		}
		if got := hits.Load(); got != 2 {
			t.Errorf("hits = %d, want 2", got)
		}
	})
}

func TestBodyCacheExpiry(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	c := newBodyCache(time.Minute)
	c.now = func() time.Time { return now }

	c.set("k", "v")
	if got, ok := c.get("k"); !ok || got != "v" {
		t.Fatalf("get() = %q, %v", got, ok)
	}
	now = now.Add(time.Minute)
	if _, ok := c.get("k"); ok {
		t.Fatal("entry should have expired")
	}
	if c.len() != 0 {
		t.Errorf("expired entry not evicted")
	}
}

func TestFetchFollowsRedirects(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/old.js", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/new.js", http.StatusFound)
	})
	mux.HandleFunc("/new.js", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(bundleBody))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	body, err := New(Config{}).Fetch(context.Background(), server.URL+"/old.js")
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if body != bundleBody {
		t.Errorf("Fetch() = %q", body)
	}
}

const watchHTML = `<html><script>var ytcfg={"jsUrl":"\/s\/player\/1a2b3c\/player_ias.vflset\/en_US\/base.js"};</script>` +
	`<script>var ytInitialPlayerResponse = {"streamingData":{"formats":[{"itag":18,"url":"https://rr.example/v?n=x"}]},"x":"};"};var meta = {};</script></html>`

func TestWatchPage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/watch" || r.URL.Query().Get("v") != "dQw4w9WgXcQ" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(watchHTML))
	}))
	defer server.Close()

	f := New(Config{BaseURL: server.URL})
	page, err := f.WatchPage(context.Background(), "https://youtu.be/dQw4w9WgXcQ")
	if err != nil {
		t.Fatalf("WatchPage() error = %v", err)
	}
	if page.VideoID != "dQw4w9WgXcQ" {
		t.Errorf("VideoID = %q", page.VideoID)
	}
	if want := server.URL + "/s/player/1a2b3c/player_ias.vflset/en_US/base.js"; page.PlayerURL != want {
		t.Errorf("PlayerURL = %q, want %q", page.PlayerURL, want)
	}
	want := `{"streamingData":{"formats":[{"itag":18,"url":"https://rr.example/v?n=x"}]},"x":"};"}`
	if string(page.PlayerResponse) != want {
		t.Errorf("PlayerResponse = %s", page.PlayerResponse)
	}
}

func TestWatchPageErrors(t *testing.T) {
	tests := []struct {
		name string
		page string
	}{
		{name: "no jsUrl", page: `<script>var ytInitialPlayerResponse = {};</script>`},
		{name: "no player response", page: `{"jsUrl":"/s/player/x/base.js"}`},
		{name: "broken player response", page: `{"jsUrl":"/s/player/x/base.js"} var ytInitialPlayerResponse = {"a":`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(tt.page))
			}))
			defer server.Close()

			_, err := New(Config{BaseURL: server.URL}).WatchPage(context.Background(), "dQw4w9WgXcQ")
			if !errors.Is(err, errs.ErrPlayerFetch) {
				t.Errorf("WatchPage() error = %v, want ErrPlayerFetch", err)
			}
		})
	}
}

func TestExtractVideoID(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "dQw4w9WgXcQ", want: "dQw4w9WgXcQ"},
		{in: "https://www.youtube.com/watch?v=dQw4w9WgXcQ&t=10", want: "dQw4w9WgXcQ"},
		{in: "https://m.youtube.com/watch?v=dQw4w9WgXcQ", want: "dQw4w9WgXcQ"},
		{in: "https://youtu.be/dQw4w9WgXcQ", want: "dQw4w9WgXcQ"},
		{in: "https://www.youtube.com/shorts/dQw4w9WgXcQ", want: "dQw4w9WgXcQ"},
		{in: "https://www.youtube.com/embed/dQw4w9WgXcQ?autoplay=1", want: "dQw4w9WgXcQ"},
		{in: "https://example.com/watch?v=dQw4w9WgXcQ", wantErr: true},
		{in: "https://www.youtube.com/watch?v=short", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ExtractVideoID(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ExtractVideoID() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ExtractVideoID() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestBuildTransport(t *testing.T) {
	tests := []struct {
		name     string
		cfg      Config
		wantErr  bool
		wantUTLS bool
	}{
		{name: "default", cfg: Config{}},
		{name: "http proxy", cfg: Config{ProxyURL: "http://127.0.0.1:8080"}},
		{name: "socks5 proxy", cfg: Config{ProxyURL: "socks5://127.0.0.1:1080"}},
		{name: "unsupported proxy", cfg: Config{ProxyURL: "ftp://127.0.0.1"}, wantErr: true},
		{name: "chrome", cfg: Config{Fingerprint: "chrome"}, wantUTLS: true},
		{name: "chrome over socks5", cfg: Config{Fingerprint: "Chrome", ProxyURL: "socks5h://127.0.0.1:1080"}, wantUTLS: true},
		{name: "chrome over http proxy", cfg: Config{Fingerprint: "chrome", ProxyURL: "http://127.0.0.1:8080"}, wantErr: true},
		{name: "unknown fingerprint", cfg: Config{Fingerprint: "netscape"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rt, err := buildTransport(tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("buildTransport() error = %v, wantErr %v", err, tt.wantErr)
			}
			if rt == nil {
				t.Fatal("buildTransport() returned nil transport")
			}
			if _, ok := rt.(*utlsRoundTripper); ok != tt.wantUTLS {
				t.Errorf("utls transport = %v, want %v", ok, tt.wantUTLS)
			}
		})
	}
}

func TestChromeFingerprintPlainHTTP(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(bundleBody))
	}))
	defer server.Close()

	f := New(Config{Fingerprint: FingerprintChrome})
	if _, ok := f.HTTPClient.Transport.(*utlsRoundTripper); !ok {
		t.Fatalf("transport = %T", f.HTTPClient.Transport)
	}
	body, err := f.Fetch(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if body != bundleBody {
		t.Errorf("Fetch() = %q", body)
	}
}

func TestWatchPageInnertubeConfig(t *testing.T) {
	page := `<script>ytcfg.set({"INNERTUBE_API_KEY":"AIzaTest","INNERTUBE_CLIENT_VERSION":"2.20250101.00.00","jsUrl":"/s/player/x/base.js"});` +
		`var ytInitialPlayerResponse = {};</script>`
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(page))
	}))
	defer server.Close()

	wp, err := New(Config{BaseURL: server.URL}).WatchPage(context.Background(), "dQw4w9WgXcQ")
	if err != nil {
		t.Fatalf("WatchPage() error = %v", err)
	}
	if wp.APIKey != "AIzaTest" || wp.ClientVersion != "2.20250101.00.00" {
		t.Errorf("APIKey = %q, ClientVersion = %q", wp.APIKey, wp.ClientVersion)
	}
}

func TestPost(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		if r.Method != http.MethodPost || r.Header.Get("X-Test") != "yes" {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		data, _ := io.ReadAll(r.Body)
		w.Header().Set("Content-Encoding", "gzip")
		_, _ = w.Write(encode(t, "gzip", "echo:"+string(data)))
	}))
	defer server.Close()

	f := New(Config{BaseURL: server.URL})
	f.Retries = 2
	header := http.Header{}
	header.Set("X-Test", "yes")
	got, err := f.Post(context.Background(), "/youtubei/v1/player", header, []byte(`{"a":1}`))
	if err != nil {
		t.Fatalf("Post() error = %v", err)
	}
	if got != `echo:{"a":1}` || hits.Load() != 2 {
		t.Errorf("Post() = %q after %d hits", got, hits.Load())
	}

	_, err = f.Post(context.Background(), "/youtubei/v1/player", nil, []byte(`{}`))
	if !errors.Is(err, errs.ErrPlayerFetch) || !strings.Contains(err.Error(), "POST") {
		t.Errorf("Post() error = %v", err)
	}
}
