package ytsig

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/ytget/ytsig/errs"
	"github.com/ytget/ytsig/types"
	"github.com/ytget/ytsig/youtube/player"
)

const (
	decipheredSig = "6543217ZYXWVUTSRQPONMLKJIHGFEDCBA"
	audioURL      = "https://r.example/videoplayback?id=1&n=cbab&sig=" + decipheredSig
	videoURL      = "https://r.example/videoplayback?n=cbab&itag=18"
	playerPath    = "/s/player/1a2b3c/player_ias.vflset/en_US/base.js"
)

const playerResponse = `{"playabilityStatus":{"status":"OK"},` +
	`"videoDetails":{"videoId":"dQw4w9WgXcQ","title":"Song","author":"Band","lengthSeconds":"213"},` +
	`"streamingData":{"formats":[{"itag":18,"url":"https://r.example/videoplayback?n=abc&itag=18","mimeType":"video/mp4; codecs=\"avc1.42001E, mp4a.40.2\"","qualityLabel":"360p"}],` +
	`"adaptiveFormats":[{"itag":251,"signatureCipher":"s=ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789&sp=sig&url=https%3A%2F%2Fr.example%2Fvideoplayback%3Fid%3D1%26n%3Dabc","mimeType":"audio/webm; codecs=\"opus\"","bitrate":160000}]}}`

type site struct {
	server  *httptest.Server
	bundle  string
	page    string
	watches atomic.Int32
	bundles atomic.Int32
	api     atomic.Int32
	apiBody string
}

func newSite(t *testing.T, response string) *site {
	t.Helper()
	data, err := os.ReadFile("youtube/cipher/testdata/player_synthetic.js")
	if err != nil {
		t.Fatalf("read bundle: %v", err)
	}
	s := &site{
		bundle: string(data),
		page: `<html><script>var ytcfg={"jsUrl":"` + strings.ReplaceAll(playerPath, "/", `\/`) + `"};</script>` +
			`<script>var ytInitialPlayerResponse = ` + response + `;</script></html>`,
	}
	s.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/watch":
			s.watches.Add(1)
			_, _ = w.Write([]byte(s.page))
		case playerPath:
			s.bundles.Add(1)
			_, _ = w.Write([]byte(s.bundle))
		case "/youtubei/v1/player":
			s.api.Add(1)
			data, _ := io.ReadAll(r.Body)
			s.apiBody = string(data)
			_, _ = w.Write([]byte(response))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(s.server.Close)
	return s
}

func (s *site) resolver() *Resolver {
	return New().WithHTTPClientConfig(player.Config{BaseURL: s.server.URL, Retries: 1})
}

func TestResolveVideo(t *testing.T) {
	for _, engine := range []string{"", "builtin", "otto", "goja"} {
		t.Run("engine="+engine, func(t *testing.T) {
			s := newSite(t, playerResponse)
			info, err := s.resolver().WithEngine(engine).WithConcurrency(2).ResolveVideo(context.Background(), "https://www.youtube.com/watch?v=dQw4w9WgXcQ")
			if err != nil {
				t.Fatalf("ResolveVideo() error = %v", err)
			}
			if info.ID != "dQw4w9WgXcQ" || info.Title != "Song" || info.Duration != 213 {
				t.Errorf("info = %+v", info)
			}
			if info.PlayerURL != s.server.URL+playerPath {
				t.Errorf("PlayerURL = %q", info.PlayerURL)
			}
			if len(info.Formats) != 2 {
				t.Fatalf("formats = %d", len(info.Formats))
			}
			want := map[int]string{18: videoURL, 251: audioURL}
			for _, f := range info.Formats {
				if f.URL != want[f.Itag] || f.Status != types.StatusResolved {
					t.Errorf("format %d = %q (%s), errors %v", f.Itag, f.URL, f.Status, f.Errors)
				}
			}
		})
	}
}

func TestResolveVideoAudioOnly(t *testing.T) {
	s := newSite(t, playerResponse)
	info, err := s.resolver().WithAudioOnly(true).WithRateBypass(true).ResolveVideo(context.Background(), "dQw4w9WgXcQ")
	if err != nil {
		t.Fatalf("ResolveVideo() error = %v", err)
	}
	if len(info.Formats) != 1 || info.Formats[0].Itag != 251 {
		t.Fatalf("formats = %+v", info.Formats)
	}
	if got := info.Formats[0].URL; got != audioURL+"&ratebypass=yes" {
		t.Errorf("URL = %q", got)
	}
}

func TestResolveVideoSharesBundleCache(t *testing.T) {
	s := newSite(t, playerResponse)
	f := player.New(player.Config{BaseURL: s.server.URL})
	for i := 0; i < 3; i++ {
		if _, err := New().WithFetcher(f).ResolveVideo(context.Background(), "dQw4w9WgXcQ"); err != nil {
			t.Fatalf("ResolveVideo() error = %v", err)
		}
	}
	if s.watches.Load() != 3 || s.bundles.Load() != 1 {
		t.Errorf("watch hits = %d, bundle hits = %d", s.watches.Load(), s.bundles.Load())
	}
}

func TestResolveVideoNoFormatsSkipsBundle(t *testing.T) {
	s := newSite(t, `{"playabilityStatus":{"status":"OK"},"videoDetails":{"videoId":"dQw4w9WgXcQ"}}`)
	info, err := s.resolver().ResolveVideo(context.Background(), "dQw4w9WgXcQ")
	if err != nil {
		t.Fatalf("ResolveVideo() error = %v", err)
	}
	if len(info.Formats) != 0 || s.bundles.Load() != 0 {
		t.Errorf("formats = %d, bundle hits = %d", len(info.Formats), s.bundles.Load())
	}
}

func TestResolveVideoErrors(t *testing.T) {
	t.Run("unknown engine", func(t *testing.T) {
		s := newSite(t, playerResponse)
		if _, err := s.resolver().WithEngine("v8").ResolveVideo(context.Background(), "dQw4w9WgXcQ"); err == nil {
			t.Fatal("expected error")
		}
		if s.watches.Load() != 0 {
			t.Error("network used before the engine was validated")
		}
	})

	t.Run("bundle missing", func(t *testing.T) {
		s := newSite(t, playerResponse)
		s.page = strings.Replace(s.page, "base.js", "gone.js", 1)
		_, err := s.resolver().ResolveVideo(context.Background(), "dQw4w9WgXcQ")
		if !errors.Is(err, errs.ErrPlayerFetch) {
			t.Errorf("error = %v, want ErrPlayerFetch", err)
		}
	})

	t.Run("unplayable", func(t *testing.T) {
		s := newSite(t, `{"playabilityStatus":{"status":"LOGIN_REQUIRED","reason":"Sign in"}}`)
		if _, err := s.resolver().ResolveVideo(context.Background(), "dQw4w9WgXcQ"); err == nil {
			t.Error("expected error")
		}
	})

	t.Run("canceled", func(t *testing.T) {
		s := newSite(t, playerResponse)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		if _, err := s.resolver().ResolveVideo(ctx, "dQw4w9WgXcQ"); err == nil {
			t.Error("expected error")
		}
	})

	t.Run("bad video id", func(t *testing.T) {
		s := newSite(t, playerResponse)
		if _, err := s.resolver().ResolveVideo(context.Background(), "https://example.com/"); err == nil {
			t.Error("expected error")
		}
	})
}

func TestResolveURL(t *testing.T) {
	s := newSite(t, playerResponse)

	got, info, err := s.resolver().WithFormat("itag=251", "").ResolveURL(context.Background(), "dQw4w9WgXcQ")
	if err != nil {
		t.Fatalf("ResolveURL() error = %v", err)
	}
	if got != audioURL || info == nil {
		t.Errorf("ResolveURL() = %q", got)
	}

	got, _, err = s.resolver().WithFormat("", ".MP4").ResolveURL(context.Background(), "dQw4w9WgXcQ")
	if err != nil || got != videoURL {
		t.Errorf("ResolveURL(ext mp4) = %q, %v", got, err)
	}
}

func TestResolveURLNoUsableFormat(t *testing.T) {
	s := newSite(t, `{"playabilityStatus":{"status":"OK"},"streamingData":{"formats":[{"itag":18,"mimeType":"video/mp4"}]}}`)
	_, info, err := s.resolver().ResolveURL(context.Background(), "dQw4w9WgXcQ")
	if !errors.Is(err, errs.ErrNoFormat) {
		t.Fatalf("error = %v, want ErrNoFormat", err)
	}
	if info == nil || info.Formats[0].Status != types.StatusFailed {
		t.Errorf("info = %+v", info)
	}
}

func TestResolveFormats(t *testing.T) {
	data, err := os.ReadFile("youtube/cipher/testdata/player_synthetic.js")
	if err != nil {
		t.Fatal(err)
	}
	list := []types.Format{
		{Itag: 18, MimeType: "video/mp4", URL: "https://r.example/videoplayback?n=abc&itag=18"},
		{Itag: 140, MimeType: "audio/mp4", URL: "https://r.example/videoplayback?itag=140"},
	}

	got, err := New().ResolveFormats(string(data), list)
	if err != nil {
		t.Fatalf("ResolveFormats() error = %v", err)
	}
	if &got[0] != &list[0] || got[0].URL != videoURL {
		t.Errorf("got = %+v", got)
	}

	audio, err := New().WithAudioOnly(true).ResolveFormats(string(data), []types.Format{
		{Itag: 18, MimeType: "video/mp4", URL: "https://r.example/v?itag=18"},
		{Itag: 140, MimeType: "audio/mp4", URL: "https://r.example/v?itag=140"},
	})
	if err != nil || len(audio) != 1 || audio[0].Itag != 140 {
		t.Errorf("audio only = %+v, %v", audio, err)
	}

	if _, err := New().WithEngine("lua").ResolveFormats(string(data), list); err == nil {
		t.Error("unknown engine should fail")
	}
}

func TestResolveVideoInnertube(t *testing.T) {
	s := newSite(t, playerResponse)
	s.bundle += "\nvar ytcfg={signatureTimestamp:20073};"
	s.page = strings.Replace(s.page, "var ytInitialPlayerResponse = "+playerResponse, "var ytInitialPlayerResponse = {}", 1)

	info, err := s.resolver().WithInnertubeClient("WEB", "").ResolveVideo(context.Background(), "dQw4w9WgXcQ")
	if err != nil {
		t.Fatalf("ResolveVideo() error = %v", err)
	}
	if s.api.Load() != 1 || s.bundles.Load() != 1 {
		t.Errorf("api hits = %d, bundle hits = %d", s.api.Load(), s.bundles.Load())
	}
	if !strings.Contains(s.apiBody, `"signatureTimestamp":20073`) || !strings.Contains(s.apiBody, `"videoId":"dQw4w9WgXcQ"`) {
		t.Errorf("api request = %s", s.apiBody)
	}
	if len(info.Formats) != 2 {
		t.Fatalf("formats = %+v", info.Formats)
	}
	for _, f := range info.Formats {
		if f.Status != types.StatusResolved {
			t.Errorf("format %d = %q (%s), errors %v", f.Itag, f.URL, f.Status, f.Errors)
		}
	}
}
