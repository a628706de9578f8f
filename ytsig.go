package ytsig

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/ytget/ytsig/errs"
	"github.com/ytget/ytsig/internal/logger"
	"github.com/ytget/ytsig/types"
	"github.com/ytget/ytsig/youtube/cipher"
	"github.com/ytget/ytsig/youtube/formats"
	"github.com/ytget/ytsig/youtube/innertube"
	"github.com/ytget/ytsig/youtube/player"
)

// Options contains configuration for resolution.
//
// Use chainable setters on Resolver to populate these options.
type Options struct {
	Engine         string
	Concurrency    int
	RateBypass     bool
	AudioOnly      bool
	FormatSelector string
	DesiredExt     string
	HTTP           player.Config

	// ITClientName, when set, takes the player response from the player
	// API instead of the watch page.
	ITClientName    string
	ITClientVersion string
}

// Resolver provides a high-level API for turning format descriptors, or a
// whole video, into playable URLs.
type Resolver struct {
	options Options

	mu      sync.Mutex
	fetcher *player.Fetcher
	log     *logger.ComponentLogger
}

// New creates a new Resolver instance with default options.
func New() *Resolver {
	return &Resolver{log: logger.WithComponent(logger.ComponentApp)}
}

// WithEngine selects the evaluator for extracted routines: "builtin"
// (default), "otto" or "goja".
func (r *Resolver) WithEngine(name string) *Resolver {
	r.options.Engine = strings.TrimSpace(name)
	return r
}

// WithConcurrency sets how many descriptors are evaluated at a time.
func (r *Resolver) WithConcurrency(n int) *Resolver {
	r.options.Concurrency = n
	return r
}

// WithRateBypass appends ratebypass=yes to resolved URLs.
func (r *Resolver) WithRateBypass(on bool) *Resolver {
	r.options.RateBypass = on
	return r
}

// WithAudioOnly keeps only audio formats.
func (r *Resolver) WithAudioOnly(on bool) *Resolver {
	r.options.AudioOnly = on
	return r
}

// WithFormat sets a format selector and optional desired extension for
// ResolveURL. Examples: "itag=22", "best", "height<=480". Extension is
// case-insensitive.
func (r *Resolver) WithFormat(quality, ext string) *Resolver {
	r.options.FormatSelector = quality
	r.options.DesiredExt = strings.TrimPrefix(strings.ToLower(ext), ".")
	return r
}

// WithInnertubeClient takes the player response from the player API with
// the given client name and version ("WEB", "ANDROID", ...) instead of the
// one embedded in the watch page. An empty name restores the default.
func (r *Resolver) WithInnertubeClient(name, version string) *Resolver {
	r.options.ITClientName = strings.TrimSpace(name)
	r.options.ITClientVersion = strings.TrimSpace(version)
	return r
}

// WithHTTPClientConfig sets the configuration for watch page and player
// bundle requests.
func (r *Resolver) WithHTTPClientConfig(cfg player.Config) *Resolver {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.options.HTTP = cfg
	r.fetcher = nil
	return r
}

// WithFetcher shares an existing fetcher, and its bundle cache, with this
// Resolver.
func (r *Resolver) WithFetcher(f *player.Fetcher) *Resolver {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fetcher = f
	return r
}

func (r *Resolver) client() *player.Fetcher {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fetcher == nil {
		r.fetcher = player.New(r.options.HTTP)
	}
	return r.fetcher
}

func (r *Resolver) sessionOptions() ([]formats.Option, error) {
	ev, err := cipher.NewEvaluator(r.options.Engine)
	if err != nil {
		return nil, err
	}
	return []formats.Option{
		formats.WithEvaluator(ev),
		formats.WithConcurrency(r.options.Concurrency),
		formats.WithRateBypass(r.options.RateBypass),
	}, nil
}

// ResolveFormats resolves list against bundle without touching the network.
// The descriptors are rewritten in place unless audio-only filtering is on,
// in which case the audio subset is copied first.
func (r *Resolver) ResolveFormats(bundle string, list []types.Format) ([]types.Format, error) {
	opts, err := r.sessionOptions()
	if err != nil {
		return nil, err
	}
	if r.options.AudioOnly {
		list = formats.AudioOnly(list)
	}
	return formats.Resolve(bundle, list, opts...), nil
}

// ResolveVideo fetches the watch page and player bundle for videoURLOrID
// and returns the video with every format resolved.
func (r *Resolver) ResolveVideo(ctx context.Context, videoURLOrID string) (*types.VideoInfo, error) {
	opts, err := r.sessionOptions()
	if err != nil {
		return nil, err
	}
	f := r.client()

	page, err := f.WatchPage(ctx, videoURLOrID)
	if err != nil {
		return nil, err
	}

	var bundle string
	response := page.PlayerResponse
	if r.options.ITClientName != "" {
		if bundle, err = f.Fetch(ctx, page.PlayerURL); err != nil {
			return nil, err
		}
		sts, err := cipher.SignatureTimestamp(bundle)
		if err != nil {
			r.log.Debug("requesting player response without signature timestamp", map[string]any{"error": err})
		}
		it := innertube.New(f).WithClient(r.options.ITClientName, r.options.ITClientVersion)
		if response, err = it.PlayerResponse(ctx, page, sts); err != nil {
			return nil, err
		}
	}

	info, err := formats.ParseVideoInfo(response)
	if err != nil {
		return nil, fmt.Errorf("video %s: %w", page.VideoID, err)
	}
	if info.ID == "" {
		info.ID = page.VideoID
	}
	info.PlayerURL = page.PlayerURL
	if r.options.AudioOnly {
		info.Formats = formats.AudioOnly(info.Formats)
	}
	if len(info.Formats) == 0 {
		return info, nil
	}

	if bundle == "" {
		if bundle, err = f.Fetch(ctx, page.PlayerURL); err != nil {
			return nil, err
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	session := formats.NewSession(bundle, opts...)
	session.Resolve(info.Formats)
	r.log.Debug("video resolved", map[string]any{
		"video":   info.ID,
		"formats": len(info.Formats),
		"tier":    session.DecipherTier(),
	})
	return info, nil
}

// ResolveURL resolves the video and returns the URL of the format picked by
// the selector set with WithFormat.
func (r *Resolver) ResolveURL(ctx context.Context, videoURLOrID string) (string, *types.VideoInfo, error) {
	info, err := r.ResolveVideo(ctx, videoURLOrID)
	if err != nil {
		return "", nil, err
	}
	selected := formats.SelectFormat(formats.Usable(info.Formats), r.options.FormatSelector, r.options.DesiredExt)
	if selected == nil {
		return "", info, fmt.Errorf("%w: video %s", errs.ErrNoFormat, info.ID)
	}
	return selected.URL, info, nil
}
