package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/ytget/ytsig"
	"github.com/ytget/ytsig/errs"
	"github.com/ytget/ytsig/internal/logger"
	"github.com/ytget/ytsig/types"
	"github.com/ytget/ytsig/youtube/formats"
	"github.com/ytget/ytsig/youtube/player"
)

func main() {
	var (
		flagEngine      string
		flagAudio       bool
		flagFormat      string
		flagExt         string
		flagConcurrency int
		flagRateBypass  bool
		flagTimeout     time.Duration
		flagRetries     int
		flagUA          string
		flagProxy       string
		flagFingerprint string
		flagPlayer      string
		flagFormats     string
		flagITClient    string
		flagITVersion   string
	)

	flag.StringVar(&flagEngine, "engine", "builtin", "Routine evaluator: builtin, otto or goja")
	flag.BoolVar(&flagAudio, "audio", false, "Resolve audio formats only")
	flag.StringVar(&flagFormat, "format", "", "Format selector; prints only the selected URL (e.g., 'itag=251', 'best', 'height<=480')")
	flag.StringVar(&flagExt, "ext", "", "Desired extension; implies selection (e.g., 'mp4', 'm4a', 'opus')")
	flag.IntVar(&flagConcurrency, "concurrency", 1, "Descriptors evaluated in parallel")
	flag.BoolVar(&flagRateBypass, "ratebypass", false, "Append ratebypass=yes to resolved URLs")
	flag.DurationVar(&flagTimeout, "http-timeout", 30*time.Second, "HTTP timeout (e.g., 30s, 1m)")
	flag.IntVar(&flagRetries, "retries", 3, "HTTP retries for transient errors")
	flag.StringVar(&flagUA, "ua", "", "Override User-Agent header")
	flag.StringVar(&flagProxy, "proxy", "", "Proxy URL (http/https/socks5)")
	flag.StringVar(&flagFingerprint, "fingerprint", "", "TLS fingerprint for HTTPS requests ('chrome')")
	flag.StringVar(&flagPlayer, "player", "", "Player bundle file or URL; resolves -formats offline")
	flag.StringVar(&flagFormats, "formats", "", "JSON file with a format array or player response ('-' for stdin)")
	flag.StringVar(&flagITClient, "client", "", "Take the player response from the player API with this client (e.g., WEB, ANDROID)")
	flag.StringVar(&flagITVersion, "client-version", "", "Player API client version")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [flags] <video_url_or_id>\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "       %s [flags] -player FILE|URL -formats FILE\n", os.Args[0])
		fmt.Fprintln(os.Stderr, "\nFlags:")
		flag.PrintDefaults()
	}

	flag.Parse()
	args := flag.Args()
	offline := flagPlayer != "" || flagFormats != ""
	if offline && (flagPlayer == "" || flagFormats == "" || len(args) > 0) {
		flag.Usage()
		os.Exit(2)
	}
	if !offline && len(args) != 1 {
		flag.Usage()
		os.Exit(2)
	}

	setupLogging()
	if os.Getenv("YTSIG_PPROF") == "1" {
		startPprofServer()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	cfg := player.Config{
		Timeout:     flagTimeout,
		Retries:     flagRetries,
		UserAgent:   flagUA,
		ProxyURL:    flagProxy,
		Fingerprint: flagFingerprint,
	}
	r := ytsig.New().
		WithEngine(flagEngine).
		WithConcurrency(flagConcurrency).
		WithRateBypass(flagRateBypass).
		WithAudioOnly(flagAudio).
		WithFormat(flagFormat, flagExt).
		WithInnertubeClient(flagITClient, flagITVersion).
		WithHTTPClientConfig(cfg)

	var resolved []types.Format
	if offline {
		bundle, err := loadBundle(ctx, player.New(cfg), flagPlayer)
		if err != nil {
			fatal(err)
		}
		list, err := loadFormats(flagFormats)
		if err != nil {
			fatal(err)
		}
		if resolved, err = r.ResolveFormats(bundle, list); err != nil {
			fatal(err)
		}
	} else {
		info, err := r.ResolveVideo(ctx, strings.TrimSpace(args[0]))
		if err != nil {
			fatal(err)
		}
		resolved = info.Formats
	}

	if flagFormat != "" || flagExt != "" {
		selected := formats.SelectFormat(formats.Usable(resolved), flagFormat, flagExt)
		if selected == nil {
			fatal(errs.ErrNoFormat)
		}
		_, _ = fmt.Fprintln(os.Stdout, selected.URL)
		return
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(resolved); err != nil {
		fatal(err)
	}
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}

// setupLogging installs the YTSIG_LOG_* configuration as the global logger.
func setupLogging() {
	l, err := logger.CreateLoggerFromConfig(logger.EnvironmentConfig())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Ignoring log configuration: %v\n", err)
		return
	}
	logger.SetGlobalLogger(l)
}

// startPprofServer starts a pprof server for debugging
func startPprofServer() {
	log := logger.WithComponent(logger.ComponentApp)
	go func() {
		mux := http.NewServeMux()
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)

		log.Info("starting pprof server", map[string]any{"addr": ":6060"})
		if err := http.ListenAndServe(":6060", mux); err != nil {
			log.Error("pprof server stopped", map[string]any{"error": err})
		}
	}()
}

func isURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

func readSource(path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(path)
}

// loadBundle reads the player bundle from a file or fetches it.
func loadBundle(ctx context.Context, f *player.Fetcher, src string) (string, error) {
	if isURL(src) {
		return f.Fetch(ctx, src)
	}
	data, err := readSource(src)
	if err != nil {
		return "", fmt.Errorf("read player bundle: %w", err)
	}
	return string(data), nil
}

// loadFormats accepts either a JSON array of formats or a whole player
// response.
func loadFormats(src string) ([]types.Format, error) {
	data, err := readSource(src)
	if err != nil {
		return nil, fmt.Errorf("read formats: %w", err)
	}
	var list []types.Format
	err = json.Unmarshal(data, &list)
	if err == nil {
		return list, nil
	}
	var typeErr *json.UnmarshalTypeError
	if !errors.As(err, &typeErr) {
		return nil, fmt.Errorf("parse formats: %w", err)
	}
	return formats.ParseFormats(data)
}
