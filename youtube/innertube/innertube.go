// Package innertube asks the YouTube player API for a player response bound
// to a specific player bundle.
//
// The watch page already embeds a player response, but its signatures are
// only guaranteed to match the bundle it was served with. Quoting the
// bundle's signature timestamp makes the API return signatures the bundle's
// decipher routine accepts.
package innertube

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/ytget/ytsig/errs"
	"github.com/ytget/ytsig/internal/logger"
	"github.com/ytget/ytsig/youtube/player"
)

const (
	playerPath            = "/youtubei/v1/player"
	headerContentTypeJSON = "application/json"
	clientNameWEB         = "WEB"
	clientNameAndroid     = "ANDROID"
	defaultClientVersion  = "2.20250312.04.00"
	fallbackClientVersion = "2.0"
)

// clientCodeFromName returns X-YouTube-Client-Name numeric code for known clients
func clientCodeFromName(name string) string {
	switch strings.ToUpper(name) {
	case "WEB":
		return "1"
	case "MWEB":
		return "2"
	case "ANDROID":
		return "3"
	case "IOS":
		return "5"
	case "TVHTML5":
		return "7"
	case "WEB_EMBEDDED_PLAYER":
		return "56"
	case "WEB_CREATOR":
		return "62"
	case "WEB_REMIX":
		return "67"
	case "TVHTML5_SIMPLY":
		return "75"
	case "TVHTML5_SIMPLY_EMBEDDED_PLAYER":
		return "85"
	default:
		return ""
	}
}

// Client for interacting with the YouTube InnerTube API.
type Client struct {
	fetcher    *player.Fetcher
	clientName string
	clientVer  string
	log        *logger.ComponentLogger
}

// New creates a client that sends its requests through f.
func New(f *player.Fetcher) *Client {
	return &Client{
		fetcher:    f,
		clientName: clientNameWEB,
		log:        logger.WithComponent(logger.ComponentPlayer),
	}
}

// WithClient overrides InnerTube client name/version to shape playback URLs.
func (c *Client) WithClient(name, version string) *Client {
	if strings.TrimSpace(name) != "" {
		c.clientName = strings.ToUpper(strings.TrimSpace(name))
	}
	if strings.TrimSpace(version) != "" {
		c.clientVer = strings.TrimSpace(version)
	}
	return c
}

// version picks the client version: explicit, then the one the watch page
// advertises (WEB only), then a default.
func (c *Client) version(page *player.WatchPage) string {
	if c.clientVer != "" {
		return c.clientVer
	}
	if c.clientName != clientNameWEB {
		return fallbackClientVersion
	}
	if page.ClientVersion != "" {
		return page.ClientVersion
	}
	return defaultClientVersion
}

// PlayerResponse requests the player response for the page's video. A
// signatureTimestamp of 0 is left out of the request.
func (c *Client) PlayerResponse(ctx context.Context, page *player.WatchPage, signatureTimestamp int) (json.RawMessage, error) {
	ver := c.version(page)
	clientMap := map[string]any{
		"clientName":    c.clientName,
		"clientVersion": ver,
		"hl":            "en",
		"gl":            "US",
	}
	header := http.Header{}
	header.Set("Content-Type", headerContentTypeJSON)
	header.Set("Origin", c.fetcher.BaseURL)
	header.Set("Referer", c.fetcher.BaseURL+"/watch?v="+page.VideoID)
	// Enrich Android client context to match yt-dlp shape
	if c.clientName == clientNameAndroid {
		clientMap["androidSdkVersion"] = 30
		clientMap["osName"] = "Android"
		clientMap["osVersion"] = "11"
		ua := "com.google.android.youtube/" + ver + " (Linux; U; Android 11) gzip"
		clientMap["userAgent"] = ua
		header.Set("User-Agent", ua)
	}
	if code := clientCodeFromName(c.clientName); code != "" {
		header.Set("X-YouTube-Client-Name", code)
	}
	header.Set("X-YouTube-Client-Version", ver)

	req := map[string]any{
		"context":        map[string]any{"client": clientMap},
		"videoId":        page.VideoID,
		"contentCheckOk": true,
		"racyCheckOk":    true,
	}
	if signatureTimestamp > 0 {
		req["playbackContext"] = map[string]any{
			"contentPlaybackContext": map[string]any{"signatureTimestamp": signatureTimestamp},
		}
	}
	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	endpoint := playerPath + "?prettyPrint=false"
	if page.APIKey != "" {
		endpoint += "&key=" + page.APIKey
	}
	resp, err := c.fetcher.Post(ctx, endpoint, header, body)
	if err != nil {
		return nil, err
	}
	if !json.Valid([]byte(resp)) {
		return nil, fmt.Errorf("%w: player API returned invalid JSON", errs.ErrPlayerFetch)
	}

	c.log.Debug("player API response", map[string]any{
		"video":  page.VideoID,
		"client": c.clientName,
		"sts":    signatureTimestamp,
		"bytes":  len(resp),
	})
	return json.RawMessage(resp), nil
}
