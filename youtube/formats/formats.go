package formats

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/samber/lo"

	"github.com/ytget/ytsig/types"
)

var heightRe = regexp.MustCompile(`([0-9]{3,4})p`)

func parseHeight(label string) int {
	m := heightRe.FindStringSubmatch(label)
	if len(m) >= 2 {
		if v, err := strconv.Atoi(m[1]); err == nil {
			return v
		}
	}
	return 0
}

// playerResponse is the part of a player response the resolver reads.
type playerResponse struct {
	StreamingData struct {
		Formats         []types.Format `json:"formats"`
		AdaptiveFormats []types.Format `json:"adaptiveFormats"`
		HLSManifestURL  string         `json:"hlsManifestUrl"`
	} `json:"streamingData"`
	VideoDetails struct {
		VideoID       string `json:"videoId"`
		Title         string `json:"title"`
		Author        string `json:"author"`
		LengthSeconds string `json:"lengthSeconds"`
		IsLive        bool   `json:"isLiveContent"`
	} `json:"videoDetails"`
	PlayabilityStatus struct {
		Status string `json:"status"`
		Reason string `json:"reason"`
	} `json:"playabilityStatus"`
}

// ParseFormats reads the progressive and adaptive formats out of a player
// response. Fields the resolver does not use are kept on each format.
func ParseFormats(data []byte) ([]types.Format, error) {
	info, err := ParseVideoInfo(data)
	if err != nil {
		return nil, err
	}
	return info.Formats, nil
}

// ParseVideoInfo reads video details and formats out of a player response.
// A response whose playability status is not OK still yields whatever
// formats it has; the reason is returned as an error only when there are
// none.
func ParseVideoInfo(data []byte) (*types.VideoInfo, error) {
	var pr playerResponse
	if err := json.Unmarshal(data, &pr); err != nil {
		return nil, fmt.Errorf("parse player response: %w", err)
	}

	all := make([]types.Format, 0, len(pr.StreamingData.Formats)+len(pr.StreamingData.AdaptiveFormats))
	all = append(all, pr.StreamingData.Formats...)
	all = append(all, pr.StreamingData.AdaptiveFormats...)

	status := strings.ToUpper(pr.PlayabilityStatus.Status)
	if len(all) == 0 && status != "" && status != "OK" {
		return nil, fmt.Errorf("video not playable: %s: %s", status, pr.PlayabilityStatus.Reason)
	}

	duration, _ := strconv.Atoi(pr.VideoDetails.LengthSeconds)
	return &types.VideoInfo{
		ID:          pr.VideoDetails.VideoID,
		Title:       pr.VideoDetails.Title,
		Author:      pr.VideoDetails.Author,
		Duration:    duration,
		IsLive:      pr.VideoDetails.IsLive,
		Formats:     all,
		ManifestURL: pr.StreamingData.HLSManifestURL,
	}, nil
}

// AudioOnly returns the formats whose MIME type is audio.
func AudioOnly(formats []types.Format) []types.Format {
	return lo.Filter(formats, func(f types.Format, _ int) bool {
		return isAudio(f)
	})
}

// Usable returns the formats that came out of resolution with a URL.
func Usable(formats []types.Format) []types.Format {
	return lo.Filter(formats, func(f types.Format, _ int) bool {
		return hasDirectURL(f) && f.Status != types.StatusFailed
	})
}

// SelectFormat chooses one format according to criteria.
// Supported selectors:
//   - ext: file extension ("mp4", "webm")
//   - itag=NN: specific format by itag (e.g., "itag=22" for 720p MP4)
//   - best: highest quality (height, then bitrate)
//   - worst: lowest quality
//   - height<=NNN: height no more than NNN (e.g., "height<=720")
//   - height>=NNN: height no less than NNN (e.g., "height>=480")
//
// If selector is absent or no match found, heuristic is used:
// prefer itag 22 (720p MP4), then itag 18 (360p MP4),
// then progressive mp4 with avc1, else first available.
// It returns nil only for an empty list.
func SelectFormat(formats []types.Format, quality, ext string) *types.Format {
	if len(formats) == 0 {
		return nil
	}

	filtered := lo.Filter(formats, func(f types.Format, _ int) bool {
		return mimeSubtypeEquals(f, ext)
	})
	if len(filtered) == 0 {
		filtered = formats
	}

	q := strings.TrimSpace(strings.ToLower(quality))
	if strings.HasPrefix(q, "itag=") {
		if it, err := strconv.Atoi(strings.TrimPrefix(q, "itag=")); err == nil {
			if f, ok := lo.Find(filtered, func(f types.Format) bool { return itagEquals(f, it) }); ok {
				return &f
			}
		}
	}

	var minH, maxH int
	if v, ok := strings.CutPrefix(q, "height<="); ok {
		maxH, _ = strconv.Atoi(v)
	}
	if v, ok := strings.CutPrefix(q, "height>="); ok {
		minH, _ = strconv.Atoi(v)
	}
	if minH > 0 || maxH > 0 {
		within := lo.Filter(filtered, func(f types.Format, _ int) bool {
			return withinHeight(f, minH, maxH)
		})
		if len(within) > 0 {
			filtered = within
		}
	}

	switch q {
	case "best":
		best := lo.MaxBy(filtered, betterByHeightThenBitrate)
		return &best
	case "worst":
		worst := lo.MinBy(filtered, func(a, b types.Format) bool {
			return betterByHeightThenBitrate(b, a)
		})
		return &worst
	}

	for _, itag := range []int{22, 18} {
		if f, ok := lo.Find(filtered, func(f types.Format) bool { return f.Itag == itag }); ok {
			return &f
		}
	}
	if f, ok := lo.Find(filtered, func(f types.Format) bool {
		return strings.Contains(f.MimeType, "video/mp4") && strings.Contains(f.MimeType, "avc1")
	}); ok {
		return &f
	}
	if f, ok := lo.Find(filtered, hasDirectURL); ok {
		return &f
	}
	first := filtered[0]
	return &first
}
