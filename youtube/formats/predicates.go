// Package formats parses format descriptors, resolves their URLs against a
// player bundle and selects among them.
package formats

import (
	"strings"

	"github.com/ytget/ytsig/internal/mimeext"
	"github.com/ytget/ytsig/types"
)

// hasDirectURL returns true when the format already contains a resolvable URL.
// Formats without direct URLs need signature deciphering.
func hasDirectURL(format types.Format) bool {
	return strings.TrimSpace(format.URL) != ""
}

// isAudio reports whether the MIME type is audio/*.
func isAudio(format types.Format) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(format.MimeType)), "audio/")
}

// mimeSubtypeEquals checks that desiredExt (e.g., mp4, m4a, webm) names the
// format's MIME subtype or its file extension. The desiredExt is
// case-insensitive and may start with a dot. An empty desiredExt matches.
func mimeSubtypeEquals(format types.Format, desiredExt string) bool {
	return mimeext.Matches(format.MimeType, desiredExt)
}

// itagEquals checks that format's itag matches the specified itag value.
// Returns false if itag is 0 or negative.
func itagEquals(format types.Format, itag int) bool {
	return itag > 0 && format.Itag == itag
}

// withinHeight checks whether the format's Quality label height is within [minHeight, maxHeight].
// A bound of 0 is ignored.
func withinHeight(format types.Format, minHeight int, maxHeight int) bool {
	if minHeight <= 0 && maxHeight <= 0 {
		return true
	}
	h := parseHeight(format.Quality)
	if minHeight > 0 && h < minHeight {
		return false
	}
	if maxHeight > 0 && h > maxHeight {
		return false
	}
	return true
}

// betterByHeightThenBitrate reports whether candidate beats current on
// height, with bitrate as the tiebreaker. Used by the "best" and "worst"
// selectors.
func betterByHeightThenBitrate(candidate types.Format, current types.Format) bool {
	candidateHeight := parseHeight(candidate.Quality)
	currentHeight := parseHeight(current.Quality)
	if candidateHeight != currentHeight {
		return candidateHeight > currentHeight
	}
	return candidate.Bitrate > current.Bitrate
}
