// Package mimeext maps format MIME types to file extensions.
package mimeext

import (
	"strings"
)

const (
	// DefaultExt is the extension used when MIME is unknown or empty.
	DefaultExt = "mp4"

	ExtM4A  = "m4a"
	ExtWebM = "webm"
	ExtOpus = "opus"
	ExtTS   = "ts"
)

// base strips parameters and lowercases the media type.
func base(mime string) string {
	mime = strings.TrimSpace(mime)
	if i := strings.IndexByte(mime, ';'); i >= 0 {
		mime = strings.TrimSpace(mime[:i])
	}
	return strings.ToLower(mime)
}

// codecs returns the lowercased codecs parameter, if any.
func codecs(mime string) string {
	_, params, ok := strings.Cut(mime, ";")
	if !ok {
		return ""
	}
	_, v, ok := strings.Cut(strings.ToLower(params), "codecs=")
	if !ok {
		return ""
	}
	return strings.Trim(strings.TrimSpace(v), `"`)
}

// ExtFromMime returns the file extension (without dot) for mime.
// Unknown types fall back to their subtype, then to DefaultExt.
func ExtFromMime(mime string) string {
	b := base(mime)
	switch b {
	case "":
		return DefaultExt
	case "video/mp4":
		return DefaultExt
	case "audio/mp4":
		return ExtM4A
	case "video/webm", "audio/webm":
		return ExtWebM
	case "video/mp2t":
		return ExtTS
	}
	if _, sub, ok := strings.Cut(b, "/"); ok && sub != "" {
		return sub
	}
	return DefaultExt
}

// Extensions lists every extension a file of this MIME type may be saved
// with, most specific first. audio/webm carrying opus also answers to "opus".
func Extensions(mime string) []string {
	ext := ExtFromMime(mime)
	out := []string{ext}
	if _, sub, ok := strings.Cut(base(mime), "/"); ok && sub != "" && sub != ext {
		out = append(out, sub)
	}
	if base(mime) == "audio/webm" && strings.Contains(codecs(mime), "opus") {
		out = append(out, ExtOpus)
	}
	return out
}

// Matches reports whether ext (case-insensitive, optional leading dot) is
// one of the extensions for mime.
func Matches(mime, ext string) bool {
	ext = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(ext)), ".")
	if ext == "" {
		return true
	}
	for _, e := range Extensions(mime) {
		if e == ext {
			return true
		}
	}
	return false
}
