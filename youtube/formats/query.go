package formats

import (
	"net/url"
	"strings"
)

// url.Values.Encode sorts keys, which would reorder the signed parameters of
// a media URL. These helpers edit the raw query in place instead.

func splitURL(raw string) (base, query, fragment string) {
	if i := strings.IndexByte(raw, '#'); i >= 0 {
		raw, fragment = raw[:i], raw[i:]
	}
	base, query, _ = strings.Cut(raw, "?")
	return base, query, fragment
}

func pairKey(pair string) string {
	k, _, _ := strings.Cut(pair, "=")
	if dk, err := url.QueryUnescape(k); err == nil {
		return dk
	}
	return k
}

// queryParam returns the first value of key in rawURL.
func queryParam(rawURL, key string) (string, bool) {
	_, query, _ := splitURL(rawURL)
	if query == "" {
		return "", false
	}
	for _, pair := range strings.Split(query, "&") {
		if pairKey(pair) != key {
			continue
		}
		_, v, _ := strings.Cut(pair, "=")
		if dv, err := url.QueryUnescape(v); err == nil {
			return dv, true
		}
		return v, true
	}
	return "", false
}

// setQueryParam sets key to value, keeping every other parameter where it
// was. The first occurrence of key is replaced and later ones dropped; a
// missing key is appended.
func setQueryParam(rawURL, key, value string) string {
	base, query, fragment := splitURL(rawURL)
	pair := url.QueryEscape(key) + "=" + url.QueryEscape(value)

	var parts []string
	if query != "" {
		parts = strings.Split(query, "&")
	}
	out := parts[:0]
	replaced := false
	for _, p := range parts {
		if pairKey(p) == key {
			if !replaced {
				out = append(out, pair)
				replaced = true
			}
			continue
		}
		out = append(out, p)
	}
	if !replaced {
		out = append(out, pair)
	}
	return base + "?" + strings.Join(out, "&") + fragment
}
