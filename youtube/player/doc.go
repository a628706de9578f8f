// Package player fetches YouTube watch pages and player bundles.
//
// A Fetcher retries transient failures, decodes gzip, br and deflate bodies
// and caches bundles by URL for Config.CacheTTL (a negative TTL disables the
// cache). Setting Config.Fingerprint to "chrome" sends a Chrome TLS client
// hello through utls and speaks HTTP/2 when the server negotiates it.
// Post shares the same transport and retry policy for the player API.
//
// Nothing under youtube/cipher or youtube/formats imports this package; the
// bundle text it returns is all they need.
package player
