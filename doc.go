// Package ytsig resolves YouTube format descriptors into playable URLs.
//
// Features:
//   - Signature deciphering and n-throttling transforms extracted from the player bundle
//   - Token fallback when the extracted routines fail, sticky per bundle
//   - Watch page and player bundle fetching with caching
//   - Simple format selection
package ytsig
