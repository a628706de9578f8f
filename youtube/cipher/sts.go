package cipher

import (
	"regexp"
	"strconv"
)

var signatureTimestampRe = regexp.MustCompile(`(?:signatureTimestamp|sts)\s*:\s*(\d{5})`)

// SignatureTimestamp returns the signature timestamp the bundle declares.
// Player API requests quote it so the signatures they return match this
// bundle's decipher routine.
func SignatureTimestamp(bundle string) (int, error) {
	m := signatureTimestampRe.FindStringSubmatch(bundle)
	if m == nil {
		return 0, NewError(ErrCodeAnchorNotFound, "signature timestamp not found")
	}
	sts, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, WrapError(ErrCodeExtractionFailed, "signature timestamp", err)
	}
	return sts, nil
}
