package types

import (
	"encoding/json"
	"strconv"
)

// Status reports how far resolution got for a single format.
type Status string

const (
	// StatusPending means the format has not been through a resolver yet.
	StatusPending Status = ""
	// StatusResolved means every transformation the format needed was applied.
	StatusResolved Status = "resolved"
	// StatusPartial means a usable URL exists but a transformation was skipped.
	StatusPartial Status = "partial"
	// StatusFailed means no URL could be produced. The cipher fields are
	// cleared anyway; Errors says why the URL is missing.
	StatusFailed Status = "failed"
)

// Format describes an available media format as delivered in a player
// response. Fields the resolver does not know about are kept in Extra and
// written back unchanged.
type Format struct {
	Itag            int    `json:"itag,omitempty"`
	URL             string `json:"url,omitempty"`
	SignatureCipher string `json:"signatureCipher,omitempty"`
	Cipher          string `json:"cipher,omitempty"`
	S               string `json:"s,omitempty"`
	SP              string `json:"sp,omitempty"`
	MimeType        string `json:"mimeType,omitempty"`
	Quality         string `json:"qualityLabel,omitempty"`
	Bitrate         int    `json:"bitrate,omitempty"`
	ContentLength   string `json:"contentLength,omitempty"`

	Status Status  `json:"status,omitempty"`
	Errors []error `json:"-"`

	Extra map[string]json.RawMessage `json:"-"`
}

var knownFields = []string{
	"itag", "url", "signatureCipher", "cipher", "s", "sp",
	"mimeType", "qualityLabel", "bitrate", "contentLength", "status", "errors",
}

// Size returns the declared content length in bytes, or 0 when unknown.
func (f *Format) Size() int64 {
	n, err := strconv.ParseInt(f.ContentLength, 10, 64)
	if err != nil {
		return 0
	}
	return n
}

// HasCipher reports whether the format still carries an encoded cipher field.
func (f *Format) HasCipher() bool {
	return f.SignatureCipher != "" || f.Cipher != ""
}

// UnmarshalJSON implements json.Unmarshaler
func (f *Format) UnmarshalJSON(data []byte) error {
	type Alias Format
	var a Alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	for _, k := range knownFields {
		delete(raw, k)
	}
	*f = Format(a)
	if len(raw) > 0 {
		f.Extra = raw
	}
	return nil
}

// MarshalJSON implements json.Marshaler
func (f Format) MarshalJSON() ([]byte, error) {
	type Alias Format
	data, err := json.Marshal(Alias(f))
	if err != nil {
		return nil, err
	}
	if len(f.Extra) == 0 && len(f.Errors) == 0 {
		return data, nil
	}

	out := make(map[string]json.RawMessage, len(f.Extra)+8)
	for k, v := range f.Extra {
		out[k] = v
	}
	var known map[string]json.RawMessage
	if err := json.Unmarshal(data, &known); err != nil {
		return nil, err
	}
	for k, v := range known {
		out[k] = v
	}
	if len(f.Errors) > 0 {
		msgs := make([]string, 0, len(f.Errors))
		for _, e := range f.Errors {
			msgs = append(msgs, e.Error())
		}
		b, err := json.Marshal(msgs)
		if err != nil {
			return nil, err
		}
		out["errors"] = b
	}
	return json.Marshal(out)
}

// VideoInfo describes a video and its formats.
type VideoInfo struct {
	ID          string
	Title       string
	Author      string
	Duration    int
	IsLive      bool
	PlayerURL   string
	Formats     []Format
	ManifestURL string
}
