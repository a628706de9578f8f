package cipher

import (
	"errors"
	"testing"

	"github.com/ytget/ytsig/errs"
)

func TestSignatureTimestamp(t *testing.T) {
	tests := []struct {
		name    string
		bundle  string
		want    int
		wantErr bool
	}{
		{name: "named", bundle: `var cfg={signatureTimestamp:20073,x:1};`, want: 20073},
		{name: "short", bundle: `g.yt={sts:19950};`, want: 19950},
		{name: "spaced", bundle: `signatureTimestamp : 20100`, want: 20100},
		{name: "missing", bundle: `var a=1;`, wantErr: true},
		{name: "too short", bundle: `sts:123`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := SignatureTimestamp(tt.bundle)
			if (err != nil) != tt.wantErr {
				t.Fatalf("SignatureTimestamp() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("SignatureTimestamp() = %d, want %d", got, tt.want)
			}
			if tt.wantErr && !errors.Is(err, errs.ErrAnchorNotFound) {
				t.Errorf("error = %v, want ErrAnchorNotFound", err)
			}
		})
	}
}
