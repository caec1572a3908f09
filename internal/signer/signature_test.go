package signer

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeSignature(t *testing.T) {
	r := strings.Repeat("11", 32)
	s := strings.Repeat("22", 32)

	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"hex string", `"0x` + r + s + `1c"`, "0x" + r + s + "1c"},
		{"hex without prefix", `"` + r + s + `1b"`, "0x" + r + s + "1b"},
		{"rsv with hex v", `{"r":"` + r + `","s":"` + s + `","v":"1b"}`, "0x" + r + s + "1b"},
		{"rsv with 0x parts", `{"r":"0x` + r + `","s":"0x` + s + `","v":"0x1c"}`, "0x" + r + s + "1c"},
		{"rsv with numeric v", `{"r":"` + r + `","s":"` + s + `","v":27}`, "0x" + r + s + "1b"},
		{"short r is left padded", `{"r":"ff","s":"` + s + `","v":"1b"}`, "0x" + strings.Repeat("00", 31) + "ff" + s + "1b"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeSignature([]byte(tt.raw))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalizeSignatureRejects(t *testing.T) {
	for _, raw := range []string{`"zz"`, `{"r":"","s":"01","v":"1b"}`, `{"r":"01","s":"01","v":"1ff"}`, `42`} {
		_, err := NormalizeSignature([]byte(raw))
		assert.Error(t, err, raw)
	}
}

func TestChecksumAddress(t *testing.T) {
	got, err := ChecksumAddress("0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaed")
	require.NoError(t, err)
	assert.Equal(t, "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed", got)

	_, err = ChecksumAddress("not-an-address")
	assert.Error(t, err)
}
