package phone

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name   string
		raw    string
		region string
		want   string
	}{
		{"national with region", "(11) 98765-4321", "BR", "5511987654321"},
		{"international with plus", "+55 11 98765-4321", "US", "5511987654321"},
		{"bare digits with country code", "5511987654321", "US", "5511987654321"},
		{"us number", "(650) 253-0000", "US", "16502530000"},
		{"region defaults", "11 98765-4321", "", "5511987654321"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Normalize(tt.raw, tt.region)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalize_Invalid(t *testing.T) {
	for _, raw := range []string{"", "   ", "abc", "123"} {
		_, err := Normalize(raw, "BR")
		assert.ErrorIs(t, err, ErrInvalid, raw)
	}
}
