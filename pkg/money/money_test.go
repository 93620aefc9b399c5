package money

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToMinor(t *testing.T) {
	tests := []struct {
		name     string
		amount   string
		currency string
		want     int64
	}{
		{"two decimals", "59.90", "USD", 5990},
		{"integer", "60", "EUR", 6000},
		{"half up", "10.005", "USD", 1001},
		{"below half", "10.004", "USD", 1000},
		{"zero-decimal currency", "1500", "JPY", 1500},
		{"zero-decimal rounds", "1500.5", "vnd", 1501},
		{"empty", "", "USD", 0},
		{"whitespace", " 1.10 ", "USD", 110},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ToMinor(tt.amount, tt.currency)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestToMinor_Invalid(t *testing.T) {
	_, err := ToMinor("abc", "USD")
	assert.Error(t, err)

	_, err = ToMinor("-1.00", "USD")
	assert.Error(t, err)

	_, err = ToMinor("1e30", "USD")
	assert.Error(t, err)
}

func TestExponent(t *testing.T) {
	assert.Equal(t, int32(2), Exponent("USD"))
	assert.Equal(t, int32(0), Exponent("JPY"))
	assert.Equal(t, int32(2), Exponent(""))
}
