package helpers

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEscapeMarkdownV2(t *testing.T) {
	assert.Equal(t, `BTC/USDT \+5\.00% \(1h\)\!`, EscapeMarkdownV2("BTC/USDT +5.00% (1h)!"))
	assert.Equal(t, `a\\b`, EscapeMarkdownV2(`a\b`))
}

func TestFormatPriceUS(t *testing.T) {
	cases := []struct {
		price float64
		want  string
	}{
		{50000, "50,000"},
		{1234.56, "1,235"},
		{3.14159, "3.14"},
		{0.5, "0.500000"},
		{0.000001234, "0.00000123"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, FormatPriceUS(tc.price, false), "price %v", tc.price)
	}
	assert.Equal(t, `3\.14`, FormatPriceUS(3.14159, true))
}

func TestFormatNumber(t *testing.T) {
	assert.Equal(t, "1,000,001", FormatNumber(1000001, 0))
	assert.Equal(t, "50,000.0000", FormatNumber(50000, 4))
}

func TestFormatSigned(t *testing.T) {
	assert.Equal(t, "+10.00", FormatSigned(10, 2))
	assert.Equal(t, "-3.10", FormatSigned(-3.1, 2))
	assert.Equal(t, "+0.00", FormatSigned(0, 2))
}
