package decimal

import (
	"errors"
	"math/big"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustBig(t *testing.T, s string) *big.Int {
	t.Helper()
	n, ok := new(big.Int).SetString(s, 10)
	require.True(t, ok, "bad fixture %q", s)
	return n
}

// =============================================================================
// ToBaseUnits Tests
// =============================================================================

func TestToBaseUnits(t *testing.T) {
	tests := []struct {
		name     string
		human    string
		decimals int32
		expected string
	}{
		{name: "ether", human: "1.5", decimals: 18, expected: "1500000000000000000"},
		{name: "usdc integer", human: "100", decimals: 6, expected: "100000000"},
		{name: "zero decimals", human: "42", decimals: 0, expected: "42"},
		{name: "leading dot", human: ".5", decimals: 1, expected: "5"},
		{name: "trailing dot", human: "7.", decimals: 2, expected: "700"},
		{name: "zero", human: "0", decimals: 18, expected: "0"},
		{name: "zero fraction", human: "0.000", decimals: 0, expected: "0"},
		{name: "trailing zeros ignored", human: "1.50", decimals: 1, expected: "15"},
		{name: "full precision", human: "0.000001", decimals: 6, expected: "1"},
		{name: "leading zeros", human: "007.25", decimals: 2, expected: "725"},
		{name: "max decimals", human: "1", decimals: MaxDecimals, expected: "1" + strings.Repeat("0", MaxDecimals)},
		{
			name:     "beyond float precision",
			human:    "123456789012345678901234567890.123456789012345678",
			decimals: 18,
			expected: "123456789012345678901234567890123456789012345678",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ToBaseUnits(tt.human, tt.decimals)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got.String())
		})
	}
}

func TestToBaseUnits_Precision(t *testing.T) {
	tests := []struct {
		human    string
		decimals int32
		digits   int
	}{
		{human: "1.23", decimals: 1, digits: 2},
		{human: "0.1", decimals: 0, digits: 1},
		{human: "1.0000001", decimals: 6, digits: 7},
		{human: ".1230", decimals: 2, digits: 3},
	}

	for _, tt := range tests {
		t.Run(tt.human, func(t *testing.T) {
			_, err := ToBaseUnits(tt.human, tt.decimals)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrPrecision)

			var precErr *PrecisionError
			require.True(t, errors.As(err, &precErr))
			assert.Equal(t, tt.human, precErr.Amount)
			assert.Equal(t, tt.decimals, precErr.Decimals)
			assert.Equal(t, tt.digits, precErr.Digits)
		})
	}
}

func TestToBaseUnits_InvalidAmount(t *testing.T) {
	inputs := []string{
		"", ".", "-1", "+1", "1e18", "1E2", " 1", "1 ", "1,000", "1.2.3", "0x10", "abc", "1..", "١",
	}

	for _, in := range inputs {
		t.Run(in, func(t *testing.T) {
			_, err := ToBaseUnits(in, 18)
			assert.ErrorIs(t, err, ErrInvalidAmount)
		})
	}
}

func TestToBaseUnits_InvalidDecimals(t *testing.T) {
	_, err := ToBaseUnits("1", -1)
	assert.ErrorIs(t, err, ErrInvalidDecimals)

	_, err = ToBaseUnits("1", MaxDecimals+1)
	assert.ErrorIs(t, err, ErrInvalidDecimals)
}

// =============================================================================
// ToHumanUnits Tests
// =============================================================================

func TestToHumanUnits(t *testing.T) {
	tests := []struct {
		name     string
		base     string
		decimals int32
		expected string
	}{
		{name: "ether", base: "1500000000000000000", decimals: 18, expected: "1.5"},
		{name: "usdc integer", base: "100000000", decimals: 6, expected: "100"},
		{name: "one wei", base: "1", decimals: 18, expected: "0.000000000000000001"},
		{name: "zero", base: "0", decimals: 18, expected: "0"},
		{name: "zero decimals", base: "12345", decimals: 0, expected: "12345"},
		{name: "trailing zeros stripped", base: "1230", decimals: 3, expected: "1.23"},
		{
			name:     "large",
			base:     "115792089237316195423570985008687907853269984665640564039457584007913129639935",
			decimals: 18,
			expected: "115792089237316195423570985008687907853269984665640564039457.584007913129639935",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ToHumanUnits(mustBig(t, tt.base), tt.decimals)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestToHumanUnits_Errors(t *testing.T) {
	_, err := ToHumanUnits(big.NewInt(-1), 6)
	assert.ErrorIs(t, err, ErrInvalidAmount)

	_, err = ToHumanUnits(nil, 6)
	assert.ErrorIs(t, err, ErrInvalidAmount)

	_, err = ToHumanUnits(big.NewInt(1), 78)
	assert.ErrorIs(t, err, ErrInvalidDecimals)
}

// =============================================================================
// Round Trip Tests
// =============================================================================

func TestRoundTrip(t *testing.T) {
	humans := []string{"0", "1", "0.5", "123.456", "999999999999.000001", "0.000001"}

	for _, decimals := range []int32{0, 6, 18} {
		for _, human := range humans {
			base, err := ToBaseUnits(human, decimals)
			if err != nil {
				assert.ErrorIs(t, err, ErrPrecision, "%s/%d", human, decimals)
				continue
			}
			back, err := ToHumanUnits(base, decimals)
			require.NoError(t, err)
			assert.Equal(t, human, back, "decimals=%d", decimals)

			again, err := ToBaseUnits(back, decimals)
			require.NoError(t, err)
			assert.Equal(t, 0, base.Cmp(again))
		}
	}
}

func TestAmount(t *testing.T) {
	a := Amount{Human: "1.5", Decimals: 18}
	base, err := a.BaseUnits()
	require.NoError(t, err)
	assert.Equal(t, "1500000000000000000", base.String())

	back, err := AmountFromBaseUnits(base, 18)
	require.NoError(t, err)
	assert.Equal(t, a, back)
	assert.Equal(t, "1.5", back.String())

	_, err = AmountFromBaseUnits(big.NewInt(-5), 18)
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func TestParseBaseUnits(t *testing.T) {
	n, err := ParseBaseUnits("1500000000000000000")
	require.NoError(t, err)
	assert.Equal(t, "1500000000000000000", n.String())

	for _, in := range []string{"", "-1", "1.5", "0x10", " 1"} {
		_, err := ParseBaseUnits(in)
		assert.ErrorIs(t, err, ErrInvalidAmount, in)
	}
}
