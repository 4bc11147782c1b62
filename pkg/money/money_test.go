package money

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func usd(t *testing.T) Currency {
	t.Helper()
	c, err := NewCurrency("usd", 2)
	require.NoError(t, err)
	return c
}

func TestNewCurrency(t *testing.T) {
	c, err := NewCurrency(" eur ", 2)
	require.NoError(t, err)
	assert.Equal(t, "EUR", c.Code)

	_, err = NewCurrency("EUR", -1)
	assert.ErrorIs(t, err, ErrInvalidScale)

	_, err = NewCurrency("EUR", 19)
	assert.ErrorIs(t, err, ErrInvalidScale)

	_, err = NewCurrency("", 2)
	assert.Error(t, err)
}

func TestToMinor(t *testing.T) {
	c := usd(t)

	tests := []struct {
		name    string
		in      string
		want    int64
		wantErr error
	}{
		{"one cent", "0.01", 1, nil},
		{"whole units", "12", 1200, nil},
		{"trailing zeros", "3.50000", 350, nil},
		{"sub-cent rejected", "0.005", 0, ErrNotRepresentable},
		{"zero rejected", "0", 0, ErrNonPositive},
		{"negative rejected", "-1.00", 0, ErrNonPositive},
		{"overflow", "92233720368547758.08", 0, ErrOverflow},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := c.ToMinor(decimal.RequireFromString(tt.in))
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTotal_ThousandKgAtOneCent(t *testing.T) {
	c := usd(t)

	total, err := c.Total(decimal.NewFromInt(1000), decimal.RequireFromString("0.01"))
	require.NoError(t, err)
	assert.Equal(t, int64(1000), total)
	assert.True(t, c.FromMinor(total).Equal(decimal.RequireFromString("10.00")))
	assert.Equal(t, "10.00 USD", c.Format(total))
}

func TestTotal_ConvertsUnitPriceOnce(t *testing.T) {
	c := usd(t)

	// 0.1 * 0.03 would be 0.003 USD if multiplied first; the unit price is
	// converted to 3 cents and the fractional kg product is rejected.
	_, err := c.Total(decimal.RequireFromString("0.1"), decimal.RequireFromString("0.03"))
	assert.ErrorIs(t, err, ErrNotRepresentable)

	total, err := c.Total(decimal.RequireFromString("2.5"), decimal.RequireFromString("0.04"))
	require.NoError(t, err)
	assert.Equal(t, int64(10), total)
}

func TestTotal_Errors(t *testing.T) {
	c := usd(t)

	_, err := c.Total(decimal.Zero, decimal.RequireFromString("1.00"))
	assert.ErrorIs(t, err, ErrNonPositive)

	_, err = c.Total(decimal.NewFromInt(1), decimal.RequireFromString("0.001"))
	assert.ErrorIs(t, err, ErrNotRepresentable)

	_, err = c.Total(decimal.NewFromInt(1_000_000_000), decimal.RequireFromString("100000000000"))
	assert.ErrorIs(t, err, ErrOverflow)
}

func TestFromMinor_HighScale(t *testing.T) {
	eth, err := NewCurrency("ETH", 18)
	require.NoError(t, err)

	assert.True(t, eth.FromMinor(1_000_000_000_000_000).Equal(decimal.RequireFromString("0.001")))
}
