package money

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCurrency(t *testing.T) {
	c, err := ParseCurrency(" ngn ", USD)
	require.NoError(t, err)
	assert.Equal(t, NGN, c)

	c, err = ParseCurrency("", USD)
	require.NoError(t, err)
	assert.Equal(t, USD, c)

	_, err = ParseCurrency("NAIRA", NGN)
	assert.ErrorIs(t, err, ErrInvalidCurrency)

	_, err = ParseCurrency("N1N", NGN)
	assert.ErrorIs(t, err, ErrInvalidCurrency)
}

func TestAmountValidate(t *testing.T) {
	assert.NoError(t, Amount(1).Validate())
	assert.ErrorIs(t, Amount(0).Validate(), ErrInvalidAmount)
	assert.ErrorIs(t, Amount(-5).Validate(), ErrInvalidAmount)
}

func TestAmountFormat(t *testing.T) {
	assert.Equal(t, "1500.50 NGN", Amount(150050).Format(NGN))
	assert.Equal(t, "0.07 USD", Amount(7).Format(USD))
	assert.Equal(t, "2500 XAF", Amount(2500).Format("XAF"))
}
