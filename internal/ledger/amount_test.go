package ledger

import (
	"math/big"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToBaseUnits(t *testing.T) {
	units, err := ToBaseUnits(decimal.RequireFromString("10.00"), 6)
	require.NoError(t, err)
	assert.Equal(t, "10000000", units.String())

	units, err = ToBaseUnits(decimal.RequireFromString("1.5"), 18)
	require.NoError(t, err)
	assert.Equal(t, "1500000000000000000", units.String())

	_, err = ToBaseUnits(decimal.RequireFromString("0.0000001"), 6)
	assert.Error(t, err)

	_, err = ToBaseUnits(decimal.RequireFromString("-1"), 6)
	assert.Error(t, err)
}

func TestFromBaseUnits(t *testing.T) {
	amount := FromBaseUnits(big.NewInt(5_000_000), 6)
	assert.True(t, amount.Equal(decimal.RequireFromString("5")))
	assert.True(t, FromBaseUnits(nil, 6).IsZero())
}

func TestAddressHelpers(t *testing.T) {
	assert.True(t, SameAddress("0xAbC", " 0xabc "))
	assert.False(t, SameAddress("", ""))
	assert.True(t, LooksLikeAddress("0x2222222222222222222222222222222222222222"))
	assert.False(t, LooksLikeAddress("3f2504e0-4f89-11d3-9a0c-0305e82c3301"))
}
