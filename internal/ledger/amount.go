package ledger

import (
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

// ToBaseUnits converts a token amount to integer base units for a token
// with the given decimals. Amounts with more precision than the token
// supports are rejected rather than rounded.
func ToBaseUnits(amount decimal.Decimal, decimals int) (*big.Int, error) {
	if amount.IsNegative() {
		return nil, fmt.Errorf("negative amount %s", amount)
	}
	shifted := amount.Shift(int32(decimals))
	if !shifted.Equal(shifted.Truncate(0)) {
		return nil, fmt.Errorf("amount %s exceeds %d decimals", amount, decimals)
	}
	return shifted.BigInt(), nil
}

// FromBaseUnits is the inverse of ToBaseUnits.
func FromBaseUnits(units *big.Int, decimals int) decimal.Decimal {
	if units == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(units, -int32(decimals))
}

func parseBaseUnits(s string) (*big.Int, error) {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok || v.Sign() < 0 {
		return nil, fmt.Errorf("invalid base unit amount %q", s)
	}
	return v, nil
}
