package database

import (
	"fmt"
	"math/big"

	"github.com/holiman/uint256"
	"github.com/jackc/pgx/v5/pgtype"
)

var bigTen = big.NewInt(10)

// Numeric converts a wei amount into a NUMERIC parameter. A nil amount is zero.
func Numeric(v *uint256.Int) pgtype.Numeric {
	if v == nil {
		return pgtype.Numeric{Int: big.NewInt(0), Valid: true}
	}
	return pgtype.Numeric{Int: v.ToBig(), Valid: true}
}

// NullableNumeric converts an optional wei amount, mapping nil to SQL NULL.
func NullableNumeric(v *uint256.Int) pgtype.Numeric {
	if v == nil {
		return pgtype.Numeric{}
	}
	return Numeric(v)
}

// Uint256 converts a scanned NUMERIC column into a wei amount.
// NULL scans as zero; negative, fractional, non-finite or out of range values are errors.
func Uint256(n pgtype.Numeric) (*uint256.Int, error) {
	if !n.Valid {
		return new(uint256.Int), nil
	}
	if n.NaN || n.InfinityModifier != pgtype.Finite {
		return nil, fmt.Errorf("numeric value is not finite")
	}

	i := new(big.Int)
	if n.Int != nil {
		i.Set(n.Int)
	}

	switch {
	case n.Exp > 0:
		i.Mul(i, new(big.Int).Exp(bigTen, big.NewInt(int64(n.Exp)), nil))
	case n.Exp < 0:
		divisor := new(big.Int).Exp(bigTen, big.NewInt(int64(-n.Exp)), nil)
		quotient, remainder := new(big.Int).QuoRem(i, divisor, new(big.Int))
		if remainder.Sign() != 0 {
			return nil, fmt.Errorf("numeric value %s has a fractional part", n.Int.String())
		}
		i = quotient
	}

	if i.Sign() < 0 {
		return nil, fmt.Errorf("numeric value %s is negative", i.String())
	}

	v, overflow := uint256.FromBig(i)
	if overflow {
		return nil, fmt.Errorf("numeric value %s overflows 256 bits", i.String())
	}
	return v, nil
}

// NullableUint256 is Uint256 for nullable columns; NULL scans as nil.
func NullableUint256(n pgtype.Numeric) (*uint256.Int, error) {
	if !n.Valid {
		return nil, nil
	}
	return Uint256(n)
}
