package dex

import (
	"fmt"

	"github.com/holiman/uint256"
)

const bpsDenominator = 10_000

// maxPow10 is the largest n with 10^n below 2^256.
const maxPow10 = 77

var (
	q64  = new(uint256.Int).Lsh(uint256.NewInt(1), 64)
	q128 = new(uint256.Int).Lsh(uint256.NewInt(1), 128)
)

func pow10(n int) (*uint256.Int, error) {
	if n < 0 || n > maxPow10 {
		return nil, fmt.Errorf("%w: 10^%d", ErrOverflow, n)
	}
	return new(uint256.Int).Exp(uint256.NewInt(10), uint256.NewInt(uint64(n))), nil
}

// afterFeeBps deducts a basis-point fee, truncating toward zero.
func afterFeeBps(amount uint64, feeBps uint16) *uint256.Int {
	if uint64(feeBps) >= bpsDenominator {
		return new(uint256.Int)
	}
	out := uint256.NewInt(amount)
	out.Mul(out, uint256.NewInt(bpsDenominator-uint64(feeBps)))
	return out.Div(out, uint256.NewInt(bpsDenominator))
}

// mulDiv computes x*y/d with a 512-bit intermediate.
func mulDiv(x, y, d *uint256.Int) (*uint256.Int, error) {
	if d.IsZero() {
		return nil, fmt.Errorf("%w: division by zero", ErrInvalidPrice)
	}
	out, overflow := new(uint256.Int).MulDivOverflow(x, y, d)
	if overflow {
		return nil, ErrOverflow
	}
	return out, nil
}

func mulChecked(x, y *uint256.Int) (*uint256.Int, error) {
	out, overflow := new(uint256.Int).MulOverflow(x, y)
	if overflow {
		return nil, ErrOverflow
	}
	return out, nil
}

// scaleDecimals multiplies num or den by 10^|from-to| so that num/den
// converts an amount with `from` decimals into one with `to` decimals.
func scaleDecimals(num, den *uint256.Int, from, to uint8) (*uint256.Int, *uint256.Int, error) {
	diff := int(to) - int(from)
	if diff == 0 {
		return num, den, nil
	}
	if diff > 0 {
		factor, err := pow10(diff)
		if err != nil {
			return nil, nil, err
		}
		scaled, err := mulChecked(num, factor)
		return scaled, den, err
	}
	factor, err := pow10(-diff)
	if err != nil {
		return nil, nil, err
	}
	scaled, err := mulChecked(den, factor)
	return num, scaled, err
}

// binPriceX64 returns (1 + binStep/10000)^id in Q64.64 fixed point.
func binPriceX64(binStep uint16, id int32) (*uint256.Int, error) {
	step := new(uint256.Int).Lsh(uint256.NewInt(uint64(binStep)), 64)
	step.Div(step, uint256.NewInt(bpsDenominator))
	base := new(uint256.Int).Add(q64, step)

	exp := int64(id)
	if exp < 0 {
		exp = -exp
	}

	result := new(uint256.Int).Set(q64)
	for exp > 0 {
		if exp&1 == 1 {
			product, err := mulChecked(result, base)
			if err != nil {
				return nil, fmt.Errorf("bin price %d: %w", id, err)
			}
			result = product.Rsh(product, 64)
		}
		exp >>= 1
		if exp == 0 {
			break
		}
		squared, err := mulChecked(base, base)
		if err != nil {
			return nil, fmt.Errorf("bin price %d: %w", id, err)
		}
		base = squared.Rsh(squared, 64)
	}

	if id < 0 {
		if result.IsZero() {
			return result, nil
		}
		return new(uint256.Int).Div(q128, result), nil
	}
	return result, nil
}
