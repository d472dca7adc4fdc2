package dex

import "fmt"

const (
	tokenAccountAmountOffset = 64
	tokenAccountMinLen       = 72

	mintDecimalsOffset = 44
	mintMinLen         = 45
)

// TokenAccountAmount reads the balance of an SPL token account.
func TokenAccountAmount(data []byte) (uint64, error) {
	if err := requireLen(data, tokenAccountMinLen); err != nil {
		return 0, fmt.Errorf("token account: %w", err)
	}
	return readU64(data, tokenAccountAmountOffset), nil
}

// MintDecimals reads the decimals byte of an SPL mint account.
func MintDecimals(data []byte) (uint8, error) {
	if err := requireLen(data, mintMinLen); err != nil {
		return 0, fmt.Errorf("mint account: %w", err)
	}
	return readU8(data, mintDecimalsOffset), nil
}
