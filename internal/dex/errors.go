package dex

import (
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
)

var (
	// ErrInvalidAsset is returned when a quote is requested for an asset the pool does not trade.
	ErrInvalidAsset = errors.New("asset not traded by pool")
	// ErrQuoteUnavailable wraps account fetch failures that happen while quoting.
	ErrQuoteUnavailable = errors.New("quote unavailable")
	ErrNoLiquidity      = errors.New("no liquidity in range")
	ErrInvalidPrice     = errors.New("invalid price")
	// ErrNonPositiveOutput is returned when a price-based quote truncates to zero.
	ErrNonPositiveOutput = errors.New("non-positive output")
	ErrOverflow          = errors.New("arithmetic overflow")
	// ErrDecode matches every *DecodeError.
	ErrDecode = errors.New("decode pool account")
)

// DecodeError reports a pool account that could not be turned into pool state.
type DecodeError struct {
	Pool     solana.PublicKey
	Protocol Protocol
	Err      error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s pool %s: %v", e.Protocol, e.Pool, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// Is lets errors.Is(err, ErrDecode) match any DecodeError.
func (e *DecodeError) Is(target error) bool {
	return target == ErrDecode
}

func decodeErr(protocol Protocol, pool solana.PublicKey, err error) error {
	return &DecodeError{Pool: pool, Protocol: protocol, Err: err}
}

func unavailable(account solana.PublicKey, err error) error {
	return fmt.Errorf("%w: account %s: %w", ErrQuoteUnavailable, account, err)
}
