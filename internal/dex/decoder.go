package dex

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"
)

// Decoder turns a raw pool account into pool state.
type Decoder interface {
	Protocol() Protocol
	Decode(dc DecodeContext, address solana.PublicKey, data []byte) (Pool, error)
}

// DecodeContext provides shared dependencies for decoders.
type DecodeContext struct {
	Context  context.Context
	Accounts AccountSource
	Mints    *MintCache
	Logger   *zap.Logger
}

func (dc DecodeContext) ctx() context.Context {
	if dc.Context == nil {
		return context.Background()
	}
	return dc.Context
}

func (dc DecodeContext) logger() *zap.Logger {
	if dc.Logger == nil {
		return zap.NewNop()
	}
	return dc.Logger
}

// DefaultDecoders returns one decoder per supported protocol.
func DefaultDecoders() map[Protocol]Decoder {
	return map[Protocol]Decoder{
		ProtocolRaydiumAMM:  RaydiumAMMDecoder{},
		ProtocolRaydiumCLMM: RaydiumCLMMDecoder{},
		ProtocolMeteoraDLMM: MeteoraDLMMDecoder{},
	}
}

// DecodeAccount fetches a pool account and decodes it with the decoder registered for protocol.
func DecodeAccount(dc DecodeContext, decoders map[Protocol]Decoder, protocol Protocol, address solana.PublicKey) (Pool, error) {
	decoder, ok := decoders[protocol]
	if !ok {
		return nil, decodeErr(protocol, address, fmt.Errorf("no decoder for protocol %q", protocol))
	}
	if dc.Accounts == nil {
		return nil, decodeErr(protocol, address, fmt.Errorf("account source is nil"))
	}

	data, err := dc.Accounts.FetchAccount(dc.ctx(), address)
	if err != nil {
		return nil, decodeErr(protocol, address, fmt.Errorf("fetch pool account: %w", err))
	}
	return decoder.Decode(dc, address, data)
}
