package dex

import (
	"encoding/binary"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/holiman/uint256"
)

// Account layouts are fixed-offset little-endian. Callers check the length
// once with requireLen and then read fields without bounds checks.

func requireLen(data []byte, size int) error {
	if len(data) < size {
		return fmt.Errorf("account data too short: got %d bytes, need %d", len(data), size)
	}
	return nil
}

func readU8(data []byte, offset int) uint8 {
	return data[offset]
}

func readU16(data []byte, offset int) uint16 {
	return binary.LittleEndian.Uint16(data[offset:])
}

func readU32(data []byte, offset int) uint32 {
	return binary.LittleEndian.Uint32(data[offset:])
}

func readI32(data []byte, offset int) int32 {
	return int32(binary.LittleEndian.Uint32(data[offset:]))
}

func readU64(data []byte, offset int) uint64 {
	return binary.LittleEndian.Uint64(data[offset:])
}

func readU128(data []byte, offset int) *uint256.Int {
	lo := binary.LittleEndian.Uint64(data[offset:])
	hi := binary.LittleEndian.Uint64(data[offset+8:])
	return &uint256.Int{lo, hi, 0, 0}
}

func readPubkey(data []byte, offset int) solana.PublicKey {
	var key solana.PublicKey
	copy(key[:], data[offset:offset+solana.PublicKeyLength])
	return key
}
