package scan

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/gagliardetto/solana-go"

	"arbScope/internal/config"
	"arbScope/internal/dex"
	"arbScope/internal/registry"
)

// Start is one search root: the asset the chains start and end at, and the
// amount to trade, in minimal units.
type Start struct {
	Asset  solana.PublicKey
	Amount uint64
}

// ParseStarts converts MINT=AMOUNT entries into Starts.
func ParseStarts(inputs []string) ([]Start, error) {
	starts := make([]Start, 0, len(inputs))
	for _, input := range inputs {
		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		mint, amount, ok := strings.Cut(input, "=")
		if !ok {
			return nil, fmt.Errorf("invalid start %q: want MINT=AMOUNT", input)
		}
		asset, err := solana.PublicKeyFromBase58(strings.TrimSpace(mint))
		if err != nil {
			return nil, fmt.Errorf("invalid start mint %q: %w", mint, err)
		}
		value, err := strconv.ParseUint(strings.ReplaceAll(strings.TrimSpace(amount), "_", ""), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid start amount %q: %w", amount, err)
		}
		if value == 0 {
			return nil, fmt.Errorf("invalid start amount %q: must be positive", amount)
		}
		starts = append(starts, Start{Asset: asset, Amount: value})
	}
	return starts, nil
}

// ParsePoolSpecs flattens configured pool groups into registry specs, in
// group order and, within a group, AMM, CLMM then DLMM pools.
func ParsePoolSpecs(groups []config.PoolGroup) ([]registry.PoolSpec, error) {
	var specs []registry.PoolSpec
	for i, group := range groups {
		asset, err := solana.PublicKeyFromBase58(group.AssetKey())
		if err != nil {
			return nil, fmt.Errorf("pools[%d]: invalid asset %q: %w", i, group.AssetKey(), err)
		}
		for _, entry := range []struct {
			protocol  dex.Protocol
			addresses []string
		}{
			{dex.ProtocolRaydiumAMM, group.RaydiumAMM},
			{dex.ProtocolRaydiumCLMM, group.RaydiumCLMM},
			{dex.ProtocolMeteoraDLMM, group.MeteoraDLMM},
		} {
			for _, address := range entry.addresses {
				address = strings.TrimSpace(address)
				if address == "" {
					continue
				}
				key, err := solana.PublicKeyFromBase58(address)
				if err != nil {
					return nil, fmt.Errorf("pools[%d].%s: invalid address %q: %w", i, entry.protocol, address, err)
				}
				specs = append(specs, registry.PoolSpec{Asset: asset, Address: key, Protocol: entry.protocol})
			}
		}
	}
	return specs, nil
}
