package model

// PoolRecord is a decoded pool as written by inspect and stored in Postgres.
// Protocol-specific fields are empty for other protocols.
type PoolRecord struct {
	Address   string `json:"address"`
	Protocol  string `json:"protocol"`
	Asset     string `json:"asset"`
	AssetA    string `json:"asset_a"`
	AssetB    string `json:"asset_b"`
	DecimalsA uint8  `json:"decimals_a"`
	DecimalsB uint8  `json:"decimals_b"`
	FeeBps    uint64 `json:"fee_bps"`
	// Price is asset B per asset A in UI units.
	Price string `json:"price,omitempty"`

	VaultA   string `json:"vault_a,omitempty"`
	VaultB   string `json:"vault_b,omitempty"`
	ReserveA string `json:"reserve_a,omitempty"`
	ReserveB string `json:"reserve_b,omitempty"`

	AmmConfig    string `json:"amm_config,omitempty"`
	Liquidity    string `json:"liquidity,omitempty"`
	SqrtPriceX64 string `json:"sqrt_price_x64,omitempty"`
	TickCurrent  *int32 `json:"tick_current,omitempty"`
	TickSpacing  uint16 `json:"tick_spacing,omitempty"`

	ActiveID   *int32   `json:"active_id,omitempty"`
	BinStep    uint16   `json:"bin_step,omitempty"`
	BaseFactor uint16   `json:"base_factor,omitempty"`
	Oracle     string   `json:"oracle,omitempty"`
	BinArrays  []string `json:"bin_arrays,omitempty"`

	InspectedAt string `json:"inspected_at"`
}
