package model

import "time"

// Opportunity is a profitable closed chain found by a search, ready for storage.
// Raw amounts are minimal-unit integers encoded as strings.
type Opportunity struct {
	Fingerprint string           `json:"fingerprint"`
	StartAsset  string           `json:"start_asset"`
	StartAmount string           `json:"start_amount"`
	FinalAmount string           `json:"final_amount"`
	Profit      string           `json:"profit"`
	ProfitBps   string           `json:"profit_bps"`
	ProfitUI    string           `json:"profit_ui,omitempty"`
	Hops        []OpportunityHop `json:"hops"`
	Slot        uint64           `json:"slot,omitempty"`
	FoundAt     time.Time        `json:"found_at"`
}

// OpportunityHop is one swap of an Opportunity.
type OpportunityHop struct {
	Index       int    `json:"index"`
	Pool        string `json:"pool"`
	Protocol    string `json:"protocol"`
	AssetIn     string `json:"asset_in"`
	AssetOut    string `json:"asset_out"`
	AmountIn    string `json:"amount_in"`
	AmountOut   string `json:"amount_out"`
	AmountInUI  string `json:"amount_in_ui,omitempty"`
	AmountOutUI string `json:"amount_out_ui,omitempty"`
}
