package arb

import (
	"errors"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"arbScope/internal/dex"
	"arbScope/internal/metrics"
)

// Skip reasons reported in EdgeEvent.Reason.
const (
	ReasonInvalidAsset  = "invalid_asset"
	ReasonUnavailable   = "unavailable"
	ReasonNoLiquidity   = "no_liquidity"
	ReasonInvalidPrice  = "invalid_price"
	ReasonZeroOutput    = "zero_output"
	ReasonOverflow      = "overflow"
	ReasonQuoteError    = "quote_error"
	ReasonAssetMismatch = "asset_mismatch"
)

// EdgeEvent describes a pool the search could not traverse.
type EdgeEvent struct {
	Pool     dex.Pool
	AssetIn  solana.PublicKey
	AmountIn uint64
	Depth    int
	Reason   string
	Err      error
}

// Observer is notified of skipped edges and accepted chains. Calls happen on
// the searching goroutine.
type Observer interface {
	EdgeSkipped(EdgeEvent)
	ChainAccepted(Chain)
}

// NopObserver ignores every event.
type NopObserver struct{}

func (NopObserver) EdgeSkipped(EdgeEvent) {}
func (NopObserver) ChainAccepted(Chain) {}

// Observers fans events out to each observer in order.
type Observers []Observer

func (o Observers) EdgeSkipped(ev EdgeEvent) {
	for _, obs := range o {
		obs.EdgeSkipped(ev)
	}
}

func (o Observers) ChainAccepted(c Chain) {
	for _, obs := range o {
		obs.ChainAccepted(c)
	}
}

// LogObserver logs skipped edges at debug and accepted chains at info.
type LogObserver struct {
	Logger *zap.Logger
}

func (o LogObserver) EdgeSkipped(ev EdgeEvent) {
	if o.Logger == nil {
		return
	}
	fields := []zap.Field{
		zap.String("pool", ev.Pool.ID().String()),
		zap.String("protocol", string(ev.Pool.Protocol())),
		zap.String("asset_in", ev.AssetIn.String()),
		zap.Uint64("amount_in", ev.AmountIn),
		zap.Int("depth", ev.Depth),
		zap.String("reason", ev.Reason),
	}
	if ev.Err != nil {
		fields = append(fields, zap.Error(ev.Err))
	}
	o.Logger.Debug("edge skipped", fields...)
}

func (o LogObserver) ChainAccepted(c Chain) {
	if o.Logger == nil {
		return
	}
	ids := c.PoolIDs()
	pools := make([]string, 0, len(ids))
	for _, id := range ids {
		pools = append(pools, id.String())
	}
	o.Logger.Info("profitable chain",
		zap.String("start", c.StartAsset.String()),
		zap.Uint64("amount_in", c.StartAmount),
		zap.Uint64("amount_out", c.FinalAmount),
		zap.Uint64("profit", c.Profit()),
		zap.Strings("pools", pools),
	)
}

// MetricsObserver counts edges by skip reason and accepted chains.
type MetricsObserver struct {
	Metrics *metrics.SearchMetrics
}

func (o MetricsObserver) EdgeSkipped(ev EdgeEvent) {
	o.Metrics.Edge(ev.Reason)
}

func (o MetricsObserver) ChainAccepted(Chain) {
	o.Metrics.Chain()
}

// SkipReason classifies a quote error into a metrics-friendly label.
func SkipReason(err error) string {
	switch {
	case err == nil:
		return ReasonZeroOutput
	case errors.Is(err, dex.ErrInvalidAsset):
		return ReasonInvalidAsset
	case errors.Is(err, dex.ErrQuoteUnavailable):
		return ReasonUnavailable
	case errors.Is(err, dex.ErrNoLiquidity):
		return ReasonNoLiquidity
	case errors.Is(err, dex.ErrInvalidPrice):
		return ReasonInvalidPrice
	case errors.Is(err, dex.ErrNonPositiveOutput):
		return ReasonZeroOutput
	case errors.Is(err, dex.ErrOverflow):
		return ReasonOverflow
	default:
		return ReasonQuoteError
	}
}
