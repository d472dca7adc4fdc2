package chain

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/rpc"
	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"arbScope/internal/metrics"
)

// ErrAccountNotFound is returned when the node reports no account at an address.
var ErrAccountNotFound = errors.New("account not found")

// maxAccountsPerRequest is the getMultipleAccounts key limit.
const maxAccountsPerRequest = 100

// Options tunes the chain client.
type Options struct {
	Commitment   string
	RPS          float64
	Burst        int
	MaxRetries   int
	RetryBackoff time.Duration
	Metrics      *metrics.RPCMetrics
	Logger       *zap.Logger
}

// Client fetches Solana accounts over JSON-RPC.
type Client struct {
	rpcClient    *rpc.Client
	commitment   string
	limiter      *rate.Limiter
	maxRetries   int
	retryBackoff time.Duration
	metrics      *metrics.RPCMetrics
	logger       *zap.Logger
}

// NewClient dials the RPC URL.
func NewClient(ctx context.Context, rpcURL string, opts Options) (*Client, error) {
	rpcClient, err := rpc.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, err
	}
	return newClient(rpcClient, opts), nil
}

func newClient(rpcClient *rpc.Client, opts Options) *Client {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	commitment := opts.Commitment
	if commitment == "" {
		commitment = "confirmed"
	}

	var limiter *rate.Limiter
	if opts.RPS > 0 {
		burst := opts.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.RPS), burst)
	}

	return &Client{
		rpcClient:    rpcClient,
		commitment:   commitment,
		limiter:      limiter,
		maxRetries:   opts.MaxRetries,
		retryBackoff: opts.RetryBackoff,
		metrics:      opts.Metrics,
		logger:       logger,
	}
}

// Close closes the underlying RPC client.
func (c *Client) Close() {
	if c.rpcClient != nil {
		c.rpcClient.Close()
	}
}

type rpcContext struct {
	Slot uint64 `json:"slot"`
}

type accountValue struct {
	Data     []string `json:"data"`
	Owner    string   `json:"owner"`
	Lamports uint64   `json:"lamports"`
}

type accountInfoResult struct {
	Context rpcContext    `json:"context"`
	Value   *accountValue `json:"value"`
}

type multipleAccountsResult struct {
	Context rpcContext      `json:"context"`
	Value   []*accountValue `json:"value"`
}

func (c *Client) accountConfig() map[string]string {
	return map[string]string{
		"encoding":   "base64",
		"commitment": c.commitment,
	}
}

// FetchAccount returns the raw data of one account.
func (c *Client) FetchAccount(ctx context.Context, address solana.PublicKey) ([]byte, error) {
	var result accountInfoResult
	err := c.call(ctx, &result, "getAccountInfo", address.String(), c.accountConfig())
	if err != nil {
		return nil, fmt.Errorf("get account %s: %w", address, err)
	}
	if result.Value == nil {
		return nil, fmt.Errorf("%w: %s", ErrAccountNotFound, address)
	}
	data, err := decodeAccountData(result.Value)
	if err != nil {
		return nil, fmt.Errorf("account %s: %w", address, err)
	}
	return data, nil
}

// FetchAccounts returns account data in request order. Missing accounts are nil.
func (c *Client) FetchAccounts(ctx context.Context, addresses []solana.PublicKey) ([][]byte, error) {
	out := make([][]byte, 0, len(addresses))
	for start := 0; start < len(addresses); start += maxAccountsPerRequest {
		end := start + maxAccountsPerRequest
		if end > len(addresses) {
			end = len(addresses)
		}
		chunk := addresses[start:end]

		keys := make([]string, 0, len(chunk))
		for _, address := range chunk {
			keys = append(keys, address.String())
		}

		var result multipleAccountsResult
		if err := c.call(ctx, &result, "getMultipleAccounts", keys, c.accountConfig()); err != nil {
			return nil, fmt.Errorf("get multiple accounts: %w", err)
		}
		if len(result.Value) != len(chunk) {
			return nil, fmt.Errorf("get multiple accounts: got %d values for %d keys", len(result.Value), len(chunk))
		}

		for i, value := range result.Value {
			if value == nil {
				out = append(out, nil)
				continue
			}
			data, err := decodeAccountData(value)
			if err != nil {
				return nil, fmt.Errorf("account %s: %w", chunk[i], err)
			}
			out = append(out, data)
		}
	}
	return out, nil
}

// Slot returns the current slot at the client's commitment.
func (c *Client) Slot(ctx context.Context) (uint64, error) {
	var slot uint64
	if err := c.call(ctx, &slot, "getSlot", map[string]string{"commitment": c.commitment}); err != nil {
		return 0, fmt.Errorf("get slot: %w", err)
	}
	return slot, nil
}

func (c *Client) call(ctx context.Context, result interface{}, method string, args ...interface{}) error {
	return withRetry(ctx, c.maxRetries, c.retryBackoff, func(ctx context.Context) error {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return err
			}
		}

		start := time.Now()
		err := c.rpcClient.CallContext(ctx, result, method, args...)
		status := "ok"
		if err != nil {
			status = "error"
			c.logger.Warn("rpc call failed", zap.String("method", method), zap.Error(err))
		}
		c.metrics.Observe(method, status, time.Since(start))
		return err
	})
}

func decodeAccountData(value *accountValue) ([]byte, error) {
	if len(value.Data) < 2 || value.Data[1] != "base64" {
		return nil, fmt.Errorf("unexpected account data encoding: %v", value.Data)
	}
	data, err := base64.StdEncoding.DecodeString(value.Data[0])
	if err != nil {
		return nil, fmt.Errorf("decode base64: %w", err)
	}
	return data, nil
}
