package chain

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"arbScope/internal/metrics"
)

type rpcRequest struct {
	ID     json.RawMessage   `json:"id"`
	Method string            `json:"method"`
	Params []json.RawMessage `json:"params"`
}

func testKey(b byte) solana.PublicKey {
	var key solana.PublicKey
	for i := range key {
		key[i] = b
	}
	return key
}

func accountJSON(data []byte) map[string]interface{} {
	return map[string]interface{}{
		"data":       []string{base64.StdEncoding.EncodeToString(data), "base64"},
		"owner":      "11111111111111111111111111111111",
		"lamports":   1,
		"executable": false,
		"rentEpoch":  0,
	}
}

// newRPCServer serves accounts from a map keyed by base58 address.
func newRPCServer(t *testing.T, accounts map[string][]byte, failFirst int32) (*httptest.Server, *int32) {
	t.Helper()
	var calls int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		if n <= failFirst {
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
			return
		}

		var req rpcRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		var result interface{}
		switch req.Method {
		case "getAccountInfo":
			var key string
			_ = json.Unmarshal(req.Params[0], &key)
			var value interface{}
			if data, ok := accounts[key]; ok {
				value = accountJSON(data)
			}
			result = map[string]interface{}{"context": map[string]uint64{"slot": 42}, "value": value}
		case "getMultipleAccounts":
			var keys []string
			_ = json.Unmarshal(req.Params[0], &keys)
			values := make([]interface{}, 0, len(keys))
			for _, key := range keys {
				if data, ok := accounts[key]; ok {
					values = append(values, accountJSON(data))
				} else {
					values = append(values, nil)
				}
			}
			result = map[string]interface{}{"context": map[string]uint64{"slot": 42}, "value": values}
		case "getSlot":
			result = 42
		default:
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"jsonrpc": "2.0",
				"id":      req.ID,
				"error":   map[string]interface{}{"code": -32601, "message": "Method not found"},
			})
			return
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"result":  result,
		})
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func TestFetchAccount(t *testing.T) {
	present := testKey(1)
	srv, _ := newRPCServer(t, map[string][]byte{present.String(): {1, 2, 3, 4}}, 0)

	reg := prometheus.NewRegistry()
	rpcMetrics := metrics.NewRPCMetrics(reg)
	client, err := NewClient(context.Background(), srv.URL, Options{Metrics: rpcMetrics, Logger: zap.NewNop()})
	require.NoError(t, err)
	defer client.Close()

	data, err := client.FetchAccount(context.Background(), present)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3, 4}, data)

	_, err = client.FetchAccount(context.Background(), testKey(2))
	assert.True(t, errors.Is(err, ErrAccountNotFound), "got %v", err)

	assert.Equal(t, float64(2), testutil.ToFloat64(rpcMetrics.Requests.WithLabelValues("getAccountInfo", "ok")))
}

func TestFetchAccounts(t *testing.T) {
	a, b, missing := testKey(1), testKey(2), testKey(3)
	srv, calls := newRPCServer(t, map[string][]byte{
		a.String(): {0xaa},
		b.String(): {0xbb, 0xbb},
	}, 0)

	client, err := NewClient(context.Background(), srv.URL, Options{})
	require.NoError(t, err)
	defer client.Close()

	data, err := client.FetchAccounts(context.Background(), []solana.PublicKey{a, missing, b})
	require.NoError(t, err)
	require.Len(t, data, 3)
	assert.Equal(t, []byte{0xaa}, data[0])
	assert.Nil(t, data[1])
	assert.Equal(t, []byte{0xbb, 0xbb}, data[2])
	assert.Equal(t, int32(1), atomic.LoadInt32(calls))
}

func TestFetchAccountsChunks(t *testing.T) {
	keys := make([]solana.PublicKey, 0, 150)
	accounts := make(map[string][]byte)
	for i := 0; i < 150; i++ {
		var key solana.PublicKey
		key[0] = byte(i)
		key[1] = byte(i >> 8)
		key[31] = 7
		keys = append(keys, key)
		accounts[key.String()] = []byte{byte(i)}
	}
	srv, calls := newRPCServer(t, accounts, 0)

	client, err := NewClient(context.Background(), srv.URL, Options{})
	require.NoError(t, err)
	defer client.Close()

	data, err := client.FetchAccounts(context.Background(), keys)
	require.NoError(t, err)
	require.Len(t, data, 150)
	assert.Equal(t, []byte{149}, data[149])
	assert.Equal(t, int32(2), atomic.LoadInt32(calls))
}

func TestRetryOnTransientFailure(t *testing.T) {
	present := testKey(1)
	srv, calls := newRPCServer(t, map[string][]byte{present.String(): {9}}, 2)

	client, err := NewClient(context.Background(), srv.URL, Options{MaxRetries: 3, RetryBackoff: time.Millisecond})
	require.NoError(t, err)
	defer client.Close()

	data, err := client.FetchAccount(context.Background(), present)
	require.NoError(t, err)
	assert.Equal(t, []byte{9}, data)
	assert.Equal(t, int32(3), atomic.LoadInt32(calls))
}

func TestNoRetryOnNotFound(t *testing.T) {
	srv, calls := newRPCServer(t, map[string][]byte{}, 0)

	client, err := NewClient(context.Background(), srv.URL, Options{MaxRetries: 5, RetryBackoff: time.Millisecond})
	require.NoError(t, err)
	defer client.Close()

	_, err = client.FetchAccount(context.Background(), testKey(5))
	assert.True(t, errors.Is(err, ErrAccountNotFound))
	assert.Equal(t, int32(1), atomic.LoadInt32(calls))
}

func TestSlot(t *testing.T) {
	srv, _ := newRPCServer(t, nil, 0)

	client, err := NewClient(context.Background(), srv.URL, Options{RPS: 100, Burst: 1})
	require.NoError(t, err)
	defer client.Close()

	slot, err := client.Slot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(42), slot)
}

func TestWithRetryStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	attempts := 0
	err := withRetry(ctx, 10, 50*time.Millisecond, func(context.Context) error {
		attempts++
		cancel()
		return errors.New("boom")
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, attempts)
}
