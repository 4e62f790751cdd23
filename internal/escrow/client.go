package escrow

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/sameerdalvi/bazario-backend/pkg/config"
	pkgerrors "github.com/sameerdalvi/bazario-backend/pkg/errors"
)

const (
	defaultRequestTimeout       = 10 * time.Second
	errorBodyReadLimit    int64 = 1024

	methodRaiseDispute = "escrow_raiseDispute"
	methodResolve      = "escrow_resolve"

	// JSON-RPC error code the node returns when the contract call reverts.
	rpcCodeExecutionReverted = 3
)

// Client is a JSON-RPC escrow adapter. Transport failures are retried once
// with jittered backoff; reverts are surfaced immediately as terminal.
type Client struct {
	httpClient *http.Client
	rpcURL     string
	signerKey  string
	requestID  atomic.Int64
}

var _ Adapter = (*Client)(nil)

// NewClient builds the adapter from configuration. An empty RPC URL yields a
// client that reports uninitialized; orders without escrow never touch it.
func NewClient(cfg config.EscrowConfig) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: defaultRequestTimeout},
		rpcURL:     strings.TrimSpace(cfg.RPCURL),
		signerKey:  strings.TrimSpace(cfg.SignerKey),
	}
}

// IsInitialized reports whether the client can reach the chain.
func (c *Client) IsInitialized() bool {
	return c != nil && c.rpcURL != "" && c.signerKey != ""
}

// RaiseDispute moves the escrow into Disputed.
func (c *Client) RaiseDispute(ctx context.Context, address, actorAddress string) (*Receipt, error) {
	return c.call(ctx, methodRaiseDispute, address, actorAddress)
}

// Resolve releases the escrow to the winner.
func (c *Client) Resolve(ctx context.Context, address, winnerAddress string) (*Receipt, error) {
	return c.call(ctx, methodResolve, address, winnerAddress)
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int64  `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

type rpcResponse struct {
	Result *struct {
		TxHash      string `json:"txHash"`
		BlockNumber string `json:"blockNumber"`
	} `json:"result"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (c *Client) call(ctx context.Context, method, address, counterparty string) (*Receipt, error) {
	if !c.IsInitialized() {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "escrow adapter not configured")
	}
	if strings.TrimSpace(address) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "escrow address is required")
	}
	if strings.TrimSpace(counterparty) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "escrow counterparty address is required")
	}

	var receipt *Receipt
	backoff := retry.WithMaxRetries(1, retry.NewFibonacci(500*time.Millisecond))
	backoff = retry.WithJitterPercent(20, backoff)

	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		result, callErr := c.send(ctx, method, address, counterparty)
		if callErr != nil {
			if te := pkgerrors.As(callErr); te != nil && te.Code() == pkgerrors.CodeDependency {
				return retry.RetryableError(callErr)
			}
			return callErr
		}
		receipt = result
		return nil
	})
	if err != nil {
		return nil, err
	}
	return receipt, nil
}

func (c *Client) send(ctx context.Context, method, address, counterparty string) (*Receipt, error) {
	payload, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      c.requestID.Add(1),
		Method:  method,
		Params:  []any{address, counterparty},
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "marshal escrow rpc request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.rpcURL, bytes.NewReader(payload))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "build escrow rpc request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Signer-Key", c.signerKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "execute escrow rpc request")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyReadLimit))
		return nil, pkgerrors.Wrap(
			pkgerrors.CodeDependency,
			fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg))),
			"escrow rpc failed",
		)
	}

	var rpcResp rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode escrow rpc response")
	}

	if rpcResp.Error != nil {
		if rpcResp.Error.Code == rpcCodeExecutionReverted {
			return nil, pkgerrors.New(pkgerrors.CodeEscrowReverted, rpcResp.Error.Message)
		}
		return nil, pkgerrors.New(pkgerrors.CodeDependency, rpcResp.Error.Message)
	}
	if rpcResp.Result == nil || rpcResp.Result.TxHash == "" {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "escrow rpc returned no receipt")
	}

	blockNumber, err := parseBlockNumber(rpcResp.Result.BlockNumber)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "parse escrow block number")
	}

	return &Receipt{TxHash: rpcResp.Result.TxHash, BlockNumber: blockNumber}, nil
}

func parseBlockNumber(raw string) (uint64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	if strings.HasPrefix(raw, "0x") {
		return strconv.ParseUint(raw[2:], 16, 64)
	}
	return strconv.ParseUint(raw, 10, 64)
}
