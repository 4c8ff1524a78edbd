// =================================
// File: internal/dexclient/dexclient.go
// =================================
// Package dexclient is the facade SwapRunner talks to: it turns a
// swap.Request and a planned amount into a DEX aggregator quote, executes
// the resulting swap, and classifies every failure into the error
// taxonomy the rest of the core switches on. It is the single edge where
// a base58/base64 private-key mismatch is resolved, per the design notes.
package dexclient

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/mr-tron/base58"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/swap-orchestrator/internal/swap"
)

// Client is the concrete DexClient implementation, talking to a Jupiter-
// style aggregator over HTTP. Quote and Execute get distinct per-call
// deadlines: a quote is a single cheap lookup, an execute waits on a
// signed transaction landing, so it gets a longer budget.
type Client struct {
	baseURL        string
	http           *http.Client
	quoteTimeout   time.Duration
	executeTimeout time.Duration
	logger         *zap.Logger
}

// New builds a Client against baseURL. timeout is used as the base quote
// deadline; the execute deadline is 3x that, floored at 30s, matching the
// quote-shorter-than-execute split the aggregator facade owns.
func New(baseURL string, timeout time.Duration, logger *zap.Logger) *Client {
	executeTimeout := timeout * 3
	if executeTimeout < 30*time.Second {
		executeTimeout = 30 * time.Second
	}
	return &Client{
		baseURL:        strings.TrimRight(baseURL, "/"),
		http:           &http.Client{},
		quoteTimeout:   timeout,
		executeTimeout: executeTimeout,
		logger:         logger.Named("dexclient"),
	}
}

// quoteWireRequest mirrors the aggregator's quote request shape.
type quoteWireRequest struct {
	InputMint        string `json:"input_mint"`
	OutputMint       string `json:"output_mint"`
	Amount           uint64 `json:"amount"`
	SlippageBps      int    `json:"slippage_bps"`
	OnlyDirectRoutes bool   `json:"only_direct_routes,omitempty"`
	AsLegacy         bool   `json:"as_legacy,omitempty"`
	PlatformFeeBps   int    `json:"platform_fee_bps,omitempty"`
}

// quoteWireResponse is the canonical subset of the aggregator's response
// this client consumes; PriceImpactPct is a decimal percent the core
// converts to bps (round(pct * 100)).
type quoteWireResponse struct {
	InAmount       uint64  `json:"in_amount"`
	OutAmount      uint64  `json:"out_amount"`
	PriceImpactPct float64 `json:"price_impact_pct"`
	RouteSteps     []json.RawMessage `json:"route_steps"`
	RouteID        string  `json:"route_id"`
	ErrorKind      string  `json:"error_kind,omitempty"`
	ErrorDetail    string  `json:"error_detail,omitempty"`
}

// Quote requests a fresh price quote for amount base units of input.
// req.Operation is a label only and is not sent to the aggregator.
func (c *Client) Quote(ctx context.Context, req swap.Request, amount uint64) (swap.Quote, error) {
	ctx, cancel := context.WithTimeout(ctx, c.quoteTimeout)
	defer cancel()

	wireReq := quoteWireRequest{
		InputMint:   req.InputToken.Mint,
		OutputMint:  req.OutputToken.Mint,
		Amount:      amount,
		SlippageBps: req.SlippageBps,
	}

	var resp quoteWireResponse
	if err := c.doJSON(ctx, http.MethodPost, "/quote", req.MaxRetries, wireReq, &resp); err != nil {
		return swap.Quote{}, err
	}
	if resp.ErrorKind != "" {
		return swap.Quote{}, classifyBusinessError(resp.ErrorKind, resp.ErrorDetail)
	}

	return swap.Quote{
		InAmount:       resp.InAmount,
		OutAmount:      resp.OutAmount,
		RouteID:        resp.RouteID,
		PriceImpactBps: int(math.Round(resp.PriceImpactPct * 100)),
		FetchedAt:      time.Now(),
	}, nil
}

// executeWireRequest mirrors the aggregator's swap request shape. The
// private key MUST travel as base58; Execute populates
// UserWalletPrivateKeyBase58 only after running the key through the
// base64-to-base58 edge adapter below.
type executeWireRequest struct {
	UserWalletPrivateKeyBase58 string          `json:"user_wallet_private_key_base58"`
	QuoteResponse              json.RawMessage `json:"quote_response"`
	WrapAndUnwrapSol           bool            `json:"wrap_and_unwrap_sol,omitempty"`
	AsLegacy                   bool            `json:"as_legacy,omitempty"`
	CollectFees                bool            `json:"collect_fees,omitempty"`
	VerifySwap                 bool            `json:"verify_swap,omitempty"`
}

type feeCollectionWire struct {
	Status        string  `json:"status"`
	TransactionID string  `json:"transaction_id,omitempty"`
	FeeAmount     uint64  `json:"fee_amount"`
	FeeTokenMint  string  `json:"fee_token_mint"`
	Error         string  `json:"error,omitempty"`
}

type executeWireResponse struct {
	TransactionID  string             `json:"transaction_id"`
	Status         string             `json:"status"`
	NewBalance     uint64             `json:"new_balance"`
	FeeCollection  *feeCollectionWire `json:"fee_collection,omitempty"`
	ErrorKind      string             `json:"error_kind,omitempty"`
	ErrorDetail    string             `json:"error_detail,omitempty"`
}

// ExecuteResult is what Execute hands back to SwapRunner; FeeAmount is
// best-effort and never counts toward success per the design notes.
type ExecuteResult struct {
	TransactionID string
	NewBalance    uint64
	FeeAmount     *uint64
}

// Execute submits quote for signing by privateKey (accepted as base58 or
// base64; the adapter below normalizes it) and execution by the
// aggregator.
func (c *Client) Execute(ctx context.Context, quote swap.Quote, privateKey string, req swap.Request) (ExecuteResult, error) {
	ctx, cancel := context.WithTimeout(ctx, c.executeTimeout)
	defer cancel()

	canonicalKey, err := toBase58PrivateKey(privateKey)
	if err != nil {
		return ExecuteResult{}, swap.NewClassifiedError(swap.ErrKindAuth, "invalid private key encoding", err)
	}

	quoteJSON, err := json.Marshal(quote)
	if err != nil {
		return ExecuteResult{}, swap.NewClassifiedError(swap.ErrKindUnknown, "marshal quote for execute", err)
	}

	wireReq := executeWireRequest{
		UserWalletPrivateKeyBase58: canonicalKey,
		QuoteResponse:              quoteJSON,
		WrapAndUnwrapSol:           true,
		CollectFees:                req.CollectFee,
		VerifySwap:                 req.Verify,
	}

	var resp executeWireResponse
	if err := c.doJSON(ctx, http.MethodPost, "/swap", req.MaxRetries, wireReq, &resp); err != nil {
		return ExecuteResult{}, err
	}
	if resp.ErrorKind != "" {
		return ExecuteResult{}, classifyBusinessError(resp.ErrorKind, resp.ErrorDetail)
	}
	if resp.Status != "success" {
		return ExecuteResult{}, swap.NewClassifiedError(swap.ErrKindVerification, "aggregator reported swap failure", nil)
	}

	result := ExecuteResult{TransactionID: resp.TransactionID, NewBalance: resp.NewBalance}
	if resp.FeeCollection != nil && resp.FeeCollection.Status == "success" {
		fee := resp.FeeCollection.FeeAmount
		result.FeeAmount = &fee
	}
	return result, nil
}

// toBase58PrivateKey is the single edge adapter resolving the
// base64-vs-base58 private-key confusion observed in the source material:
// the rest of the system only ever sees the canonical base58 form.
func toBase58PrivateKey(key string) (string, error) {
	if _, err := base58.Decode(key); err == nil {
		return key, nil
	}
	raw, err := decodeBase64(key)
	if err != nil {
		return "", fmt.Errorf("private key is neither valid base58 nor base64: %w", err)
	}
	return base58.Encode(raw), nil
}

func decodeBase64(s string) ([]byte, error) {
	return base64.StdEncoding.DecodeString(s)
}

func classifyBusinessError(kind, detail string) error {
	errKind := swap.ErrorKind(kind)
	switch errKind {
	case swap.ErrKindTransport, swap.ErrKindRateLimited, swap.ErrKindQuote, swap.ErrKindSlippage,
		swap.ErrKindQuoteStale, swap.ErrKindInsufficientBalance, swap.ErrKindAuth, swap.ErrKindVerification,
		swap.ErrKindConfig:
		return swap.NewClassifiedError(errKind, detail, nil)
	default:
		return swap.NewClassifiedError(swap.ErrKindUnknown, detail, nil)
	}
}

// doJSON performs a context-aware JSON HTTP round-trip against the
// aggregator, classifying transport and rate-limit failures into the
// shared error taxonomy. The retry budget is bounded by maxRetries (from
// swap.Request), not a hardcoded elapsed time; the per-call deadline
// still comes from ctx, which Quote/Execute set to their own timeouts.
func (c *Client) doJSON(ctx context.Context, method, path string, maxRetries int, reqBody, respBody interface{}) error {
	var bodyBytes []byte
	if reqBody != nil {
		encoded, err := json.Marshal(reqBody)
		if err != nil {
			return swap.NewClassifiedError(swap.ErrKindUnknown, "marshal request body", err)
		}
		bodyBytes = encoded
	}

	op := func() (*http.Response, error) {
		var retryReader io.Reader
		if bodyBytes != nil {
			retryReader = bytes.NewReader(bodyBytes)
		}
		httpReq, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, retryReader)
		if err != nil {
			return nil, backoff.Permanent(fmt.Errorf("build request: %w", err))
		}
		httpReq.Header.Set("Content-Type", "application/json")

		resp, err := c.http.Do(httpReq)
		if err != nil {
			c.logger.Warn("aggregator request failed, retrying", zap.String("path", path), zap.Error(err))
			return nil, err
		}
		return resp, nil
	}

	if maxRetries < 0 {
		maxRetries = 0
	}
	resp, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(uint(maxRetries+1)))
	if err != nil {
		return swap.NewClassifiedError(swap.ErrKindTransport, "aggregator request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		body, _ := io.ReadAll(resp.Body)
		return swap.NewClassifiedError(swap.ErrKindRateLimited, string(body), nil)
	}
	if resp.StatusCode >= 500 {
		body, _ := io.ReadAll(resp.Body)
		return swap.NewClassifiedError(swap.ErrKindTransport, fmt.Sprintf("status %d: %s", resp.StatusCode, body), nil)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return swap.NewClassifiedError(swap.ErrKindQuote, fmt.Sprintf("status %d: %s", resp.StatusCode, body), nil)
	}

	if respBody == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(respBody); err != nil {
		return swap.NewClassifiedError(swap.ErrKindUnknown, "decode aggregator response", err)
	}
	return nil
}
