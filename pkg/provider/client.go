package provider

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"bridgefund/pkg/types"
)

// ErrQuoteUnavailable marks a failed quote attempt. This is expected and
// non-fatal: the quoter discards the candidate and the caller treats the
// route as unavailable.
var ErrQuoteUnavailable = errors.New("quote unavailable")

const defaultRequestTimeout = 20 * time.Second

// Client talks to the bridge provider's HTTP API (GET /quote, GET /status)
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a provider client for the given base URL.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: defaultRequestTimeout},
	}
}

// QuoteRequest describes one route+amount to price.
type QuoteRequest struct {
	FromChain   uint64
	ToChain     uint64
	FromToken   string
	ToToken     string
	FromAmount  *big.Int
	FromAddress string
}

// StatusRequest identifies a transfer to look up on the status endpoint.
type StatusRequest struct {
	SourceTxHash string
	FromChain    uint64
	ToChain      uint64
	Tool         string
}

// StatusResult is the provider's raw view of a transfer. Status and
// Substatus are free text; classification into the record state machine
// happens in the record package.
type StatusResult struct {
	Status        string `json:"status"`
	Substatus     string `json:"substatus,omitempty"`
	ReceiveTxHash string `json:"receive_tx_hash,omitempty"`
}

// quoteResponse mirrors the provider's quote JSON
type quoteResponse struct {
	ID       string `json:"id"`
	Tool     string `json:"tool"`
	Estimate struct {
		ToAmount          string `json:"toAmount"`
		ToAmountMin       string `json:"toAmountMin"`
		ExecutionDuration int    `json:"executionDuration"`
		GasCostAmount     string `json:"gasCostAmount,omitempty"`
	} `json:"estimate"`
	TransactionRequest *struct {
		ChainID  uint64 `json:"chainId"`
		To       string `json:"to"`
		Data     string `json:"data,omitempty"`
		Value    string `json:"value"`
		GasLimit string `json:"gasLimit,omitempty"`
		GasPrice string `json:"gasPrice,omitempty"`
	} `json:"transactionRequest,omitempty"`
}

type statusResponse struct {
	Status    string `json:"status"`
	Substatus string `json:"substatus,omitempty"`
	Receiving *struct {
		TxHash string `json:"txHash,omitempty"`
	} `json:"receiving,omitempty"`
}

// Quote requests a route quote from the provider. Any provider-side failure
// (transport, non-2xx, malformed body) wraps ErrQuoteUnavailable.
func (c *Client) Quote(ctx context.Context, req QuoteRequest) (*types.Quote, error) {
	if req.FromAmount == nil || req.FromAmount.Sign() <= 0 {
		return nil, fmt.Errorf("quote amount must be positive")
	}

	params := url.Values{}
	params.Set("fromChain", strconv.FormatUint(req.FromChain, 10))
	params.Set("toChain", strconv.FormatUint(req.ToChain, 10))
	params.Set("fromToken", req.FromToken)
	params.Set("toToken", req.ToToken)
	params.Set("fromAmount", req.FromAmount.String())
	params.Set("fromAddress", req.FromAddress)

	var resp quoteResponse
	if err := c.getJSON(ctx, "/quote", params, &resp); err != nil {
		return nil, fmt.Errorf("%w: chain %d -> %d: %v", ErrQuoteUnavailable, req.FromChain, req.ToChain, err)
	}

	quote := &types.Quote{
		ID:                   resp.ID,
		Tool:                 resp.Tool,
		FromChain:            req.FromChain,
		ToChain:              req.ToChain,
		FromToken:            req.FromToken,
		ToToken:              req.ToToken,
		FromAmount:           new(big.Int).Set(req.FromAmount),
		EstimatedToAmount:    parseBigInt(resp.Estimate.ToAmount),
		MinToAmount:          parseBigInt(resp.Estimate.ToAmountMin),
		EstimatedDurationSec: resp.Estimate.ExecutionDuration,
		EstimatedGasCost:     parseBigInt(resp.Estimate.GasCostAmount),
	}
	if quote.EstimatedToAmount == nil {
		return nil, fmt.Errorf("%w: chain %d -> %d: malformed estimate %q",
			ErrQuoteUnavailable, req.FromChain, req.ToChain, resp.Estimate.ToAmount)
	}

	if tr := resp.TransactionRequest; tr != nil {
		quote.Tx = &types.TxTemplate{
			ChainID:  tr.ChainID,
			To:       tr.To,
			Data:     parseHexData(tr.Data),
			Value:    parseQuantity(tr.Value),
			GasLimit: parseHexUint(tr.GasLimit),
			GasPrice: parseQuantity(tr.GasPrice),
		}
	}

	return quote, nil
}

// Status looks up the delivery status of a transfer by its source tx hash.
func (c *Client) Status(ctx context.Context, req StatusRequest) (*StatusResult, error) {
	if req.SourceTxHash == "" {
		return nil, fmt.Errorf("source tx hash is required")
	}

	params := url.Values{}
	params.Set("txHash", req.SourceTxHash)
	params.Set("fromChain", strconv.FormatUint(req.FromChain, 10))
	params.Set("toChain", strconv.FormatUint(req.ToChain, 10))
	if req.Tool != "" {
		params.Set("bridge", req.Tool)
	}

	var resp statusResponse
	if err := c.getJSON(ctx, "/status", params, &resp); err != nil {
		return nil, fmt.Errorf("failed to get status for %s: %w", req.SourceTxHash, err)
	}

	result := &StatusResult{
		Status:    resp.Status,
		Substatus: resp.Substatus,
	}
	if resp.Receiving != nil {
		result.ReceiveTxHash = resp.Receiving.TxHash
	}
	return result, nil
}

// getJSON performs a GET request and decodes the JSON body into out
func (c *Client) getJSON(ctx context.Context, path string, params url.Values, out interface{}) error {
	reqURL := c.baseURL + path + "?" + params.Encode()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		return apiError(httpResp)
	}

	if err := json.NewDecoder(httpResp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// apiError extracts the provider's error message from a non-2xx body
func apiError(resp *http.Response) error {
	bodyBytes, readErr := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if readErr == nil && len(bodyBytes) > 0 {
		var errorResp map[string]interface{}
		if jsonErr := json.Unmarshal(bodyBytes, &errorResp); jsonErr == nil {
			if message, ok := errorResp["message"].(string); ok {
				return fmt.Errorf("API error (status %d): %s", resp.StatusCode, message)
			}
		}
		return fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(bodyBytes))
	}
	return fmt.Errorf("API returned status code %d", resp.StatusCode)
}

func parseBigInt(s string) *big.Int {
	if s == "" {
		return nil
	}
	n, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil
	}
	return n
}

// parseQuantity accepts both decimal and 0x-prefixed hex quantities
func parseQuantity(s string) *big.Int {
	if s == "" {
		return big.NewInt(0)
	}
	if len(s) > 2 && s[:2] == "0x" {
		n, ok := new(big.Int).SetString(s[2:], 16)
		if !ok {
			return big.NewInt(0)
		}
		return n
	}
	n := parseBigInt(s)
	if n == nil {
		return big.NewInt(0)
	}
	return n
}

func parseHexUint(s string) uint64 {
	n := parseQuantity(s)
	if n == nil || !n.IsUint64() {
		return 0
	}
	return n.Uint64()
}

func parseHexData(s string) []byte {
	if len(s) > 2 && s[:2] == "0x" {
		s = s[2:]
	}
	if s == "" {
		return nil
	}
	data, err := hex.DecodeString(s)
	if err != nil {
		return nil
	}
	return data
}
