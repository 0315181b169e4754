package provider

import (
	"context"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const quoteBody = `{
	"id": "quote-abc",
	"tool": "hop",
	"estimate": {
		"toAmount": "49700000000000000",
		"toAmountMin": "49200000000000000",
		"executionDuration": 180,
		"gasCostAmount": "21000000000000"
	},
	"transactionRequest": {
		"chainId": 11155111,
		"to": "0x1111111111111111111111111111111111111111",
		"data": "0xdeadbeef",
		"value": "0xb1a2bc2ec50000",
		"gasLimit": "0x7a120",
		"gasPrice": "0x3b9aca00"
	}
}`

func TestQuote(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/quote", r.URL.Path)
		require.Equal(t, "11155111", r.URL.Query().Get("fromChain"))
		require.Equal(t, "421614", r.URL.Query().Get("toChain"))
		require.Equal(t, "50000000000000000", r.URL.Query().Get("fromAmount"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(quoteBody))
	}))
	defer server.Close()

	client := NewClient(server.URL)
	quote, err := client.Quote(context.Background(), QuoteRequest{
		FromChain:   11155111,
		ToChain:     421614,
		FromToken:   "0x0000000000000000000000000000000000000000",
		ToToken:     "0x0000000000000000000000000000000000000000",
		FromAmount:  big.NewInt(50000000000000000),
		FromAddress: "0xabc0000000000000000000000000000000000001",
	})
	require.NoError(t, err)

	assert.Equal(t, "quote-abc", quote.ID)
	assert.Equal(t, "hop", quote.Tool)
	assert.Equal(t, "49700000000000000", quote.EstimatedToAmount.String())
	assert.Equal(t, "49200000000000000", quote.MinToAmount.String())
	assert.Equal(t, 180, quote.EstimatedDurationSec)

	require.True(t, quote.HasTransaction())
	assert.Equal(t, uint64(11155111), quote.Tx.ChainID)
	assert.Equal(t, "0x1111111111111111111111111111111111111111", quote.Tx.To)
	assert.Equal(t, []byte{0xde, 0xad, 0xbe, 0xef}, quote.Tx.Data)
	assert.Equal(t, "50000000000000000", quote.Tx.Value.String())
	assert.Equal(t, uint64(500000), quote.Tx.GasLimit)
	assert.Equal(t, "1000000000", quote.Tx.GasPrice.String())
}

func TestQuoteWithoutTransactionTemplate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id": "q1", "tool": "hop", "estimate": {"toAmount": "100", "toAmountMin": "90", "executionDuration": 30}}`))
	}))
	defer server.Close()

	client := NewClient(server.URL)
	quote, err := client.Quote(context.Background(), QuoteRequest{
		FromChain:  1,
		ToChain:    10,
		FromAmount: big.NewInt(100),
	})
	require.NoError(t, err)
	assert.False(t, quote.HasTransaction())
}

func TestQuoteProviderError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"message": "no routes found"}`))
	}))
	defer server.Close()

	client := NewClient(server.URL)
	_, err := client.Quote(context.Background(), QuoteRequest{
		FromChain:  1,
		ToChain:    10,
		FromAmount: big.NewInt(100),
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrQuoteUnavailable)
	assert.Contains(t, err.Error(), "no routes found")
}

func TestQuoteRejectsNonPositiveAmount(t *testing.T) {
	client := NewClient("http://unused")

	_, err := client.Quote(context.Background(), QuoteRequest{FromChain: 1, ToChain: 10, FromAmount: big.NewInt(0)})
	assert.Error(t, err)

	_, err = client.Quote(context.Background(), QuoteRequest{FromChain: 1, ToChain: 10})
	assert.Error(t, err)
}

func TestStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/status", r.URL.Path)
		require.Equal(t, "0xsource", r.URL.Query().Get("txHash"))
		require.Equal(t, "hop", r.URL.Query().Get("bridge"))
		w.Write([]byte(`{"status": "DONE", "substatus": "COMPLETED", "receiving": {"txHash": "0xreceive"}}`))
	}))
	defer server.Close()

	client := NewClient(server.URL)
	result, err := client.Status(context.Background(), StatusRequest{
		SourceTxHash: "0xsource",
		FromChain:    11155111,
		ToChain:      421614,
		Tool:         "hop",
	})
	require.NoError(t, err)

	assert.Equal(t, "DONE", result.Status)
	assert.Equal(t, "COMPLETED", result.Substatus)
	assert.Equal(t, "0xreceive", result.ReceiveTxHash)
}

func TestStatusRequiresTxHash(t *testing.T) {
	client := NewClient("http://unused")
	_, err := client.Status(context.Background(), StatusRequest{})
	assert.Error(t, err)
}
