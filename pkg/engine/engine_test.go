package engine

import (
	"context"
	"crypto/ecdsa"
	"crypto/sha256"
	"errors"
	"math/big"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bridgefund/pkg/provider"
	"bridgefund/pkg/record"
	"bridgefund/pkg/types"
)

// fakeLedger hashes the template recipient to deterministically emulate
// transaction hashes in tests.
type fakeLedger struct {
	mu            sync.Mutex
	signCalls     int
	receiptStatus uint64
	signErr       error
	waitErr       error
	balance       *big.Int
}

func (f *fakeLedger) Balance(_ context.Context, _ uint64, _ common.Address) (*big.Int, error) {
	if f.balance == nil {
		return big.NewInt(0), nil
	}
	return new(big.Int).Set(f.balance), nil
}

func (f *fakeLedger) SignAndSend(_ context.Context, tmpl *types.TxTemplate, _ *ecdsa.PrivateKey) (common.Hash, error) {
	f.mu.Lock()
	f.signCalls++
	f.mu.Unlock()

	if f.signErr != nil {
		return common.Hash{}, f.signErr
	}
	return common.Hash(sha256.Sum256([]byte(tmpl.To))), nil
}

func (f *fakeLedger) WaitMined(_ context.Context, _ uint64, txHash common.Hash) (*gethtypes.Receipt, error) {
	if f.waitErr != nil {
		return nil, f.waitErr
	}
	return &gethtypes.Receipt{Status: f.receiptStatus, TxHash: txHash}, nil
}

// fakeStatusClient plays back a scripted sequence of provider responses,
// repeating the last entry once the script runs out.
type fakeStatusClient struct {
	mu     sync.Mutex
	script []provider.StatusResult
	err    error
	calls  int
}

func (f *fakeStatusClient) Status(_ context.Context, _ provider.StatusRequest) (*provider.StatusResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	idx := f.calls
	f.calls++

	if f.err != nil {
		return nil, f.err
	}
	if len(f.script) == 0 {
		return &provider.StatusResult{Status: "PENDING"}, nil
	}
	if idx >= len(f.script) {
		idx = len(f.script) - 1
	}
	result := f.script[idx]
	return &result, nil
}

func testQuote() *types.Quote {
	return &types.Quote{
		ID:                "quote-1",
		Tool:              "hop",
		FromChain:         11155111,
		ToChain:           421614,
		FromAmount:        big.NewInt(50000000000000000),
		EstimatedToAmount: big.NewInt(49700000000000000),
		MinToAmount:       big.NewInt(49200000000000000),
		Tx: &types.TxTemplate{
			ChainID: 11155111,
			To:      "0x1111111111111111111111111111111111111111",
			Value:   big.NewInt(50000000000000000),
		},
	}
}

func newTestEngine(t *testing.T, ledger *fakeLedger, status *fakeStatusClient) (*Engine, *record.Store) {
	t.Helper()

	store, err := record.NewStore(filepath.Join(t.TempDir(), "records.json"))
	require.NoError(t, err)

	poller := NewPoller(status, store)
	poller.SetSleep(func(context.Context, time.Duration) {})

	return New(ledger, store, poller), store
}

func testKey(t *testing.T) *ecdsa.PrivateKey {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	return key
}

func TestExecuteDryRunNeverSigns(t *testing.T) {
	ledger := &fakeLedger{receiptStatus: 1}
	eng, store := newTestEngine(t, ledger, &fakeStatusClient{})

	rec, err := eng.Execute(context.Background(), testQuote(), "0xabc", nil, Options{
		DryRun:  true,
		Persist: true,
	})
	require.NoError(t, err)

	assert.Equal(t, record.StatusDryRun, rec.Status)
	assert.Empty(t, rec.SourceTxHash)
	assert.Equal(t, 0, ledger.signCalls)

	// The audit trail is kept even for dry runs
	stored, err := store.Get("quote-1")
	require.NoError(t, err)
	assert.Equal(t, record.StatusDryRun, stored.Status)
}

func TestExecuteMissingTransactionTemplate(t *testing.T) {
	eng, _ := newTestEngine(t, &fakeLedger{}, &fakeStatusClient{})

	quote := testQuote()
	quote.Tx = nil

	_, err := eng.Execute(context.Background(), quote, "0xabc", testKey(t), Options{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMissingTxTemplate)
}

func TestExecuteRevertedSourceTransaction(t *testing.T) {
	ledger := &fakeLedger{receiptStatus: 0}
	status := &fakeStatusClient{}
	eng, store := newTestEngine(t, ledger, status)

	rec, err := eng.Execute(context.Background(), testQuote(), "0xabc", testKey(t), Options{
		Persist:    true,
		PollStatus: true,
	})
	require.Error(t, err)

	assert.Equal(t, record.StatusFailed, rec.Status)
	assert.Equal(t, "source_receipt:reverted", rec.StatusDetail)
	assert.NotEmpty(t, rec.SourceTxHash)

	// The poller is never invoked for a failed source transaction
	assert.Equal(t, 0, status.calls)

	stored, err := store.Get("quote-1")
	require.NoError(t, err)
	assert.Equal(t, record.StatusFailed, stored.Status)
}

func TestExecuteConfirmedThenDelivered(t *testing.T) {
	ledger := &fakeLedger{receiptStatus: 1}
	status := &fakeStatusClient{script: []provider.StatusResult{
		{Status: "PENDING"},
		{Status: "DONE", ReceiveTxHash: "0xreceive"},
	}}
	eng, store := newTestEngine(t, ledger, status)

	rec, err := eng.Execute(context.Background(), testQuote(), "0xabc", testKey(t), Options{
		Persist:         true,
		PollStatus:      true,
		MaxStatusChecks: 10,
		StatusInterval:  time.Millisecond,
	})
	require.NoError(t, err)

	assert.Equal(t, 1, ledger.signCalls)
	assert.Equal(t, record.StatusDelivered, rec.Status)
	assert.Equal(t, "0xreceive", rec.ReceiveTxHash)
	assert.Equal(t, 2, status.calls)

	stored, err := store.Get("quote-1")
	require.NoError(t, err)
	assert.Equal(t, record.StatusDelivered, stored.Status)
}

func TestExecuteWithoutPolling(t *testing.T) {
	ledger := &fakeLedger{receiptStatus: 1}
	status := &fakeStatusClient{}
	eng, _ := newTestEngine(t, ledger, status)

	rec, err := eng.Execute(context.Background(), testQuote(), "0xabc", testKey(t), Options{})
	require.NoError(t, err)

	assert.Equal(t, record.StatusConfirmed, rec.Status)
	assert.Equal(t, 0, status.calls)
}

func TestExecuteSubmitFailure(t *testing.T) {
	ledger := &fakeLedger{signErr: errors.New("nonce too low")}
	eng, _ := newTestEngine(t, ledger, &fakeStatusClient{})

	_, err := eng.Execute(context.Background(), testQuote(), "0xabc", testKey(t), Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to submit source transaction")
}

func TestExecuteRequiresKeyForLiveRun(t *testing.T) {
	eng, _ := newTestEngine(t, &fakeLedger{}, &fakeStatusClient{})

	_, err := eng.Execute(context.Background(), testQuote(), "0xabc", nil, Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "signing key is required")
}

func TestExecuteGeneratesIDWhenQuoteHasNone(t *testing.T) {
	eng, _ := newTestEngine(t, &fakeLedger{receiptStatus: 1}, &fakeStatusClient{})

	quote := testQuote()
	quote.ID = ""

	rec, err := eng.Execute(context.Background(), quote, "0xabc", nil, Options{DryRun: true})
	require.NoError(t, err)
	assert.NotEmpty(t, rec.ID)
}
