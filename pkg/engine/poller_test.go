package engine

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bridgefund/pkg/provider"
	"bridgefund/pkg/record"
)

func newTestPoller(t *testing.T, status *fakeStatusClient) (*Poller, *record.Store) {
	t.Helper()

	store, err := record.NewStore(filepath.Join(t.TempDir(), "records.json"))
	require.NoError(t, err)

	poller := NewPoller(status, store)
	poller.SetSleep(func(context.Context, time.Duration) {})
	return poller, store
}

func confirmedRecord() *record.Record {
	return &record.Record{
		ID:           "quote-1",
		FromChain:    11155111,
		ToChain:      421614,
		Tool:         "hop",
		SourceTxHash: "0xsource",
		Status:       record.StatusConfirmed,
	}
}

func TestPollBoundedByMaxChecks(t *testing.T) {
	status := &fakeStatusClient{script: []provider.StatusResult{{Status: "PENDING"}}}
	poller, _ := newTestPoller(t, status)

	rec, err := poller.Poll(context.Background(), confirmedRecord(), PollOptions{MaxChecks: 5})
	require.NoError(t, err)

	// A never-terminal provider consumes exactly the budget, then the
	// caller gets the last-known record back
	assert.Equal(t, 5, status.calls)
	assert.Equal(t, record.StatusConfirmed, rec.Status)
	assert.Equal(t, "PENDING", rec.StatusDetail)
}

func TestPollPendingThenDone(t *testing.T) {
	status := &fakeStatusClient{script: []provider.StatusResult{
		{Status: "PENDING"},
		{Status: "PENDING"},
		{Status: "PENDING"},
		{Status: "DONE", ReceiveTxHash: "0xreceive"},
	}}
	poller, store := newTestPoller(t, status)

	rec, err := poller.Poll(context.Background(), confirmedRecord(), PollOptions{MaxChecks: 20, Persist: true})
	require.NoError(t, err)

	assert.Equal(t, 4, status.calls)
	assert.Equal(t, record.StatusDelivered, rec.Status)
	assert.Equal(t, "0xreceive", rec.ReceiveTxHash)

	stored, err := store.Get("quote-1")
	require.NoError(t, err)
	assert.Equal(t, record.StatusDelivered, stored.Status)
}

func TestPollFailureMarker(t *testing.T) {
	status := &fakeStatusClient{script: []provider.StatusResult{
		{Status: "DONE", Substatus: "REFUNDED"},
	}}
	poller, _ := newTestPoller(t, status)

	rec, err := poller.Poll(context.Background(), confirmedRecord(), PollOptions{MaxChecks: 5})
	require.NoError(t, err)

	assert.Equal(t, 1, status.calls)
	assert.Equal(t, record.StatusFailed, rec.Status)
	assert.Equal(t, "DONE/REFUNDED", rec.StatusDetail)
}

func TestPollTerminalRecordMakesNoCalls(t *testing.T) {
	status := &fakeStatusClient{}
	poller, _ := newTestPoller(t, status)

	for _, s := range []record.Status{record.StatusDryRun, record.StatusFailed, record.StatusDelivered} {
		rec := confirmedRecord()
		rec.Status = s

		result, err := poller.Poll(context.Background(), rec, PollOptions{MaxChecks: 5})
		require.NoError(t, err)
		assert.Equal(t, s, result.Status)
	}
	assert.Equal(t, 0, status.calls)
}

func TestPollSentRecordMakesNoCalls(t *testing.T) {
	status := &fakeStatusClient{}
	poller, _ := newTestPoller(t, status)

	rec := confirmedRecord()
	rec.Status = record.StatusSent

	result, err := poller.Poll(context.Background(), rec, PollOptions{MaxChecks: 5})
	require.NoError(t, err)
	assert.Equal(t, record.StatusSent, result.Status)
	assert.Equal(t, 0, status.calls)
}

func TestPollWithoutSourceTxMakesNoCalls(t *testing.T) {
	status := &fakeStatusClient{}
	poller, _ := newTestPoller(t, status)

	rec := confirmedRecord()
	rec.SourceTxHash = ""

	_, err := poller.Poll(context.Background(), rec, PollOptions{MaxChecks: 5})
	require.NoError(t, err)
	assert.Equal(t, 0, status.calls)
}

func TestPollProviderErrorsConsumeChecks(t *testing.T) {
	status := &fakeStatusClient{err: errors.New("connection refused")}
	poller, _ := newTestPoller(t, status)

	rec, err := poller.Poll(context.Background(), confirmedRecord(), PollOptions{MaxChecks: 3})
	require.NoError(t, err)

	// Network errors cause no transition but still burn the budget
	assert.Equal(t, 3, status.calls)
	assert.Equal(t, record.StatusConfirmed, rec.Status)
}

func TestPollObservationPersistedWithoutTransition(t *testing.T) {
	status := &fakeStatusClient{script: []provider.StatusResult{
		{Status: "PENDING", Substatus: "WAIT_DESTINATION_TRANSACTION"},
	}}
	poller, store := newTestPoller(t, status)

	// Seed the store so the persisted observation is visible afterwards
	_, err := store.Upsert("quote-1", func(existing *record.Record) *record.Record {
		return confirmedRecord()
	})
	require.NoError(t, err)

	_, err = poller.Poll(context.Background(), confirmedRecord(), PollOptions{MaxChecks: 2, Persist: true})
	require.NoError(t, err)

	stored, err := store.Get("quote-1")
	require.NoError(t, err)
	assert.Equal(t, record.StatusConfirmed, stored.Status)
	assert.Equal(t, "PENDING/WAIT_DESTINATION_TRANSACTION", stored.StatusDetail)
}
