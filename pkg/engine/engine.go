package engine

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"bridgefund/pkg/chain"
	"bridgefund/pkg/record"
	"bridgefund/pkg/types"
)

// ErrMissingTxTemplate is raised when a quote carries no submittable
// transaction (a quote-only or no-liquidity response). Fatal, never retried.
var ErrMissingTxTemplate = errors.New("quote has no transaction template")

// Options controls a single execution attempt.
type Options struct {
	DryRun          bool
	Persist         bool
	PollStatus      bool
	MaxStatusChecks int
	StatusInterval  time.Duration
}

// Engine signs and submits the source-chain transaction for a chosen quote,
// waits for inclusion and hands off to the status poller. Exactly one
// source-chain transaction is sent per Execute call; retry is always the
// caller's decision.
type Engine struct {
	ledger  chain.Client
	store   *record.Store
	poller  *Poller
	verbose bool
}

// New creates an engine over a ledger client, record store and status poller.
func New(ledger chain.Client, store *record.Store, poller *Poller) *Engine {
	return &Engine{
		ledger: ledger,
		store:  store,
		poller: poller,
	}
}

// SetVerbose enables step-by-step logging.
func (e *Engine) SetVerbose(v bool) {
	e.verbose = v
}

// Execute runs one bridge attempt for the quote. The returned record is
// always the last known state, even when an error is also returned.
func (e *Engine) Execute(ctx context.Context, quote *types.Quote, fromAddress string, key *ecdsa.PrivateKey, opts Options) (*record.Record, error) {
	if !quote.HasTransaction() {
		return nil, fmt.Errorf("%w: tool %s, chain %d -> %d",
			ErrMissingTxTemplate, quote.Tool, quote.FromChain, quote.ToChain)
	}

	id := quote.ID
	if id == "" {
		id = uuid.NewString()
	}

	rec := &record.Record{
		ID:          id,
		FromChain:   quote.FromChain,
		ToChain:     quote.ToChain,
		Tool:        quote.Tool,
		FromAddress: fromAddress,
		Status:      record.StatusSent,
	}

	if opts.DryRun {
		rec.Status = record.StatusDryRun
		rec.StatusDetail = "dry run, transaction not submitted"
		if opts.Persist {
			return e.persist(rec)
		}
		return rec, nil
	}

	if key == nil {
		return nil, fmt.Errorf("signing key is required for live execution (tool %s, chain %d)",
			quote.Tool, quote.FromChain)
	}

	if e.verbose {
		fmt.Printf("[engine] submitting %s wei on chain %d via %s\n",
			quote.FromAmount.String(), quote.FromChain, quote.Tool)
	}

	txHash, err := e.ledger.SignAndSend(ctx, quote.Tx, key)
	if err != nil {
		// Endpoint resolution failures surface here and are fatal
		return rec, fmt.Errorf("failed to submit source transaction: %w", err)
	}

	rec.SourceTxHash = txHash.Hex()
	if opts.Persist {
		if _, perr := e.persist(rec); perr != nil {
			fmt.Printf("[engine] warning: failed to persist record %s: %v\n", rec.ID, perr)
		}
	}

	if e.verbose {
		fmt.Printf("[engine] source tx %s submitted, waiting for confirmation\n", rec.SourceTxHash)
	}

	receipt, err := e.ledger.WaitMined(ctx, quote.Tx.ChainID, txHash)
	if err != nil {
		rec.StatusDetail = fmt.Sprintf("confirmation wait failed: %v", err)
		if opts.Persist {
			e.persist(rec)
		}
		return rec, fmt.Errorf("failed to confirm source transaction %s: %w", rec.SourceTxHash, err)
	}

	if receipt.Status == 1 {
		rec.Status = record.StatusConfirmed
		rec.StatusDetail = "source transaction confirmed"
	} else {
		rec.Status = record.StatusFailed
		rec.StatusDetail = "source_receipt:reverted"
	}

	if opts.Persist {
		if stored, perr := e.persist(rec); perr == nil {
			rec = stored
		}
	}

	if rec.Status == record.StatusFailed {
		return rec, fmt.Errorf("source transaction %s reverted on chain %d", rec.SourceTxHash, quote.FromChain)
	}

	if opts.PollStatus {
		return e.poller.Poll(ctx, rec, PollOptions{
			MaxChecks: opts.MaxStatusChecks,
			Interval:  opts.StatusInterval,
			Persist:   opts.Persist,
		})
	}

	return rec, nil
}

// persist routes the record through the store's idempotent upsert, keeping
// the status monotonic when an earlier write already advanced further.
func (e *Engine) persist(rec *record.Record) (*record.Record, error) {
	return e.store.Upsert(rec.ID, func(existing *record.Record) *record.Record {
		next := rec.Clone()
		if existing != nil && !existing.Status.CanAdvanceTo(next.Status) {
			next.Status = existing.Status
		}
		return next
	})
}
