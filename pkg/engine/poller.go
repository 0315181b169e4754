package engine

import (
	"context"
	"fmt"
	"time"

	"bridgefund/pkg/provider"
	"bridgefund/pkg/record"
)

const (
	DefaultMaxStatusChecks = 30
	DefaultStatusInterval  = 5 * time.Second
)

// StatusClient is the slice of the provider client the poller needs.
type StatusClient interface {
	Status(ctx context.Context, req provider.StatusRequest) (*provider.StatusResult, error)
}

// PollOptions bounds one polling run.
type PollOptions struct {
	MaxChecks int
	Interval  time.Duration
	Persist   bool
}

// Poller repeatedly queries the provider's status endpoint for a confirmed
// source transaction until a terminal state or the check budget runs out.
// Every observation, including no-op ones, is routed back through the record
// store so a crashed process can resume from the persisted record.
type Poller struct {
	client StatusClient
	store  *record.Store

	// sleep is swappable so tests run with zero delay
	sleep func(ctx context.Context, d time.Duration)
}

// NewPoller creates a status poller.
func NewPoller(client StatusClient, store *record.Store) *Poller {
	return &Poller{
		client: client,
		store:  store,
		sleep:  defaultSleep,
	}
}

// SetSleep replaces the inter-check sleep. Intended for tests.
func (p *Poller) SetSleep(sleep func(ctx context.Context, d time.Duration)) {
	p.sleep = sleep
}

// Poll drives the record to a terminal state or exhausts the check budget
// and returns the last-known record. Records that are already terminal, or
// not yet confirmed, are returned unchanged without any provider call. A
// provider error consumes a check but causes no transition.
func (p *Poller) Poll(ctx context.Context, rec *record.Record, opts PollOptions) (*record.Record, error) {
	if rec.Status.Terminal() || rec.Status != record.StatusConfirmed || rec.SourceTxHash == "" {
		return rec, nil
	}

	maxChecks := opts.MaxChecks
	if maxChecks <= 0 {
		maxChecks = DefaultMaxStatusChecks
	}
	interval := opts.Interval
	if interval <= 0 {
		interval = DefaultStatusInterval
	}

	for check := 1; check <= maxChecks; check++ {
		result, err := p.client.Status(ctx, provider.StatusRequest{
			SourceTxHash: rec.SourceTxHash,
			FromChain:    rec.FromChain,
			ToChain:      rec.ToChain,
			Tool:         rec.Tool,
		})
		if err != nil {
			// Transient by design: wait and retry, still consuming a check
			fmt.Printf("[poller] status check %d/%d failed: %v\n", check, maxChecks, err)
		} else {
			next := record.Classify(result.Status, result.Substatus)

			rec.StatusDetail = result.Status
			if result.Substatus != "" {
				rec.StatusDetail = result.Status + "/" + result.Substatus
			}
			if rec.Status.CanAdvanceTo(next) {
				rec.Status = next
			}
			if result.ReceiveTxHash != "" {
				rec.ReceiveTxHash = result.ReceiveTxHash
			}

			if opts.Persist {
				if stored, perr := p.persist(rec); perr != nil {
					fmt.Printf("[poller] warning: failed to persist record %s: %v\n", rec.ID, perr)
				} else {
					rec = stored
				}
			}

			if rec.Status.Terminal() {
				return rec, nil
			}
		}

		if check < maxChecks {
			p.sleep(ctx, interval)
		}
		if ctx.Err() != nil {
			return rec, ctx.Err()
		}
	}

	// Budget exhausted while still confirmed: the caller gets the last-known
	// record and can re-invoke polling later from the persisted state.
	return rec, nil
}

func (p *Poller) persist(rec *record.Record) (*record.Record, error) {
	return p.store.Upsert(rec.ID, func(existing *record.Record) *record.Record {
		next := rec.Clone()
		if existing != nil && !existing.Status.CanAdvanceTo(next.Status) {
			next.Status = existing.Status
		}
		return next
	})
}

func defaultSleep(ctx context.Context, d time.Duration) {
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}
