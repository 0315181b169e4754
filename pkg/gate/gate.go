package gate

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/fatih/color"

	"bridgefund/pkg/chain"
	"bridgefund/pkg/engine"
	"bridgefund/pkg/quoter"
	"bridgefund/pkg/types"
)

var (
	// ErrNoRoute is raised in strict mode when no candidate chain yields a
	// usable quote for the deficit.
	ErrNoRoute = errors.New("no bridge route available")

	// ErrMissingSigningKey is raised when live execution is requested
	// without a signing key. Fatal, never retried.
	ErrMissingSigningKey = errors.New("signing key is required for live execution")
)

// ShortfallError reports that the destination balance still falls short
// after the preflight loop was exhausted.
type ShortfallError struct {
	Label    string
	Chain    uint64
	Required *big.Int
	Balance  *big.Int
}

func (e *ShortfallError) Error() string {
	return fmt.Sprintf("funding shortfall for %s on chain %d: have %s wei, need %s wei (deficit %s)",
		e.Label, e.Chain, e.Balance.String(), e.Required.String(), e.Deficit().String())
}

// Deficit returns the missing amount.
func (e *ShortfallError) Deficit() *big.Int {
	return new(big.Int).Sub(e.Required, e.Balance)
}

// Mode carries the gate's two independent toggles: strict hard-fails on any
// shortfall path, live execution actually signs and submits rather than
// reporting quotes.
type Mode struct {
	Strict        bool
	LiveExecution bool
}

const (
	defaultRecheckAttempts = 10
	defaultRecheckInterval = 15 * time.Second
)

// Gate answers one question: does the account now hold at least the required
// balance on the destination chain? It drives quoting, execution, polling
// and balance re-checks with escalating fallbacks.
type Gate struct {
	ledger     chain.Client
	quoter     *quoter.Quoter
	engine     *engine.Engine
	fromChains []uint64
	toChain    uint64

	recheckAttempts int
	recheckInterval time.Duration
	pollChecks      int
	pollInterval    time.Duration

	// sleep is swappable so tests run with zero delay
	sleep func(ctx context.Context, d time.Duration)
}

// New creates a gate over the fixed candidate source chains and destination chain.
func New(ledger chain.Client, q *quoter.Quoter, e *engine.Engine, fromChains []uint64, toChain uint64) *Gate {
	return &Gate{
		ledger:          ledger,
		quoter:          q,
		engine:          e,
		fromChains:      fromChains,
		toChain:         toChain,
		recheckAttempts: defaultRecheckAttempts,
		recheckInterval: defaultRecheckInterval,
		pollChecks:      engine.DefaultMaxStatusChecks,
		pollInterval:    engine.DefaultStatusInterval,
		sleep: func(ctx context.Context, d time.Duration) {
			select {
			case <-ctx.Done():
			case <-time.After(d):
			}
		},
	}
}

// SetRecheck overrides the balance re-check loop bounds.
func (g *Gate) SetRecheck(attempts int, interval time.Duration) {
	if attempts > 0 {
		g.recheckAttempts = attempts
	}
	if interval > 0 {
		g.recheckInterval = interval
	}
}

// SetPolling overrides the status polling bounds handed to the engine.
func (g *Gate) SetPolling(checks int, interval time.Duration) {
	if checks > 0 {
		g.pollChecks = checks
	}
	if interval > 0 {
		g.pollInterval = interval
	}
}

// SetSleep replaces the re-check sleep. Intended for tests.
func (g *Gate) SetSleep(sleep func(ctx context.Context, d time.Duration)) {
	g.sleep = sleep
}

// EnsureFunded returns the account's destination balance once it meets the
// requirement, or the best-effort balance in lenient mode. The common path
// is a single balance read: an already-funded account triggers no quoting,
// signing or polling at all.
func (g *Gate) EnsureFunded(ctx context.Context, label string, account common.Address, required *big.Int, key *ecdsa.PrivateKey, mode Mode) (*big.Int, error) {
	balance, err := g.ledger.Balance(ctx, g.toChain, account)
	if err != nil {
		return nil, fmt.Errorf("failed to read balance for %s on chain %d: %w", label, g.toChain, err)
	}

	if balance.Cmp(required) >= 0 {
		return balance, nil
	}

	deficit := new(big.Int).Sub(required, balance)
	fmt.Printf("[gate] %s is short %s wei on chain %d, quoting %d candidate chains\n",
		label, deficit.String(), g.toChain, len(g.fromChains))

	routes := g.quoter.RankRoutes(ctx, g.fromChains, g.toChain, deficit, account.Hex())
	if len(routes) == 0 {
		if mode.Strict {
			return nil, fmt.Errorf("%w: %s needs %s wei on chain %d, candidates %v",
				ErrNoRoute, label, deficit.String(), g.toChain, g.fromChains)
		}
		color.Yellow("[gate] no routes found for %s, continuing with %s wei", label, balance.String())
		return balance, nil
	}

	best := routes[0]
	if !mode.LiveExecution {
		// Quote-only mode never moves funds
		fmt.Printf("[gate] best route for %s: %s\n", label, best.String())
		return balance, nil
	}

	if key == nil {
		return nil, fmt.Errorf("%w: %s on chain %d", ErrMissingSigningKey, label, best.FromChain)
	}

	rec, err := g.engine.Execute(ctx, best.Quote, account.Hex(), key, engine.Options{
		Persist:         true,
		PollStatus:      true,
		MaxStatusChecks: g.pollChecks,
		StatusInterval:  g.pollInterval,
	})
	if err != nil {
		// Configuration errors are fatal and surface immediately; anything
		// else still gets the balance re-check, funds may land regardless
		if errors.Is(err, engine.ErrMissingTxTemplate) || errors.Is(err, chain.ErrUnresolvedEndpoint) {
			return nil, err
		}
		color.Yellow("[gate] bridge execution for %s did not complete cleanly: %v", label, err)
	} else if rec != nil {
		fmt.Printf("[gate] bridge attempt %s finished with status %s\n", rec.ID, rec.Status)
	}

	balance, err = g.awaitBalance(ctx, account, required)
	if err != nil {
		return nil, err
	}

	if balance.Cmp(required) >= 0 {
		color.Green("[gate] %s funded: %s wei on chain %d", label, balance.String(), g.toChain)
		return balance, nil
	}

	if mode.Strict || mode.LiveExecution {
		return nil, &ShortfallError{
			Label:    label,
			Chain:    g.toChain,
			Required: new(big.Int).Set(required),
			Balance:  new(big.Int).Set(balance),
		}
	}
	return balance, nil
}

// RankRoutes exposes quote-only route ranking for the destination chain.
func (g *Gate) RankRoutes(ctx context.Context, amount *big.Int, account common.Address) []types.RouteSummary {
	return g.quoter.RankRoutes(ctx, g.fromChains, g.toChain, amount, account.Hex())
}

// awaitBalance re-reads the destination balance in a bounded loop until it
// meets the requirement or the attempts run out. Returns the last observed
// balance; the shortfall decision belongs to the caller.
func (g *Gate) awaitBalance(ctx context.Context, account common.Address, required *big.Int) (*big.Int, error) {
	var balance *big.Int

	for attempt := 1; attempt <= g.recheckAttempts; attempt++ {
		var err error
		balance, err = g.ledger.Balance(ctx, g.toChain, account)
		if err != nil {
			return nil, fmt.Errorf("failed to re-check balance on chain %d: %w", g.toChain, err)
		}
		if balance.Cmp(required) >= 0 {
			return balance, nil
		}
		if attempt < g.recheckAttempts {
			g.sleep(ctx, g.recheckInterval)
		}
		if ctx.Err() != nil {
			return balance, ctx.Err()
		}
	}
	return balance, nil
}
