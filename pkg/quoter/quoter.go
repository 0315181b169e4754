package quoter

import (
	"context"
	"fmt"
	"math/big"
	"sort"
	"sync"

	"bridgefund/pkg/provider"
	"bridgefund/pkg/types"
)

// QuoteClient is the slice of the provider client the quoter needs.
type QuoteClient interface {
	Quote(ctx context.Context, req provider.QuoteRequest) (*types.Quote, error)
}

// Quoter fans quote requests out across candidate source chains and ranks
// the surviving routes.
type Quoter struct {
	client  QuoteClient
	verbose bool
}

// New creates a quoter on top of a provider client.
func New(client QuoteClient) *Quoter {
	return &Quoter{client: client}
}

// SetVerbose enables per-candidate failure logging.
func (q *Quoter) SetVerbose(v bool) {
	q.verbose = v
}

// RankRoutes quotes all candidate source chains concurrently, discards
// failed candidates and sorts survivors by estimated destination amount,
// descending. The sort is stable, so candidates with identical estimates
// keep their input order. An empty slice, never an error, is returned when
// every candidate fails — "no routes" is a normal outcome the caller must
// handle.
func (q *Quoter) RankRoutes(ctx context.Context, fromChains []uint64, toChain uint64, amount *big.Int, fromAddress string) []types.RouteSummary {
	results := make([]*types.Quote, len(fromChains))

	var wg sync.WaitGroup
	for i, fromChain := range fromChains {
		wg.Add(1)
		go func(i int, fromChain uint64) {
			defer wg.Done()

			quote, err := q.client.Quote(ctx, provider.QuoteRequest{
				FromChain:   fromChain,
				ToChain:     toChain,
				FromToken:   types.NativeToken,
				ToToken:     types.NativeToken,
				FromAmount:  amount,
				FromAddress: fromAddress,
			})
			if err != nil {
				// One candidate failing never cancels the others
				if q.verbose {
					fmt.Printf("[quoter] chain %d discarded: %v\n", fromChain, err)
				}
				return
			}
			results[i] = quote
		}(i, fromChain)
	}
	wg.Wait()

	routes := make([]types.RouteSummary, 0, len(fromChains))
	for _, quote := range results {
		if quote == nil || quote.EstimatedToAmount == nil {
			continue
		}
		routes = append(routes, types.RouteSummary{
			FromChain:         quote.FromChain,
			ToChain:           quote.ToChain,
			Tool:              quote.Tool,
			EstimatedToAmount: quote.EstimatedToAmount,
			Quote:             quote,
		})
	}

	sort.SliceStable(routes, func(i, j int) bool {
		return routes[i].EstimatedToAmount.Cmp(routes[j].EstimatedToAmount) > 0
	})

	return routes
}
