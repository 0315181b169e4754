package types

import (
	"fmt"
	"math/big"
)

// NativeToken is the zero-address sentinel providers use for a chain's
// native asset.
const NativeToken = "0x0000000000000000000000000000000000000000"

// TxTemplate is the unsigned source-chain transaction embedded in a quote.
// The provider tells us which chain it must be submitted on; the engine
// resolves the RPC endpoint for that chain from configuration.
type TxTemplate struct {
	ChainID  uint64   `json:"chain_id"`
	To       string   `json:"to"`
	Data     []byte   `json:"data,omitempty"`
	Value    *big.Int `json:"value"`
	GasLimit uint64   `json:"gas_limit,omitempty"`
	GasPrice *big.Int `json:"gas_price,omitempty"`
}

// Quote is a provider-returned proposal for moving an amount from a source
// chain to a destination chain. Quotes are advisory and go stale; they are
// never cached beyond one execution attempt.
type Quote struct {
	ID                   string      `json:"id"`
	Tool                 string      `json:"tool"`
	FromChain            uint64      `json:"from_chain"`
	ToChain              uint64      `json:"to_chain"`
	FromToken            string      `json:"from_token"`
	ToToken              string      `json:"to_token"`
	FromAmount           *big.Int    `json:"from_amount"`
	EstimatedToAmount    *big.Int    `json:"estimated_to_amount"`
	MinToAmount          *big.Int    `json:"min_to_amount"`
	EstimatedDurationSec int         `json:"estimated_duration_sec"`
	EstimatedGasCost     *big.Int    `json:"estimated_gas_cost,omitempty"`
	Tx                   *TxTemplate `json:"tx,omitempty"`
}

// HasTransaction reports whether the quote carries a submittable transaction
// template. Quote-only responses (no liquidity, informational pricing) omit it.
func (q *Quote) HasTransaction() bool {
	return q != nil && q.Tx != nil && q.Tx.To != ""
}

// RouteSummary is one entry in a ranked route list.
type RouteSummary struct {
	FromChain         uint64   `json:"from_chain"`
	ToChain           uint64   `json:"to_chain"`
	Tool              string   `json:"tool"`
	EstimatedToAmount *big.Int `json:"estimated_to_amount"`
	Quote             *Quote   `json:"-"`
}

func (r RouteSummary) String() string {
	return fmt.Sprintf("chain %d -> %d via %s (est. %s wei)",
		r.FromChain, r.ToChain, r.Tool, r.EstimatedToAmount.String())
}
