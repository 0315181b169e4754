package cmd

import (
	"crypto/ecdsa"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/spf13/cobra"

	"bridgefund/config"
	"bridgefund/pkg/chain"
	"bridgefund/pkg/engine"
	"bridgefund/pkg/gate"
	"bridgefund/pkg/provider"
	"bridgefund/pkg/quoter"
	"bridgefund/pkg/record"
)

var rootCmd = &cobra.Command{
	Use:   "bridgefund",
	Short: "A CLI for funding accounts across EVM chains through a bridge provider",
	Long: `bridgefund moves native value between EVM chains through an external
bridge provider and gates downstream work on the transfer actually landing.

It compares quotes across candidate source chains, signs and submits the
best route's transaction, tracks the provider's delivery status to a
terminal state, and keeps a durable record of every attempt.

Examples:
  bridgefund fund --label Beta --required 30000000000000000 --live --strict
  bridgefund quote --amount 50000000000000000 --address 0xabc...
  bridgefund status 0x1234-quote-id
  bridgefund records --address 0xabc...`,
	Version: "0.1.0",
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Add global flags
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "Output in JSON format")
}

func printError(err error) {
	fmt.Printf("\nError: %v\n\n", err)
}

// toolkit bundles the wired components every command needs
type toolkit struct {
	cfg    *config.Config
	store  *record.Store
	ledger *chain.EVMClient
	quoter *quoter.Quoter
	engine *engine.Engine
	poller *engine.Poller
	gate   *gate.Gate
}

// buildToolkit wires the provider client, record store, ledger client,
// quoter, engine, poller and gate from configuration.
func buildToolkit(verbose bool) (*toolkit, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	store, err := record.NewStore(cfg.RecordFile)
	if err != nil {
		return nil, err
	}

	apiClient := provider.NewClient(cfg.ProviderBaseURL)
	ledger := chain.NewEVMClient(cfg.Chains)

	q := quoter.New(apiClient)
	q.SetVerbose(verbose)

	poller := engine.NewPoller(apiClient, store)

	eng := engine.New(ledger, store, poller)
	eng.SetVerbose(verbose)

	g := gate.New(ledger, q, eng, cfg.CandidateChains, cfg.DestinationChain)

	return &toolkit{
		cfg:    cfg,
		store:  store,
		ledger: ledger,
		quoter: q,
		engine: eng,
		poller: poller,
		gate:   g,
	}, nil
}

// signingKey parses the configured private key, or returns nil when none is set.
func (t *toolkit) signingKey() (*ecdsa.PrivateKey, error) {
	if t.cfg.PrivateKey == "" {
		return nil, nil
	}
	key, err := crypto.HexToECDSA(strings.TrimPrefix(t.cfg.PrivateKey, "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}
	return key, nil
}
