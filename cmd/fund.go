package cmd

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"os"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"bridgefund/pkg/gate"
)

var (
	fundLabel    string
	fundRequired string
	fundAddress  string
	fundStrict   bool
	fundLive     bool
)

var fundCmd = &cobra.Command{
	Use:   "fund",
	Short: "Ensure an account holds a required balance on the destination chain",
	Long: `Check the account's native balance on the destination chain and, when it
falls short, bridge the deficit from the best-priced candidate source chain.

Without --live no funds are moved: the best route is quoted and reported.
With --strict any shortfall path (no route, unmet balance after bridging)
is a hard failure.

Examples:
  bridgefund fund --label Beta --required 30000000000000000
  bridgefund fund --label Beta --required 30000000000000000 --live
  bridgefund fund --label Beta --required 30000000000000000 --live --strict`,
	Run: runFund,
}

func init() {
	rootCmd.AddCommand(fundCmd)

	fundCmd.Flags().StringVar(&fundLabel, "label", "account", "Label used in logs and errors")
	fundCmd.Flags().StringVar(&fundRequired, "required", "", "Required balance in wei (REQUIRED)")
	fundCmd.Flags().StringVar(&fundAddress, "address", "", "Account address (derived from the private key when omitted)")
	fundCmd.Flags().BoolVar(&fundStrict, "strict", false, "Hard-fail on any shortfall path")
	fundCmd.Flags().BoolVar(&fundLive, "live", false, "Sign and submit the best route instead of quote-only")

	fundCmd.MarkFlagRequired("required")
}

func runFund(cmd *cobra.Command, args []string) {
	verbose, _ := cmd.Flags().GetBool("verbose")
	jsonOutput, _ := cmd.Flags().GetBool("json")

	required, ok := new(big.Int).SetString(fundRequired, 10)
	if !ok || required.Sign() <= 0 {
		printError(fmt.Errorf("invalid required amount: %s", fundRequired))
		os.Exit(1)
	}

	tk, err := buildToolkit(verbose)
	if err != nil {
		printError(err)
		os.Exit(1)
	}
	defer tk.ledger.Close()

	key, err := tk.signingKey()
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	account, err := resolveAccount(fundAddress, key)
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	balance, err := tk.gate.EnsureFunded(context.Background(), fundLabel, account, required, key, gate.Mode{
		Strict:        fundStrict,
		LiveExecution: fundLive,
	})
	if err != nil {
		var shortfall *gate.ShortfallError
		switch {
		case errors.As(err, &shortfall):
			color.Red("\nFunding shortfall: %s wei still missing", shortfall.Deficit().String())
		case errors.Is(err, gate.ErrNoRoute):
			color.Red("\nNo route available to fund %s", fundLabel)
		}
		printError(err)
		os.Exit(1)
	}

	if jsonOutput {
		fmt.Printf(`{"label": %q, "address": %q, "balance": %q, "required": %q, "funded": %t}`+"\n",
			fundLabel, account.Hex(), balance.String(), required.String(), balance.Cmp(required) >= 0)
		return
	}

	if balance.Cmp(required) >= 0 {
		color.Green("\n✓ %s holds %s wei on chain %d (required %s)\n",
			fundLabel, balance.String(), tk.cfg.DestinationChain, required.String())
	} else {
		color.Yellow("\n%s holds %s wei on chain %d, below the required %s (lenient mode)\n",
			fundLabel, balance.String(), tk.cfg.DestinationChain, required.String())
	}
}

// resolveAccount prefers the explicit address and falls back to the key's address.
func resolveAccount(address string, key *ecdsa.PrivateKey) (common.Address, error) {
	if address != "" {
		if !common.IsHexAddress(address) {
			return common.Address{}, fmt.Errorf("invalid account address: %s", address)
		}
		return common.HexToAddress(address), nil
	}
	if key != nil {
		if pub, ok := key.Public().(*ecdsa.PublicKey); ok {
			return crypto.PubkeyToAddress(*pub), nil
		}
	}
	return common.Address{}, fmt.Errorf("an account address is required (set --address or configure a private key)")
}
