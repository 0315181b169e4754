package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"os"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/ethereum/go-ethereum/common"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	quoteAmount  string
	quoteAddress string
)

var quoteCmd = &cobra.Command{
	Use:   "quote",
	Short: "Rank bridge routes for an amount across the candidate source chains",
	Long: `Quote every configured candidate source chain for bridging the given
amount to the destination chain, and rank the surviving routes by
estimated destination output. Failed candidates are discarded silently;
an empty result means no route is currently available.

Examples:
  bridgefund quote --amount 50000000000000000 --address 0xabc...
  bridgefund quote --amount 50000000000000000 --address 0xabc... --json`,
	Run: runQuote,
}

func init() {
	rootCmd.AddCommand(quoteCmd)

	quoteCmd.Flags().StringVar(&quoteAmount, "amount", "", "Amount to bridge, in wei (REQUIRED)")
	quoteCmd.Flags().StringVar(&quoteAddress, "address", "", "Sending account address (REQUIRED)")

	quoteCmd.MarkFlagRequired("amount")
	quoteCmd.MarkFlagRequired("address")
}

func runQuote(cmd *cobra.Command, args []string) {
	verbose, _ := cmd.Flags().GetBool("verbose")
	jsonOutput, _ := cmd.Flags().GetBool("json")

	amount, ok := new(big.Int).SetString(quoteAmount, 10)
	if !ok || amount.Sign() <= 0 {
		printError(fmt.Errorf("invalid amount: %s", quoteAmount))
		os.Exit(1)
	}

	if !common.IsHexAddress(quoteAddress) {
		printError(fmt.Errorf("invalid account address: %s", quoteAddress))
		os.Exit(1)
	}

	tk, err := buildToolkit(verbose)
	if err != nil {
		printError(err)
		os.Exit(1)
	}
	defer tk.ledger.Close()

	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	if !jsonOutput {
		s.Suffix = " Fetching quotes..."
		s.Start()
	}

	routes := tk.gate.RankRoutes(context.Background(), amount, common.HexToAddress(quoteAddress))

	if !jsonOutput {
		s.Stop()
	}

	if jsonOutput {
		jsonData, _ := json.MarshalIndent(routes, "", "  ")
		fmt.Println(string(jsonData))
		return
	}

	if len(routes) == 0 {
		color.Yellow("\nNo routes available to chain %d for %s wei\n", tk.cfg.DestinationChain, amount.String())
		return
	}

	fmt.Println("\n" + strings.Repeat("=", 70))
	color.Green("                        RANKED ROUTES")
	fmt.Println(strings.Repeat("=", 70))

	for i, route := range routes {
		marker := "  "
		if i == 0 {
			marker = color.GreenString("▶ ")
		}
		fmt.Printf("\n%s%d. chain %d -> %d via %s\n", marker, i+1, route.FromChain, route.ToChain, route.Tool)
		fmt.Printf("     Estimated output: %s wei\n", route.EstimatedToAmount.String())
		if route.Quote != nil {
			fmt.Printf("     Minimum output:   %s wei\n", route.Quote.MinToAmount.String())
			fmt.Printf("     Estimated time:   %d seconds\n", route.Quote.EstimatedDurationSec)
		}
	}

	fmt.Println("\n" + strings.Repeat("=", 70) + "\n")
}
