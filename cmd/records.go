package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"bridgefund/pkg/record"
)

var recordsAddress string

var recordsCmd = &cobra.Command{
	Use:   "records",
	Short: "List persisted bridge execution records",
	Long: `List the execution records kept by the record store, newest first.
The store caps retention, so only the most recent attempts appear.

Examples:
  bridgefund records
  bridgefund records --address 0xabc...
  bridgefund records --json`,
	Run: runRecords,
}

func init() {
	rootCmd.AddCommand(recordsCmd)

	recordsCmd.Flags().StringVar(&recordsAddress, "address", "", "Filter by sending address")
}

func runRecords(cmd *cobra.Command, args []string) {
	verbose, _ := cmd.Flags().GetBool("verbose")
	jsonOutput, _ := cmd.Flags().GetBool("json")

	tk, err := buildToolkit(verbose)
	if err != nil {
		printError(err)
		os.Exit(1)
	}
	defer tk.ledger.Close()

	var records []*record.Record
	if recordsAddress != "" {
		records = tk.store.ListByAddress(recordsAddress)
	} else {
		records = tk.store.List()
	}

	if jsonOutput {
		jsonData, _ := json.MarshalIndent(records, "", "  ")
		fmt.Println(string(jsonData))
		return
	}

	if len(records) == 0 {
		fmt.Println("\nNo execution records found.")
		fmt.Printf("Record file: %s\n\n", tk.store.GetFilePath())
		return
	}

	fmt.Println("\n" + strings.Repeat("=", 70))
	color.Green("                      EXECUTION RECORDS")
	fmt.Println(strings.Repeat("=", 70))

	for _, rec := range records {
		fmt.Printf("\n  %s  %s\n", coloredStatus(rec.Status), color.CyanString(rec.ID))
		fmt.Printf("      chain %d -> %d via %s, updated %s\n",
			rec.FromChain, rec.ToChain, rec.Tool, rec.UpdatedAt.Format("2006-01-02 15:04:05"))
		if rec.SourceTxHash != "" {
			fmt.Printf("      source tx %s\n", color.HiBlackString(rec.SourceTxHash))
		}
	}

	fmt.Printf("\n%s\n", strings.Repeat("=", 70))
	fmt.Printf("%d record(s) in %s\n\n", len(records), tk.store.GetFilePath())
}
