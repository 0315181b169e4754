package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"bridgefund/pkg/engine"
	"bridgefund/pkg/record"
)

var (
	statusMaxChecks int
	statusInterval  int
)

var statusCmd = &cobra.Command{
	Use:   "status <record-id>",
	Short: "Check or resume tracking of a bridge attempt",
	Long: `Look up a persisted execution record and, when it is still awaiting
delivery, poll the provider's status endpoint until a terminal state or
the check budget runs out. Polling resumes from the persisted record, so
a restarted process picks up where it left off.

Examples:
  bridgefund status 0x1234-quote-id
  bridgefund status 0x1234-quote-id --max-checks 10 --interval 5`,
	Args: cobra.ExactArgs(1),
	Run:  runRecordStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)

	statusCmd.Flags().IntVar(&statusMaxChecks, "max-checks", engine.DefaultMaxStatusChecks, "Maximum status checks before giving up")
	statusCmd.Flags().IntVar(&statusInterval, "interval", 5, "Polling interval in seconds")
}

func runRecordStatus(cmd *cobra.Command, args []string) {
	recordID := args[0]
	verbose, _ := cmd.Flags().GetBool("verbose")
	jsonOutput, _ := cmd.Flags().GetBool("json")

	tk, err := buildToolkit(verbose)
	if err != nil {
		printError(err)
		os.Exit(1)
	}
	defer tk.ledger.Close()

	rec, err := tk.store.Get(recordID)
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	if !rec.Status.Terminal() {
		s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
		if !jsonOutput {
			s.Suffix = " Polling delivery status..."
			s.Start()
		}

		rec, err = tk.poller.Poll(context.Background(), rec, engine.PollOptions{
			MaxChecks: statusMaxChecks,
			Interval:  time.Duration(statusInterval) * time.Second,
			Persist:   true,
		})

		if !jsonOutput {
			s.Stop()
		}
		if err != nil {
			printError(err)
			os.Exit(1)
		}
	}

	if jsonOutput {
		jsonData, _ := json.MarshalIndent(rec, "", "  ")
		fmt.Println(string(jsonData))
		return
	}

	displayRecord(rec)
}

func displayRecord(rec *record.Record) {
	fmt.Println("\n" + strings.Repeat("=", 70))
	color.Green("                        BRIDGE ATTEMPT")
	fmt.Println(strings.Repeat("=", 70))

	fmt.Printf("\n  Record ID:       %s\n", color.CyanString(rec.ID))
	fmt.Printf("  Route:           chain %d -> %d via %s\n", rec.FromChain, rec.ToChain, rec.Tool)
	fmt.Printf("  From Address:    %s\n", rec.FromAddress)
	fmt.Printf("  Status:          %s\n", coloredStatus(rec.Status))
	if rec.StatusDetail != "" {
		fmt.Printf("  Detail:          %s\n", rec.StatusDetail)
	}
	if rec.SourceTxHash != "" {
		fmt.Printf("  Source Tx:       %s\n", color.HiBlackString(rec.SourceTxHash))
	}
	if rec.ReceiveTxHash != "" {
		fmt.Printf("  Receive Tx:      %s\n", color.HiBlackString(rec.ReceiveTxHash))
	}
	fmt.Printf("  Created:         %s\n", rec.CreatedAt.Format("2006-01-02 15:04:05"))
	fmt.Printf("  Last Updated:    %s\n", rec.UpdatedAt.Format("2006-01-02 15:04:05"))

	fmt.Println("\n" + strings.Repeat("=", 70) + "\n")
}

func coloredStatus(status record.Status) string {
	switch status {
	case record.StatusDelivered:
		return color.GreenString(string(status))
	case record.StatusSent, record.StatusConfirmed:
		return color.YellowString(string(status))
	case record.StatusFailed:
		return color.RedString(string(status))
	case record.StatusDryRun:
		return color.HiBlackString(string(status))
	default:
		return string(status)
	}
}
