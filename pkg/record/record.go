package record

import (
	"strings"
	"time"
)

// Status defines the lifecycle state of a bridge execution
type Status string

const (
	StatusDryRun    Status = "dry-run"   // Built but never submitted
	StatusSent      Status = "sent"      // Submitted on the source chain
	StatusConfirmed Status = "confirmed" // Included in a source-chain block
	StatusDelivered Status = "delivered" // Provider reported destination delivery
	StatusFailed    Status = "failed"    // Source tx reverted or provider reported failure
)

// statusRank orders statuses so a record can only move forward.
var statusRank = map[Status]int{
	StatusDryRun:    0,
	StatusSent:      1,
	StatusConfirmed: 2,
	StatusDelivered: 3,
	StatusFailed:    3,
}

// Terminal returns true if no further polling should occur for this status.
func (s Status) Terminal() bool {
	return s == StatusDryRun || s == StatusDelivered || s == StatusFailed
}

// CanAdvanceTo reports whether moving from s to next keeps the state machine
// monotonic. Equal rank is allowed only for the no-op case (s == next).
func (s Status) CanAdvanceTo(next Status) bool {
	if s == next {
		return true
	}
	return statusRank[next] > statusRank[s]
}

// Record is the durable unit of tracking for one bridge attempt. Records are
// keyed by the originating quote id, so repeated attempts for the same quote
// overwrite rather than duplicate.
type Record struct {
	ID            string    `json:"id"`
	FromChain     uint64    `json:"from_chain"`
	ToChain       uint64    `json:"to_chain"`
	Tool          string    `json:"tool"`
	FromAddress   string    `json:"from_address"`
	SourceTxHash  string    `json:"source_tx_hash,omitempty"`
	ReceiveTxHash string    `json:"receive_tx_hash,omitempty"`
	Status        Status    `json:"status"`
	StatusDetail  string    `json:"status_detail,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Clone returns a copy so callers never share a mutable record with the store.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	cp := *r
	return &cp
}

var (
	failureMarkers    = []string{"FAILED", "REFUNDED", "REVERT", "NOT_FOUND"}
	completionMarkers = []string{"DONE", "SUCCESS", "COMPLETED"}
)

// Classify maps raw provider status/substatus text onto the fixed status
// machine. Failure markers win over completion markers so a response like
// "DONE/REFUNDED" is treated as a failure. Anything unrecognized keeps the
// record in confirmed.
func Classify(status, substatus string) Status {
	combined := strings.ToUpper(status + " " + substatus)

	for _, marker := range failureMarkers {
		if strings.Contains(combined, marker) {
			return StatusFailed
		}
	}
	for _, marker := range completionMarkers {
		if strings.Contains(combined, marker) {
			return StatusDelivered
		}
	}
	return StatusConfirmed
}
