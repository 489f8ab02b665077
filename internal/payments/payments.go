// Package payments defines the payment collaborator boundary. The engine
// computes amounts and percentages; implementations of the provider execute
// them against the processor.
package payments

import "fmt"

const (
	ResultSucceeded = "succeeded"
	ResultFailed    = "failed"
)

// ChargeResult reports the outcome of a capture attempt.
type ChargeResult struct {
	ChargeID    string `json:"charge_id"`
	Status      string `json:"status"`
	AmountCents int64  `json:"amount_cents"`
}

// RefundResult reports the outcome of a refund attempt.
type RefundResult struct {
	RefundID    string `json:"refund_id"`
	ChargeID    string `json:"charge_id"`
	Status      string `json:"status"`
	AmountCents int64  `json:"amount_cents"`
}

// Error wraps a processor-side failure so callers can distinguish it from
// transport problems.
type Error struct {
	Op     string
	Code   string
	Detail string
}

func (e *Error) Error() string {
	return fmt.Sprintf("payment %s failed (%s): %s", e.Op, e.Code, e.Detail)
}
