package payments

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// MockProvider records charges and refunds in memory. It stands in for the
// real processor in tests and local runs.
type MockProvider struct {
	mu      sync.Mutex
	charges map[string]int64 // chargeID -> amount
	refunds map[string]int64 // chargeID -> refunded so far

	FailCharges bool
	FailRefunds bool
}

func NewMockProvider() *MockProvider {
	return &MockProvider{
		charges: make(map[string]int64),
		refunds: make(map[string]int64),
	}
}

func (p *MockProvider) Charge(ctx context.Context, customerRef, paymentMethodRef string, amountCents int64) (ChargeResult, error) {
	if p.FailCharges {
		return ChargeResult{Status: ResultFailed}, &Error{Op: "charge", Code: "card_declined", Detail: "mock decline"}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	id := "ch_" + uuid.NewString()
	p.charges[id] = amountCents
	return ChargeResult{ChargeID: id, Status: ResultSucceeded, AmountCents: amountCents}, nil
}

func (p *MockProvider) Refund(ctx context.Context, chargeRef string, amountCents int64) (RefundResult, error) {
	if p.FailRefunds {
		return RefundResult{ChargeID: chargeRef, Status: ResultFailed}, &Error{Op: "refund", Code: "refund_failed", Detail: "mock failure"}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	charged, ok := p.charges[chargeRef]
	if !ok {
		return RefundResult{ChargeID: chargeRef, Status: ResultFailed}, &Error{Op: "refund", Code: "unknown_charge", Detail: chargeRef}
	}
	if p.refunds[chargeRef]+amountCents > charged {
		return RefundResult{ChargeID: chargeRef, Status: ResultFailed}, &Error{Op: "refund", Code: "amount_exceeds_charge", Detail: chargeRef}
	}
	p.refunds[chargeRef] += amountCents
	return RefundResult{
		RefundID:    "re_" + uuid.NewString(),
		ChargeID:    chargeRef,
		Status:      ResultSucceeded,
		AmountCents: amountCents,
	}, nil
}

// RefundedCents reports the cumulative refunded amount for a charge.
func (p *MockProvider) RefundedCents(chargeRef string) int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.refunds[chargeRef]
}

// RecordCharge seeds a pre-existing charge, for tests that start from a
// paid booking.
func (p *MockProvider) RecordCharge(chargeRef string, amountCents int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.charges[chargeRef] = amountCents
}
