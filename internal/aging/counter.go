package aging

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// DefaultTolerance is the paid-check epsilon used when neither the
// accounting config nor the caller supplies one. Repeated fractional
// arithmetic on amounts (interest splits and the like) leaves sub-epsilon
// residue on counters; a counter whose balance is within tolerance of zero
// counts as paid.
var DefaultTolerance = decimal.New(1, -6) // 1e-6

// InvalidPaymentError is returned when a negative amount is offered to an
// AmountCounter. It signals a caller bug, never a transient condition.
type InvalidPaymentError struct {
	Amount decimal.Decimal
}

func (e *InvalidPaymentError) Error() string {
	return fmt.Sprintf("pay amount should not be less than 0, got %s", e.Amount)
}

// Payment records one application of funds against a counter.
type Payment struct {
	Amount    decimal.Decimal
	Timestamp time.Time
	Meta      map[string]any
}

// AmountCounter tracks how much of a single positive amount has been paid
// off over time. The total may grow (interest accrual); the paid amount only
// ever increases.
type AmountCounter struct {
	totalAmount decimal.Decimal
	paidAmount  decimal.Decimal
	tolerance   decimal.Decimal
	payments    []Payment
}

// NewAmountCounter creates a counter with DefaultTolerance.
func NewAmountCounter(totalAmount decimal.Decimal) (*AmountCounter, error) {
	return NewAmountCounterTol(totalAmount, DefaultTolerance)
}

// NewAmountCounterTol creates a counter with an explicit tolerance. The
// total must exceed the tolerance: an amount already within epsilon of zero
// has nothing to track.
func NewAmountCounterTol(totalAmount, tolerance decimal.Decimal) (*AmountCounter, error) {
	if totalAmount.Cmp(tolerance) <= 0 {
		return nil, fmt.Errorf("cannot initiate amount counter with total %s <= tolerance %s", totalAmount, tolerance)
	}
	return &AmountCounter{totalAmount: totalAmount, paidAmount: decimal.Zero, tolerance: tolerance}, nil
}

// Add grows the total amount. It is not a payment.
func (c *AmountCounter) Add(amount decimal.Decimal) {
	c.totalAmount = c.totalAmount.Add(amount)
}

// Pay applies up to amount against the remaining balance at the given time.
// It returns the recorded payment (nil when nothing could be applied) and
// the unconsumed remainder, which callers cascade into the next counter.
func (c *AmountCounter) Pay(amount decimal.Decimal, timestamp time.Time, meta map[string]any) (*Payment, decimal.Decimal, error) {
	if amount.IsNegative() {
		return nil, decimal.Zero, &InvalidPaymentError{Amount: amount}
	}
	possible := decimal.Min(c.Balance(), amount)
	if possible.IsPositive() {
		payment := Payment{Amount: possible, Timestamp: timestamp, Meta: meta}
		c.payments = append(c.payments, payment)
		c.paidAmount = c.paidAmount.Add(possible)
		return &payment, amount.Sub(possible), nil
	}
	return nil, amount, nil
}

// Balance returns total - paid.
func (c *AmountCounter) Balance() decimal.Decimal {
	return c.totalAmount.Sub(c.paidAmount)
}

// IsPaid reports whether the balance is within tolerance of zero.
func (c *AmountCounter) IsPaid() bool {
	return c.Balance().Abs().LessThan(c.tolerance)
}

// TotalAmount returns the amount being tracked.
func (c *AmountCounter) TotalAmount() decimal.Decimal {
	return c.totalAmount
}

// PaidAmount returns how much has been applied so far.
func (c *AmountCounter) PaidAmount() decimal.Decimal {
	return c.paidAmount
}

// Payments returns a copy of the recorded payments in application order.
func (c *AmountCounter) Payments() []Payment {
	return append([]Payment(nil), c.payments...)
}

// PaidDate returns the timestamp of the payment that closed the counter,
// false while the counter is still open.
func (c *AmountCounter) PaidDate() (time.Time, bool) {
	if !c.IsPaid() || len(c.payments) == 0 {
		return time.Time{}, false
	}
	return c.payments[len(c.payments)-1].Timestamp, true
}

// clone deep-copies the counter so checkpoint resumes never mutate the
// caller's previous state.
func (c *AmountCounter) clone() *AmountCounter {
	return &AmountCounter{
		totalAmount: c.totalAmount,
		paidAmount:  c.paidAmount,
		tolerance:   c.tolerance,
		payments:    append([]Payment(nil), c.payments...),
	}
}
