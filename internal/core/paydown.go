package core

// Paydown is the outcome of applying a principal payment to a loan.
type Paydown struct {
	Before Money
	Paid   Money
	After  Money
	Status string
}

// ApplyPaydown subtracts paid from before. A zero payment is allowed and
// leaves the balance unchanged; overpaying is rejected.
func ApplyPaydown(before, paid Money) (Paydown, error) {
	if paid.IsNegative() {
		return Paydown{}, Invalid("principal_paid", "principal_paid must not be negative")
	}
	after := before.Sub(paid)
	if after.IsNegative() {
		return Paydown{}, ErrPaymentExceedsPrincipal
	}
	return Paydown{
		Before: before,
		Paid:   paid,
		After:  after,
		Status: StatusForPrincipal(after),
	}, nil
}
