package domain

// PurchaseMode is the closed set of ways an offering can be bought.
type PurchaseMode string

const (
	ModeDropIn       PurchaseMode = "drop_in"
	ModePass         PurchaseMode = "pass"
	ModeSubscription PurchaseMode = "subscription"
)

// IsRecurring reports whether the mode bills on a schedule.
func (m PurchaseMode) IsRecurring() bool {
	return m == ModeSubscription
}

// Platform commission: 15% of the charged amount.
const (
	commissionNumerator   = 15
	commissionDenominator = 100

	// SubscriptionFeePercent is applied by the provider to every recurring charge.
	SubscriptionFeePercent = 15.0
)

// ResolveMode picks the purchase mode. Precedence is fixed: the recurring flag or the
// membership category win, then the pack category, then drop-in.
func ResolveMode(o *ServiceOffering) PurchaseMode {
	switch {
	case o.IsSubscription || o.Category == CategoryMembership:
		return ModeSubscription
	case o.Category == CategoryPack:
		return ModePass
	default:
		return ModeDropIn
	}
}

// Commission returns round(price * 0.15), rounding half up, in the price's minor
// unit. The result is always within [0, price].
func Commission(priceCents int64) int64 {
	if priceCents <= 0 {
		return 0
	}
	// Split on the denominator so 15*price cannot overflow.
	q, r := priceCents/commissionDenominator, priceCents%commissionDenominator
	fee := q*commissionNumerator + (r*commissionNumerator+commissionDenominator/2)/commissionDenominator
	if fee > priceCents {
		return priceCents
	}
	return fee
}
