package domain

import (
	"fmt"
	"strings"
)

// Service categories that drive the purchase mode.
const (
	CategoryDropIn     = "drop_in"
	CategoryPack       = "pack"
	CategoryMembership = "membership"
)

// BillingPeriod is the renewal interval of a recurring offering.
type BillingPeriod string

const (
	PeriodWeekly  BillingPeriod = "weekly"
	PeriodMonthly BillingPeriod = "monthly"
	PeriodYearly  BillingPeriod = "yearly"
)

// ParseBillingPeriod parses a stored period. An empty value is not an error and
// yields the monthly default.
func ParseBillingPeriod(s string) (BillingPeriod, error) {
	switch BillingPeriod(strings.ToLower(strings.TrimSpace(s))) {
	case "":
		return PeriodMonthly, nil
	case PeriodWeekly:
		return PeriodWeekly, nil
	case PeriodMonthly:
		return PeriodMonthly, nil
	case PeriodYearly:
		return PeriodYearly, nil
	}
	return "", fmt.Errorf("unknown billing period %q", s)
}

// Interval returns the provider's recurring interval name.
func (p BillingPeriod) Interval() string {
	switch p {
	case PeriodWeekly:
		return "week"
	case PeriodYearly:
		return "year"
	default:
		return "month"
	}
}

// ServiceOffering is a priced service owned by a seller. Prices are integer minor
// currency units.
type ServiceOffering struct {
	ID              string        `json:"id"`
	SellerID        string        `json:"sellerId"`
	Name            string        `json:"name"`
	Description     string        `json:"description,omitempty"`
	Category        string        `json:"category"`
	PriceCents      int64         `json:"priceCents"`
	IsActive        bool          `json:"isActive"`
	IsSubscription  bool          `json:"isSubscription"`
	BillingPeriod   BillingPeriod `json:"billingPeriod,omitempty"`
	TrialDays       int           `json:"trialDays"`
	MaxCapacity     int           `json:"maxCapacity,omitempty"`
	DurationMinutes int           `json:"durationMinutes,omitempty"`
}

// LineItemDescription renders the description shown on the hosted payment page.
func (o *ServiceOffering) LineItemDescription() string {
	parts := make([]string, 0, 3)
	if d := strings.TrimSpace(o.Description); d != "" {
		parts = append(parts, d)
	}
	if o.DurationMinutes > 0 {
		parts = append(parts, fmt.Sprintf("%d min", o.DurationMinutes))
	}
	if o.MaxCapacity > 0 {
		parts = append(parts, fmt.Sprintf("max %d participants", o.MaxCapacity))
	}
	return strings.Join(parts, " · ")
}
