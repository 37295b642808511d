package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Metadata keys read by the webhook consumer. Renaming any of them requires a
// coordinated change on the consumer side.
const (
	MetaType             = "type"
	MetaSubscriptionType = "subscriptionType"
	MetaSellerID         = "sellerId"
	MetaServiceID        = "serviceId"
	MetaBuyerID          = "buyerId"
	MetaSource           = "source"
	MetaDate             = "date"
	MetaSlotID           = "slotId"
	MetaPeriod           = "period"

	// MetadataSource tags one-time purchases started from a business checkout.
	MetadataSource = "business_checkout"
	// SubscriptionTypeBusiness tags recurring purchases of business services.
	SubscriptionTypeBusiness = "business"
)

// ReconciliationMetadata is embedded in every checkout session so the webhook can
// materialize the purchase.
type ReconciliationMetadata struct {
	Mode      PurchaseMode
	SellerID  string
	ServiceID string
	BuyerID   string
	Source    string
	Date      string
	SlotID    string
	Period    BillingPeriod
}

// Validate checks that every field the declared mode requires is present and well
// typed.
func (m ReconciliationMetadata) Validate() error {
	for key, v := range map[string]string{
		MetaSellerID:  m.SellerID,
		MetaServiceID: m.ServiceID,
		MetaBuyerID:   m.BuyerID,
	} {
		if _, err := uuid.Parse(v); err != nil {
			return fmt.Errorf("metadata %s: invalid id %q", key, v)
		}
	}

	switch m.Mode {
	case ModeSubscription:
		if _, err := ParseBillingPeriod(string(m.Period)); err != nil || m.Period == "" {
			return fmt.Errorf("metadata %s: invalid period %q", MetaPeriod, m.Period)
		}
		if m.Date != "" || m.SlotID != "" {
			return fmt.Errorf("metadata: booking fields on a subscription")
		}
	case ModeDropIn, ModePass:
		if m.Source == "" {
			return fmt.Errorf("metadata %s: missing", MetaSource)
		}
		if m.Date != "" {
			if _, err := time.Parse(time.DateOnly, m.Date); err != nil {
				return fmt.Errorf("metadata %s: invalid date %q", MetaDate, m.Date)
			}
		}
		if m.SlotID != "" {
			if _, err := uuid.Parse(m.SlotID); err != nil {
				return fmt.Errorf("metadata %s: invalid id %q", MetaSlotID, m.SlotID)
			}
		}
	default:
		return fmt.Errorf("metadata: unknown purchase mode %q", m.Mode)
	}
	return nil
}

// ToMap renders the provider metadata map. Optional booking fields are only present
// when they were requested.
func (m ReconciliationMetadata) ToMap() map[string]string {
	out := map[string]string{
		MetaSellerID:  m.SellerID,
		MetaServiceID: m.ServiceID,
		MetaBuyerID:   m.BuyerID,
	}
	if m.Mode == ModeSubscription {
		out[MetaSubscriptionType] = SubscriptionTypeBusiness
		out[MetaPeriod] = string(m.Period)
		return out
	}

	out[MetaType] = string(m.Mode)
	out[MetaSource] = m.Source
	if m.Date != "" {
		out[MetaDate] = m.Date
	}
	if m.SlotID != "" {
		out[MetaSlotID] = m.SlotID
	}
	return out
}

// ParseMetadata reads the contract back from a provider metadata map.
func ParseMetadata(md map[string]string) (ReconciliationMetadata, error) {
	m := ReconciliationMetadata{
		SellerID:  md[MetaSellerID],
		ServiceID: md[MetaServiceID],
		BuyerID:   md[MetaBuyerID],
	}

	if st, ok := md[MetaSubscriptionType]; ok {
		if st != SubscriptionTypeBusiness {
			return ReconciliationMetadata{}, fmt.Errorf("metadata %s: unexpected value %q", MetaSubscriptionType, st)
		}
		m.Mode = ModeSubscription
		m.Period = BillingPeriod(md[MetaPeriod])
	} else {
		m.Mode = PurchaseMode(md[MetaType])
		m.Source = md[MetaSource]
		m.Date = md[MetaDate]
		m.SlotID = md[MetaSlotID]
		if m.Mode == ModeSubscription {
			return ReconciliationMetadata{}, fmt.Errorf("metadata %s: subscription without %s", MetaType, MetaSubscriptionType)
		}
	}

	if err := m.Validate(); err != nil {
		return ReconciliationMetadata{}, err
	}
	return m, nil
}
