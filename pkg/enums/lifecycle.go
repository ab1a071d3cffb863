package enums

// LifecycleState is the derived position of a vehicle in the dealership chain.
// It is never stored; see internal/lifecycle.
//
// The two sale stages follow the dealership's naming: SaleValidated is a
// confirmed sale that a manager has not yet validated into an order, and Sold
// is a sale with its ValidatedOrder written.
type LifecycleState string

const (
	LifecycleScrapedOnly         LifecycleState = "scraped_only"
	LifecyclePendingReception    LifecycleState = "pending_reception"
	LifecycleReceived            LifecycleState = "received"
	LifecyclePhotographyPending  LifecycleState = "photography_pending"
	LifecyclePhotographyComplete LifecycleState = "photography_complete"
	LifecycleSaleValidated       LifecycleState = "sale_validated"
	LifecycleSold                LifecycleState = "sold"
	LifecycleDeliveryScheduled   LifecycleState = "delivery_scheduled"
	LifecycleDelivered           LifecycleState = "delivered"

	// LifecycleDelisted is off the main chain: the vehicle has history but
	// neither a listing nor a stock row.
	LifecycleDelisted LifecycleState = "delisted"
)

var lifecycleOrder = []LifecycleState{
	LifecycleScrapedOnly,
	LifecyclePendingReception,
	LifecycleReceived,
	LifecyclePhotographyPending,
	LifecyclePhotographyComplete,
	LifecycleSaleValidated,
	LifecycleSold,
	LifecycleDeliveryScheduled,
	LifecycleDelivered,
}

func (s LifecycleState) String() string {
	return string(s)
}

// Rank returns the position of the state in the chain, or -1 when unknown.
func (s LifecycleState) Rank() int {
	for i, candidate := range lifecycleOrder {
		if candidate == s {
			return i
		}
	}
	return -1
}

// IsTerminal reports whether no further transition may leave the state.
func (s LifecycleState) IsTerminal() bool {
	return s == LifecycleDelivered
}

// BatteryState is the overlay tracked for battery-relevant powertrains.
type BatteryState string

const (
	BatteryUnmonitored BatteryState = "unmonitored"
	BatteryMonitored   BatteryState = "monitored"
	BatteryChargeAlert BatteryState = "charge_alert"
)

func (s BatteryState) String() string {
	return string(s)
}
