package enums

import "fmt"

// CustodyItemKind distinguishes the physical items whose custody is tracked.
type CustodyItemKind string

const (
	CustodyItemKey      CustodyItemKind = "key"
	CustodyItemDocument CustodyItemKind = "document"
)

var validCustodyItemKinds = []CustodyItemKind{
	CustodyItemKey,
	CustodyItemDocument,
}

func (k CustodyItemKind) String() string {
	return string(k)
}

// IsValid reports whether the kind is known.
func (k CustodyItemKind) IsValid() bool {
	for _, candidate := range validCustodyItemKinds {
		if candidate == k {
			return true
		}
	}
	return false
}

// ParseCustodyItemKind converts raw input into a CustodyItemKind.
func ParseCustodyItemKind(value string) (CustodyItemKind, error) {
	for _, candidate := range validCustodyItemKinds {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid custody item kind %q", value)
}

// CustodyItemStatus is the coarse status of a key or document.
type CustodyItemStatus string

const (
	CustodyStatusStored    CustodyItemStatus = "stored"
	CustodyStatusInTransit CustodyItemStatus = "in_transit"
	CustodyStatusDelivered CustodyItemStatus = "delivered"
)

var validCustodyItemStatuses = []CustodyItemStatus{
	CustodyStatusStored,
	CustodyStatusInTransit,
	CustodyStatusDelivered,
}

// IsValid reports whether the status is known.
func (s CustodyItemStatus) IsValid() bool {
	for _, candidate := range validCustodyItemStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// MovementType classifies an entry in the movement log.
type MovementType string

const (
	MovementIntake               MovementType = "intake"
	MovementTransfer             MovementType = "transfer"
	MovementDeliveredToRecipient MovementType = "delivered_to_recipient"
)

var validMovementTypes = []MovementType{
	MovementIntake,
	MovementTransfer,
	MovementDeliveredToRecipient,
}

// IsValid reports whether the movement type is known.
func (m MovementType) IsValid() bool {
	for _, candidate := range validMovementTypes {
		if candidate == m {
			return true
		}
	}
	return false
}

// ParseMovementType converts raw input into a MovementType.
func ParseMovementType(value string) (MovementType, error) {
	for _, candidate := range validMovementTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid movement type %q", value)
}
