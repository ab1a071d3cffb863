package enums

import "fmt"

// IncidentStatus marks whether an incident row records an opening or a resolution.
type IncidentStatus string

const (
	IncidentStatusOpen     IncidentStatus = "open"
	IncidentStatusResolved IncidentStatus = "resolved"
)

var validIncidentStatuses = []IncidentStatus{
	IncidentStatusOpen,
	IncidentStatusResolved,
}

func (s IncidentStatus) String() string {
	return string(s)
}

// IsValid reports whether the status is known.
func (s IncidentStatus) IsValid() bool {
	for _, candidate := range validIncidentStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseIncidentStatus converts raw input into an IncidentStatus.
func ParseIncidentStatus(value string) (IncidentStatus, error) {
	for _, candidate := range validIncidentStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid incident status %q", value)
}

// IncidentSource records what opened an incident.
type IncidentSource string

const (
	IncidentSourceDelivery IncidentSource = "delivery_check"
	IncidentSourceManual   IncidentSource = "manual"
	IncidentSourceMovement IncidentSource = "custody_movement"
)
