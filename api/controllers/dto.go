package controllers

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/vehiclesync-backend/internal/lifecycle"
	"github.com/angelmondragon/vehiclesync-backend/pkg/db/models"
	"github.com/angelmondragon/vehiclesync-backend/pkg/enums"
)

type stockResponse struct {
	VehicleID  string                `json:"vehicle_id"`
	Available  bool                  `json:"available"`
	BodyReady  bool                  `json:"body_ready"`
	Sold       bool                  `json:"sold"`
	Powertrain enums.PowertrainClass `json:"powertrain"`
	Source     models.StockSource    `json:"source"`
	ReceivedAt *time.Time            `json:"received_at"`
	Backdated  bool                  `json:"backdated"`
	Version    int                   `json:"version"`
	UpdatedAt  time.Time             `json:"updated_at"`
}

func stockResponseFromModel(m *models.StockEntry) *stockResponse {
	if m == nil {
		return nil
	}
	return &stockResponse{
		VehicleID:  m.VehicleID,
		Available:  m.Available,
		BodyReady:  m.BodyReady,
		Sold:       m.Sold,
		Powertrain: m.Powertrain,
		Source:     m.Source,
		ReceivedAt: m.ReceivedAt,
		Backdated:  m.Backdated,
		Version:    m.Version,
		UpdatedAt:  m.UpdatedAt,
	}
}

type photoResponse struct {
	VehicleID      string     `json:"vehicle_id"`
	PaintReady     bool       `json:"paint_ready"`
	Completed      bool       `json:"completed"`
	CompletedAt    *time.Time `json:"completed_at"`
	PhotographerID *string    `json:"photographer_id"`
	AssignedAt     *time.Time `json:"assigned_at"`
	ErrorCount     int        `json:"error_count"`
	Sold           bool       `json:"sold"`
	Version        int        `json:"version"`
}

func photoResponseFromModel(m *models.PhotoRecord) *photoResponse {
	if m == nil {
		return nil
	}
	return &photoResponse{
		VehicleID:      m.VehicleID,
		PaintReady:     m.PaintReady,
		Completed:      m.Completed,
		CompletedAt:    m.CompletedAt,
		PhotographerID: m.PhotographerID,
		AssignedAt:     m.AssignedAt,
		ErrorCount:     m.ErrorCount,
		Sold:           m.Sold,
		Version:        m.Version,
	}
}

type saleResponse struct {
	ID          uuid.UUID       `json:"id"`
	VehicleID   string          `json:"vehicle_id"`
	Customer    string          `json:"customer"`
	Price       decimal.Decimal `json:"price"`
	Validated   bool            `json:"validated"`
	ValidatedAt *time.Time      `json:"validated_at"`
	CreatedBy   string          `json:"created_by"`
	CreatedAt   time.Time       `json:"created_at"`
}

func saleResponseFromModel(m *models.SaleRecord) *saleResponse {
	if m == nil {
		return nil
	}
	return &saleResponse{
		ID:          m.ID,
		VehicleID:   m.VehicleID,
		Customer:    m.Customer,
		Price:       m.Price,
		Validated:   m.Validated,
		ValidatedAt: m.ValidatedAt,
		CreatedBy:   m.CreatedBy,
		CreatedAt:   m.CreatedAt,
	}
}

type validatedOrderResponse struct {
	ID          uuid.UUID       `json:"id"`
	SaleID      uuid.UUID       `json:"sale_id"`
	VehicleID   string          `json:"vehicle_id"`
	Customer    string          `json:"customer"`
	Price       decimal.Decimal `json:"price"`
	ValidatedBy string          `json:"validated_by"`
	ValidatedAt time.Time       `json:"validated_at"`
}

func validatedOrderResponseFromModel(m *models.ValidatedOrder) validatedOrderResponse {
	return validatedOrderResponse{
		ID:          m.ID,
		SaleID:      m.SaleID,
		VehicleID:   m.VehicleID,
		Customer:    m.Customer,
		Price:       m.Price,
		ValidatedBy: m.ValidatedBy,
		ValidatedAt: m.ValidatedAt,
	}
}

type deliveryResponse struct {
	ID                uuid.UUID  `json:"id"`
	SaleID            uuid.UUID  `json:"sale_id"`
	VehicleID         string     `json:"vehicle_id"`
	ScheduledFor      time.Time  `json:"scheduled_for"`
	DeliveredAt       *time.Time `json:"delivered_at"`
	OpenIncidentTypes []string   `json:"open_incident_types"`
	HasIncidents      bool       `json:"has_incidents"`
	Version           int        `json:"version"`
}

func deliveryResponseFromModel(m *models.DeliveryRecord) *deliveryResponse {
	if m == nil {
		return nil
	}
	open := []string(m.OpenIncidentTypes)
	if open == nil {
		open = []string{}
	}
	return &deliveryResponse{
		ID:                m.ID,
		SaleID:            m.SaleID,
		VehicleID:         m.VehicleID,
		ScheduledFor:      m.ScheduledFor,
		DeliveredAt:       m.DeliveredAt,
		OpenIncidentTypes: open,
		HasIncidents:      m.HasIncidents,
		Version:           m.Version,
	}
}

type movementResponse struct {
	ID           uuid.UUID             `json:"id"`
	VehicleID    string                `json:"vehicle_id"`
	EntityType   enums.CustodyItemKind `json:"entity_type"`
	EntityID     uuid.UUID             `json:"entity_id"`
	ItemType     string                `json:"item_type"`
	MovementType enums.MovementType    `json:"movement_type"`
	FromLocation string                `json:"from_location"`
	ToLocation   string                `json:"to_location"`
	Actor        string                `json:"actor"`
	OccurredAt   time.Time             `json:"occurred_at"`
}

func movementResponseFromModel(m models.MovementEvent) movementResponse {
	return movementResponse{
		ID:           m.ID,
		VehicleID:    m.VehicleID,
		EntityType:   m.EntityType,
		EntityID:     m.EntityID,
		ItemType:     m.ItemType,
		MovementType: m.MovementType,
		FromLocation: m.FromLocation,
		ToLocation:   m.ToLocation,
		Actor:        m.Actor,
		OccurredAt:   m.OccurredAt,
	}
}

type incidentResponse struct {
	ID         uuid.UUID            `json:"id"`
	Type       string               `json:"type"`
	Status     enums.IncidentStatus `json:"status"`
	Source     enums.IncidentSource `json:"source"`
	Resolved   bool                 `json:"resolved"`
	ResolvedAt *time.Time           `json:"resolved_at"`
	ResolvedBy *uuid.UUID           `json:"resolved_by_movement_id"`
	Actor      string               `json:"actor"`
	CreatedAt  time.Time            `json:"created_at"`
}

func incidentResponseFromModel(m models.IncidentRecord) incidentResponse {
	return incidentResponse{
		ID:         m.ID,
		Type:       m.Type,
		Status:     m.Status,
		Source:     m.Source,
		Resolved:   m.Resolved,
		ResolvedAt: m.ResolvedAt,
		ResolvedBy: m.ResolvedByMovementID,
		Actor:      m.Actor,
		CreatedAt:  m.CreatedAt,
	}
}

type batteryResponse struct {
	VehicleID     string                   `json:"vehicle_id"`
	Powertrain    enums.PowertrainClass    `json:"powertrain"`
	ChargeLevel   *int                     `json:"charge_level"`
	LastChargedAt *time.Time               `json:"last_charged_at"`
	Overlay       lifecycle.BatteryOverlay `json:"overlay"`
}

func batteryResponseFromModel(m *models.BatteryRecord, overlay lifecycle.BatteryOverlay) *batteryResponse {
	if m == nil {
		return nil
	}
	return &batteryResponse{
		VehicleID:     m.VehicleID,
		Powertrain:    m.Powertrain,
		ChargeLevel:   m.ChargeLevel,
		LastChargedAt: m.LastChargedAt,
		Overlay:       overlay,
	}
}

type allocationResponse struct {
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
	Percentage  int    `json:"percentage"`
	Active      bool   `json:"active"`
	Hidden      bool   `json:"hidden"`
	Locked      bool   `json:"locked"`
}

func allocationResponses(items []models.PhotographerAllocation) []allocationResponse {
	out := make([]allocationResponse, 0, len(items))
	for _, m := range items {
		out = append(out, allocationResponse{
			UserID:      m.UserID,
			DisplayName: m.DisplayName,
			Percentage:  m.Percentage,
			Active:      m.Active,
			Hidden:      m.Hidden,
			Locked:      m.Locked,
		})
	}
	return out
}

type snapshotRunResponse struct {
	ID              uuid.UUID               `json:"id"`
	SnapshotVersion int64                   `json:"snapshot_version"`
	Status          enums.SnapshotRunStatus `json:"status"`
	Trigger         enums.SnapshotTrigger   `json:"triggered_by"`
	RecordCount     int                     `json:"record_count"`
	AddedCount      int                     `json:"added_count"`
	RemovedCount    int                     `json:"removed_count"`
	ChangedCount    int                     `json:"changed_count"`
	SkippedCount    int                     `json:"skipped_count"`
	ArchiveURI      *string                 `json:"archive_uri"`
	Error           *string                 `json:"error"`
	StartedAt       time.Time               `json:"started_at"`
	FinishedAt      *time.Time              `json:"finished_at"`
}

func snapshotRunResponseFromModel(m models.SnapshotRun) snapshotRunResponse {
	return snapshotRunResponse{
		ID:              m.ID,
		SnapshotVersion: m.SnapshotVersion,
		Status:          m.Status,
		Trigger:         m.Trigger,
		RecordCount:     m.RecordCount,
		AddedCount:      m.AddedCount,
		RemovedCount:    m.RemovedCount,
		ChangedCount:    m.ChangedCount,
		SkippedCount:    m.SkippedCount,
		ArchiveURI:      m.ArchiveURI,
		Error:           m.Error,
		StartedAt:       m.StartedAt,
		FinishedAt:      m.FinishedAt,
	}
}

type vehicleResponse struct {
	VehicleID string                   `json:"vehicle_id"`
	State     enums.LifecycleState     `json:"state"`
	Actions   []lifecycle.Action       `json:"actions"`
	Battery   lifecycle.BatteryOverlay `json:"battery"`
	Listed    bool                     `json:"listed"`
	Reserved  bool                     `json:"reserved"`
	Stock     *stockResponse           `json:"stock,omitempty"`
	Photo     *photoResponse           `json:"photo,omitempty"`
	Sale      *saleResponse            `json:"sale,omitempty"`
	Delivery  *deliveryResponse        `json:"delivery,omitempty"`
}

func vehicleResponseFromView(v *lifecycle.View) vehicleResponse {
	actions := v.Actions
	if actions == nil {
		actions = []lifecycle.Action{}
	}
	return vehicleResponse{
		VehicleID: v.VehicleID,
		State:     v.State,
		Actions:   actions,
		Battery:   v.Battery,
		Listed:    v.Listed,
		Reserved:  v.Reserved,
		Stock:     stockResponseFromModel(v.Stock),
		Photo:     photoResponseFromModel(v.Photo),
		Sale:      saleResponseFromModel(v.Sale),
		Delivery:  deliveryResponseFromModel(v.Delivery),
	}
}
