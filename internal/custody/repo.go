package custody

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/vehiclesync-backend/internal/repo"
	pkgdb "github.com/angelmondragon/vehiclesync-backend/pkg/db"
	"github.com/angelmondragon/vehiclesync-backend/pkg/db/models"
	"github.com/angelmondragon/vehiclesync-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/vehiclesync-backend/pkg/errors"
)

// Item is a key or document seen through one shape.
type Item struct {
	ID        uuid.UUID               `json:"id"`
	Kind      enums.CustodyItemKind   `json:"kind"`
	VehicleID string                  `json:"vehicle_id"`
	ItemType  string                  `json:"item_type"`
	Status    enums.CustodyItemStatus `json:"status"`
	Location  string                  `json:"location"`
	Version   int                     `json:"version"`
	UpdatedAt time.Time               `json:"updated_at"`
}

func fromKey(k models.KeyRecord) *Item {
	return &Item{ID: k.ID, Kind: enums.CustodyItemKey, VehicleID: k.VehicleID, ItemType: k.ItemType, Status: k.Status, Location: k.Location, Version: k.Version, UpdatedAt: k.UpdatedAt}
}

func fromDocument(d models.DocumentRecord) *Item {
	return &Item{ID: d.ID, Kind: enums.CustodyItemDocument, VehicleID: d.VehicleID, ItemType: d.ItemType, Status: d.Status, Location: d.Location, Version: d.Version, UpdatedAt: d.UpdatedAt}
}

type Repository struct {
	repo.Base
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{Base: repo.NewBase(db)}
}

// WithTx binds the repository to a transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{Base: repo.NewBase(tx)}
}

// FindItem looks the id up among keys, then documents.
func (r *Repository) FindItem(ctx context.Context, itemID uuid.UUID) (*Item, error) {
	key, err := repo.FindOptional[models.KeyRecord](r.DB(ctx), "id = ?", itemID)
	if err != nil {
		return nil, err
	}
	if key != nil {
		return fromKey(*key), nil
	}
	doc, err := repo.FindOptional[models.DocumentRecord](r.DB(ctx), "id = ?", itemID)
	if err != nil || doc == nil {
		return nil, err
	}
	return fromDocument(*doc), nil
}

// FindByType returns the vehicle's item of the given kind and slot.
func (r *Repository) FindByType(ctx context.Context, kind enums.CustodyItemKind, vehicleID, itemType string) (*Item, error) {
	if kind == enums.CustodyItemKey {
		key, err := repo.FindOptional[models.KeyRecord](r.DB(ctx), "vehicle_id = ? AND item_type = ?", vehicleID, itemType)
		if err != nil || key == nil {
			return nil, err
		}
		return fromKey(*key), nil
	}
	doc, err := repo.FindOptional[models.DocumentRecord](r.DB(ctx), "vehicle_id = ? AND item_type = ?", vehicleID, itemType)
	if err != nil || doc == nil {
		return nil, err
	}
	return fromDocument(*doc), nil
}

// ListItems returns every key and document of the vehicle.
func (r *Repository) ListItems(ctx context.Context, vehicleID string) ([]Item, error) {
	var keys []models.KeyRecord
	if err := r.DB(ctx).Where("vehicle_id = ?", vehicleID).Order("item_type ASC").Find(&keys).Error; err != nil {
		return nil, err
	}
	var docs []models.DocumentRecord
	if err := r.DB(ctx).Where("vehicle_id = ?", vehicleID).Order("item_type ASC").Find(&docs).Error; err != nil {
		return nil, err
	}
	items := make([]Item, 0, len(keys)+len(docs))
	for _, k := range keys {
		items = append(items, *fromKey(k))
	}
	for _, d := range docs {
		items = append(items, *fromDocument(d))
	}
	return items, nil
}

// CreateItem inserts the backing key or document row and fills in item.ID.
func (r *Repository) CreateItem(ctx context.Context, item *Item) error {
	item.Version = 1
	if item.Kind == enums.CustodyItemKey {
		row := models.KeyRecord{VehicleID: item.VehicleID, ItemType: item.ItemType, Status: item.Status, Location: item.Location, Version: 1}
		if err := r.DB(ctx).Create(&row).Error; err != nil {
			return duplicateItem(err, item)
		}
		item.ID = row.ID
		return nil
	}
	row := models.DocumentRecord{VehicleID: item.VehicleID, ItemType: item.ItemType, Status: item.Status, Location: item.Location, Version: 1}
	if err := r.DB(ctx).Create(&row).Error; err != nil {
		return duplicateItem(err, item)
	}
	item.ID = row.ID
	return nil
}

// Move sets the item's location and status at its read version.
func (r *Repository) Move(ctx context.Context, item *Item, location string, status enums.CustodyItemStatus) error {
	var model any = &models.DocumentRecord{}
	if item.Kind == enums.CustodyItemKey {
		model = &models.KeyRecord{}
	}
	if err := repo.UpdateVersioned(r.DB(ctx), model, "id", item.ID, item.Version, map[string]any{
		"location": location,
		"status":   status,
	}); err != nil {
		return err
	}
	item.Location = location
	item.Status = status
	item.Version++
	return nil
}

// AppendMovement writes one log entry. The log is never updated.
func (r *Repository) AppendMovement(ctx context.Context, movement *models.MovementEvent) error {
	return r.DB(ctx).Create(movement).Error
}

// ListMovements returns the vehicle's custody log in occurrence order.
func (r *Repository) ListMovements(ctx context.Context, vehicleID string) ([]models.MovementEvent, error) {
	var movements []models.MovementEvent
	err := r.DB(ctx).
		Where("vehicle_id = ?", vehicleID).
		Order("occurred_at ASC").
		Order("id ASC").
		Find(&movements).Error
	return movements, err
}

// ListItemMovements returns the log of one item, the audit index path.
func (r *Repository) ListItemMovements(ctx context.Context, kind enums.CustodyItemKind, itemID uuid.UUID) ([]models.MovementEvent, error) {
	var movements []models.MovementEvent
	err := r.DB(ctx).
		Where("entity_type = ? AND entity_id = ?", kind, itemID).
		Order("occurred_at ASC").
		Find(&movements).Error
	return movements, err
}

// duplicateItem turns a lost registration race into the same conflict the
// pre-insert lookup reports.
func duplicateItem(err error, item *Item) error {
	if !pkgdb.IsUniqueViolation(err, "") {
		return err
	}
	return pkgerrors.Wrap(pkgerrors.CodeStateConflict, err, "custody item already registered").
		WithDetails(map[string]any{"vehicle_id": item.VehicleID, "item_type": item.ItemType})
}
