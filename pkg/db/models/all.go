package models

// All lists every persisted model, in dependency order. Used by AutoMigrate in
// SQLite mode and by tests.
func All() []any {
	return []any{
		&SnapshotRun{},
		&ScrapedRecord{},
		&StockEntry{},
		&PhotoRecord{},
		&BatteryRecord{},
		&SaleRecord{},
		&ValidatedOrder{},
		&DeliveryRecord{},
		&KeyRecord{},
		&DocumentRecord{},
		&MovementEvent{},
		&IncidentRecord{},
		&PhotographerAllocation{},
		&OutboxEvent{},
		&OutboxDLQ{},
	}
}
