package ingestion

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
	"strings"

	"gorm.io/datatypes"

	"github.com/angelmondragon/vehiclesync-backend/internal/lifecycle"
	"github.com/angelmondragon/vehiclesync-backend/pkg/config"
	"github.com/angelmondragon/vehiclesync-backend/pkg/db/models"
	"github.com/angelmondragon/vehiclesync-backend/pkg/enums"
)

// Normalize turns a raw listing into the rows of snapshot version. Rows
// without an id and repeated ids are dropped and counted in skipped.
func Normalize(listings []Listing, version int64, cfg config.IngestionConfig) (records []models.ScrapedRecord, skipped int, err error) {
	seen := make(map[string]struct{}, len(listings))
	records = make([]models.ScrapedRecord, 0, len(listings))
	for _, listing := range listings {
		id := lifecycle.NormalizeVehicleID(listing.VehicleID)
		if id == "" {
			skipped++
			continue
		}
		if _, dup := seen[id]; dup {
			skipped++
			continue
		}
		seen[id] = struct{}{}

		marker := strings.TrimSpace(listing.Status)
		photos := listing.PhotoCount
		if photos < 0 {
			photos = 0
		}
		record := models.ScrapedRecord{
			SnapshotVersion: version,
			VehicleID:       id,
			StatusMarker:    marker,
			Available:       marker != "" && strings.EqualFold(marker, cfg.AvailableMarker),
			Reserved:        marker != "" && strings.EqualFold(marker, cfg.ReservedMarker),
			Powertrain:      enums.NormalizePowertrainClass(listing.Powertrain),
			PhotoCount:      photos,
			Attributes:      datatypes.JSONMap(listing.Attributes),
		}
		if record.Fingerprint, err = fingerprint(record); err != nil {
			return nil, 0, err
		}
		records = append(records, record)
	}
	sort.Slice(records, func(i, j int) bool { return records[i].VehicleID < records[j].VehicleID })
	return records, skipped, nil
}

// fingerprint hashes the fields downstream rules care about. encoding/json
// writes map keys sorted, so equal content hashes equally.
func fingerprint(record models.ScrapedRecord) (string, error) {
	payload, err := json.Marshal(struct {
		Status     string         `json:"status"`
		Powertrain string         `json:"powertrain"`
		PhotoCount int            `json:"photo_count"`
		Attributes map[string]any `json:"attributes"`
	}{
		Status:     record.StatusMarker,
		Powertrain: string(record.Powertrain),
		PhotoCount: record.PhotoCount,
		Attributes: record.Attributes,
	})
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:]), nil
}

// Diff is the symmetric difference between two snapshots. Ids are sorted.
type Diff struct {
	Added   []models.ScrapedRecord
	Removed []models.ScrapedRecord
	Changed []models.ScrapedRecord
}

// Empty reports whether applying the diff would change nothing.
func (d Diff) Empty() bool {
	return len(d.Added) == 0 && len(d.Removed) == 0 && len(d.Changed) == 0
}

// ComputeDiff classifies every id. Added and Changed carry the next row,
// Removed carries the previous one. Unchanged ids appear nowhere.
func ComputeDiff(previous, next []models.ScrapedRecord) Diff {
	prev := make(map[string]models.ScrapedRecord, len(previous))
	for _, record := range previous {
		prev[record.VehicleID] = record
	}
	var diff Diff
	seen := make(map[string]struct{}, len(next))
	for _, record := range next {
		seen[record.VehicleID] = struct{}{}
		old, ok := prev[record.VehicleID]
		switch {
		case !ok:
			diff.Added = append(diff.Added, record)
		case old.Fingerprint != record.Fingerprint:
			diff.Changed = append(diff.Changed, record)
		}
	}
	for _, record := range previous {
		if _, ok := seen[record.VehicleID]; !ok {
			diff.Removed = append(diff.Removed, record)
		}
	}
	byID := func(records []models.ScrapedRecord) {
		sort.Slice(records, func(i, j int) bool { return records[i].VehicleID < records[j].VehicleID })
	}
	byID(diff.Added)
	byID(diff.Removed)
	byID(diff.Changed)
	return diff
}
