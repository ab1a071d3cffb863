package gcs

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/angelmondragon/vehiclesync-backend/pkg/db/models"
)

type objectWriter interface {
	WriteObject(ctx context.Context, bucket, object, contentType string, data []byte) error
}

// SnapshotArchiver copies committed snapshots to a bucket as gzipped JSON
// lines, one vehicle per line.
type SnapshotArchiver struct {
	writer objectWriter
	bucket string
	prefix string
	now    func() time.Time
}

func NewSnapshotArchiver(writer objectWriter, bucket, prefix string) (*SnapshotArchiver, error) {
	if writer == nil {
		return nil, errors.New("object writer required")
	}
	if strings.TrimSpace(bucket) == "" {
		return nil, errors.New("archive bucket required")
	}
	return &SnapshotArchiver{
		writer: writer,
		bucket: bucket,
		prefix: strings.Trim(prefix, "/"),
		now:    time.Now,
	}, nil
}

type archivedRecord struct {
	VehicleID    string         `json:"vehicle_id"`
	StatusMarker string         `json:"status"`
	Available    bool           `json:"available"`
	Reserved     bool           `json:"reserved"`
	Powertrain   string         `json:"powertrain"`
	PhotoCount   int            `json:"photo_count"`
	Attributes   map[string]any `json:"attributes,omitempty"`
	Fingerprint  string         `json:"fingerprint"`
}

// Ping reports whether the underlying store is reachable, when it can tell.
func (a *SnapshotArchiver) Ping(ctx context.Context) error {
	if p, ok := a.writer.(interface{ Ping(context.Context) error }); ok {
		return p.Ping(ctx)
	}
	return nil
}

// ObjectName is where version lands, e.g. snapshots/2026/03/v000042.jsonl.gz.
func (a *SnapshotArchiver) ObjectName(version int64, at time.Time) string {
	at = at.UTC()
	name := fmt.Sprintf("%04d/%02d/v%06d.jsonl.gz", at.Year(), int(at.Month()), version)
	if a.prefix == "" {
		return name
	}
	return path.Join(a.prefix, name)
}

func (a *SnapshotArchiver) Archive(ctx context.Context, version int64, records []models.ScrapedRecord) (string, error) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	enc := json.NewEncoder(zw)
	for _, record := range records {
		if err := enc.Encode(archivedRecord{
			VehicleID:    record.VehicleID,
			StatusMarker: record.StatusMarker,
			Available:    record.Available,
			Reserved:     record.Reserved,
			Powertrain:   string(record.Powertrain),
			PhotoCount:   record.PhotoCount,
			Attributes:   record.Attributes,
			Fingerprint:  record.Fingerprint,
		}); err != nil {
			return "", fmt.Errorf("encode snapshot: %w", err)
		}
	}
	if err := zw.Close(); err != nil {
		return "", fmt.Errorf("compress snapshot: %w", err)
	}

	object := a.ObjectName(version, a.now())
	if err := a.writer.WriteObject(ctx, a.bucket, object, "application/gzip", buf.Bytes()); err != nil {
		return "", err
	}
	return fmt.Sprintf("gs://%s/%s", a.bucket, object), nil
}
