package gcs

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/angelmondragon/vehiclesync-backend/pkg/db/models"
	"github.com/angelmondragon/vehiclesync-backend/pkg/enums"
)

type memoryWriter struct {
	bucket      string
	object      string
	contentType string
	data        []byte
	err         error
}

func (m *memoryWriter) WriteObject(_ context.Context, bucket, object, contentType string, data []byte) error {
	if m.err != nil {
		return m.err
	}
	m.bucket, m.object, m.contentType, m.data = bucket, object, contentType, data
	return nil
}

func TestSnapshotArchiverWritesJSONLines(t *testing.T) {
	writer := &memoryWriter{}
	archiver, err := NewSnapshotArchiver(writer, "vs-archive", "/snapshots/")
	if err != nil {
		t.Fatalf("NewSnapshotArchiver: %v", err)
	}
	archiver.now = func() time.Time { return time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC) }

	uri, err := archiver.Archive(context.Background(), 42, []models.ScrapedRecord{
		{VehicleID: "1234ABC", StatusMarker: "AVAILABLE", Available: true, Powertrain: enums.PowertrainElectric, PhotoCount: 6},
		{VehicleID: "5678DEF", StatusMarker: "RESERVED", Reserved: true, Powertrain: enums.PowertrainDiesel},
	})
	if err != nil {
		t.Fatalf("Archive: %v", err)
	}
	if want := "gs://vs-archive/snapshots/2026/03/v000042.jsonl.gz"; uri != want {
		t.Fatalf("expected uri %s, got %s", want, uri)
	}
	if writer.contentType != "application/gzip" {
		t.Fatalf("unexpected content type %q", writer.contentType)
	}

	zr, err := gzip.NewReader(bytes.NewReader(writer.data))
	if err != nil {
		t.Fatalf("gzip: %v", err)
	}
	scanner := bufio.NewScanner(zr)
	var ids []string
	for scanner.Scan() {
		var row archivedRecord
		if err := json.Unmarshal(scanner.Bytes(), &row); err != nil {
			t.Fatalf("decode line: %v", err)
		}
		ids = append(ids, row.VehicleID)
	}
	if len(ids) != 2 || ids[0] != "1234ABC" || ids[1] != "5678DEF" {
		t.Fatalf("unexpected archived ids %v", ids)
	}
}

func TestSnapshotArchiverPropagatesWriteErrors(t *testing.T) {
	archiver, err := NewSnapshotArchiver(&memoryWriter{err: errors.New("denied")}, "vs-archive", "")
	if err != nil {
		t.Fatalf("NewSnapshotArchiver: %v", err)
	}
	if _, err := archiver.Archive(context.Background(), 1, nil); err == nil {
		t.Fatal("expected write error")
	}
}

func TestObjectNameWithoutPrefix(t *testing.T) {
	archiver, _ := NewSnapshotArchiver(&memoryWriter{}, "b", "")
	got := archiver.ObjectName(7, time.Date(2026, 11, 2, 0, 0, 0, 0, time.UTC))
	if got != "2026/11/v000007.jsonl.gz" {
		t.Fatalf("unexpected object name %s", got)
	}
}

func TestUninitializedClient(t *testing.T) {
	var client *Client
	if err := client.Ping(context.Background()); err == nil {
		t.Fatal("expected ping on nil client to fail")
	}
	if err := client.Close(); err != nil {
		t.Fatalf("close on nil client should be a no-op: %v", err)
	}
}
