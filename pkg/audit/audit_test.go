package audit

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestNewEntry(t *testing.T) {
	at := time.Date(2026, 10, 16, 6, 30, 0, 0, time.FixedZone("BRT", -3*3600))

	entry := NewEntry(at, CategoryReport, ActionExport, "Relatório de Rebanhos").
		From("report-svc", "req-789").
		With("format", "delimited_text").
		With("record_count", 3)

	if entry.Service != "report-svc" || entry.RequestID != "req-789" {
		t.Errorf("unexpected origin %s/%s", entry.Service, entry.RequestID)
	}
	if entry.Category != CategoryReport || entry.Action != ActionExport {
		t.Errorf("unexpected kind %s/%s", entry.Category, entry.Action)
	}
	if entry.DisplayName != "Relatório de Rebanhos" {
		t.Errorf("unexpected display name %q", entry.DisplayName)
	}
	if !entry.Timestamp.Equal(at) || entry.Timestamp.Location() != time.UTC {
		t.Errorf("timestamp should be %v in UTC, got %v", at, entry.Timestamp)
	}
	if entry.Extra["format"] != "delimited_text" || entry.Extra["record_count"] != 3 {
		t.Errorf("unexpected extra %v", entry.Extra)
	}
	if _, err := uuid.Parse(entry.ID); err != nil {
		t.Errorf("expected UUID id, got %q", entry.ID)
	}
}

func TestEntry_WithSkipsEmptyStrings(t *testing.T) {
	entry := NewEntry(time.Now(), CategoryCache, ActionFlush, "Cache de relatórios limpo").
		With("module", "").
		With("keys", int64(0))

	if _, ok := entry.Extra["module"]; ok {
		t.Error("empty module should be skipped")
	}
	if entry.Extra["keys"] != int64(0) {
		t.Errorf("zero numbers are kept, got %v", entry.Extra["keys"])
	}
}

func TestNewEntry_UniqueIDs(t *testing.T) {
	seen := make(map[string]bool)
	for range 100 {
		id := NewEntry(time.Now(), CategoryReport, ActionExport, "x").ID
		if seen[id] {
			t.Fatalf("duplicate id %s", id)
		}
		seen[id] = true
	}
}

// TestEntry_JSON формат, который читает лента активности
func TestEntry_JSON(t *testing.T) {
	entry := NewEntry(time.Now(), CategoryReport, ActionExport, "Relatório de Propriedades").
		With("report_type", "property")

	data, err := json.Marshal(entry)
	if err != nil {
		t.Fatalf("failed to marshal entry: %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("failed to unmarshal entry: %v", err)
	}

	if decoded["category"] != "report" || decoded["action"] != "EXPORT" {
		t.Errorf("unexpected kind %v/%v", decoded["category"], decoded["action"])
	}
	if decoded["display_name"] != "Relatório de Propriedades" {
		t.Errorf("unexpected display_name %v", decoded["display_name"])
	}
	extra, ok := decoded["extra"].(map[string]any)
	if !ok || extra["report_type"] != "property" {
		t.Errorf("unexpected extra %v", decoded["extra"])
	}
	if _, ok := decoded["request_id"]; ok {
		t.Error("empty request_id should be omitted")
	}
}
