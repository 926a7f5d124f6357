package s3blob

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/Peer2Pepu/p2p-sub001/internal/domain"
)

func TestArchivePath(t *testing.T) {
	tests := []struct {
		month time.Time
		want  string
	}{
		{time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), "archive/markets/2026-01.jsonl"},
		{time.Date(2025, 12, 1, 0, 0, 0, 0, time.UTC), "archive/markets/2025-12.jsonl"},
	}
	for _, tt := range tests {
		if got := archivePath(tt.month); got != tt.want {
			t.Errorf("archivePath(%v) = %q, want %q", tt.month, got, tt.want)
		}
	}
}

func TestMarshalJSONL(t *testing.T) {
	records := []domain.MarketRecord{
		{MarketID: 1, IpfsHash: "QmA", Creator: "0xaa"},
		{MarketID: 2, IpfsHash: "QmB", Creator: "0xbb", Image: "https://img.example/a?x=1&y=2"},
	}

	buf, err := marshalJSONL(records)
	if err != nil {
		t.Fatalf("marshalJSONL: %v", err)
	}

	lines := bytes.Split(bytes.TrimRight(buf, "\n"), []byte("\n"))
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2", len(lines))
	}

	var first domain.MarketRecord
	if err := json.Unmarshal(lines[0], &first); err != nil {
		t.Fatalf("line 0 is not valid JSON: %v", err)
	}
	if first.MarketID != 1 || first.IpfsHash != "QmA" {
		t.Errorf("decoded record = %+v", first)
	}

	// HTML escaping is off so URLs survive byte-for-byte.
	if !bytes.Contains(lines[1], []byte(`x=1&y=2`)) {
		t.Errorf("line 1 %q escaped the image url", lines[1])
	}
}

func TestWithScheme(t *testing.T) {
	tests := []struct {
		endpoint string
		useSSL   bool
		want     string
	}{
		{"https://e2.idrivee2.com", false, "https://e2.idrivee2.com"},
		{"http://localhost:9000", true, "http://localhost:9000"},
		{"minio.internal:9000", false, "http://minio.internal:9000"},
		{"minio.internal:9000", true, "https://minio.internal:9000"},
	}
	for _, tt := range tests {
		if got := withScheme(tt.endpoint, tt.useSSL); got != tt.want {
			t.Errorf("withScheme(%q, %v) = %q, want %q", tt.endpoint, tt.useSSL, got, tt.want)
		}
	}
}

func TestMarshalJSONLEmpty(t *testing.T) {
	buf, err := marshalJSONL([]domain.MarketRecord{})
	if err != nil {
		t.Fatalf("marshalJSONL: %v", err)
	}
	if len(buf) != 0 {
		t.Fatalf("empty input produced %d bytes", len(buf))
	}
}
