package model

import (
	"strings"
	"testing"
	"time"
)

func TestSyncRecordMarshalRoundTrip(t *testing.T) {
	rec, err := NewSyncRecord(true, "host-a")
	if err != nil {
		t.Fatal(err)
	}
	buf, err := rec.Marshal()
	if err != nil {
		t.Fatal(err)
	}
	got, err := UnmarshalSyncRecord(buf)
	if err != nil {
		t.Fatal(err)
	}
	if got.ULID != rec.ULID || got.SyncComplete != rec.SyncComplete || got.SyncerHostname != rec.SyncerHostname {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, rec)
	}
}

func TestSyncRecordRejectsMismatchedTimestamp(t *testing.T) {
	rec, err := NewSyncRecord(false, "host-a")
	if err != nil {
		t.Fatal(err)
	}
	buf, err := rec.Marshal()
	if err != nil {
		t.Fatal(err)
	}
	tampered := strings.Replace(string(buf), rec.Timestamp.UTC().Format(time.RFC3339), time.Now().Add(48*time.Hour).UTC().Format(time.RFC3339), 1)
	if _, err := UnmarshalSyncRecord([]byte(tampered)); err == nil {
		t.Fatal("expected a mismatched-timestamp error")
	}
}

func TestSameULID(t *testing.T) {
	a, _ := NewSyncRecord(true, "h")
	b, _ := NewSyncRecord(true, "h")
	if a.SameULID(b) {
		t.Fatal("two independently minted records should not share a ULID")
	}
	if !a.SameULID(a) {
		t.Fatal("a record should share a ULID with itself")
	}
	var nilRec *SyncRecord
	if a.SameULID(nilRec) {
		t.Fatal("SameULID against nil should be false")
	}
}
