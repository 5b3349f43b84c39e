package model

import (
	"crypto/rand"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/oklog/ulid/v2"
)

// SyncRecord is the small per-(repo,part) marker whose ULID identifies a
// sync session: `{ulid, timestamp, sync_complete, syncer_hostname}`.
// Timestamp is redundant with the ULID's encoded time and is validated to
// match it on load.
type SyncRecord struct {
	ULID           ulid.ULID `json:"-"`
	Timestamp      time.Time `json:"-"`
	SyncComplete   bool      `json:"sync_complete"`
	SyncerHostname string    `json:"syncer_hostname"`
}

type syncRecordFile struct {
	ULID           string `json:"ulid"`
	Timestamp      string `json:"timestamp"`
	SyncComplete   bool   `json:"sync_complete"`
	SyncerHostname string `json:"syncer_hostname"`
}

// Hostname returns os.Hostname(), falling back to "unknown" rather than
// erroring — a sync record's hostname field is informational only.
func Hostname() string {
	h, err := os.Hostname()
	if err != nil {
		return "unknown"
	}
	return h
}

// NewSyncRecord creates a SyncRecord with a freshly minted ULID.
func NewSyncRecord(syncComplete bool, syncerHostname string) (*SyncRecord, error) {
	if syncerHostname == "" {
		syncerHostname = Hostname()
	}
	entropy := ulid.Monotonic(rand.Reader, 0)
	id, err := ulid.New(ulid.Timestamp(time.Now()), entropy)
	if err != nil {
		return nil, err
	}
	return &SyncRecord{
		ULID:           id,
		Timestamp:      ulid.Time(id.Time()),
		SyncComplete:   syncComplete,
		SyncerHostname: syncerHostname,
	}, nil
}

// SameULID reports whether two records share a sync session.
func (r *SyncRecord) SameULID(other *SyncRecord) bool {
	if r == nil || other == nil {
		return false
	}
	return r.ULID == other.ULID
}

// Marshal serializes the record as its on-disk JSON document.
func (r *SyncRecord) Marshal() ([]byte, error) {
	f := syncRecordFile{
		ULID:           r.ULID.String(),
		Timestamp:      r.Timestamp.UTC().Format(time.RFC3339),
		SyncComplete:   r.SyncComplete,
		SyncerHostname: r.SyncerHostname,
	}
	return json.Marshal(f)
}

// UnmarshalSyncRecord parses the JSON document and validates that
// Timestamp equals the ULID's encoded time.
func UnmarshalSyncRecord(data []byte) (*SyncRecord, error) {
	var f syncRecordFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, err
	}
	id, err := ulid.Parse(f.ULID)
	if err != nil {
		return nil, fmt.Errorf("invalid sync record ulid %q: %w", f.ULID, err)
	}
	ts, err := time.Parse(time.RFC3339, f.Timestamp)
	if err != nil {
		return nil, fmt.Errorf("invalid sync record timestamp %q: %w", f.Timestamp, err)
	}
	ulidTime := ulid.Time(id.Time())
	if !ts.UTC().Truncate(time.Second).Equal(ulidTime.UTC().Truncate(time.Second)) {
		return nil, fmt.Errorf("sync record timestamp %s does not match ulid-encoded time %s", ts, ulidTime)
	}
	return &SyncRecord{
		ULID:           id,
		Timestamp:      ulidTime,
		SyncComplete:   f.SyncComplete,
		SyncerHostname: f.SyncerHostname,
	}, nil
}
