package instance

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// ownerRecord identifies the process holding a guard. It is written after
// acquisition and cleared on release, so a record found by the next holder
// means the previous one never released.
type ownerRecord struct {
	PID        int       `json:"pid"`
	Hostname   string    `json:"hostname"`
	AcquiredAt time.Time `json:"acquired_at"`
}

func currentOwner() ownerRecord {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	return ownerRecord{
		PID:        os.Getpid(),
		Hostname:   hostname,
		AcquiredAt: time.Now(),
	}
}

// parseOwnerRecord returns nil for an empty (released) record.
func parseOwnerRecord(data []byte) (*ownerRecord, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, nil
	}

	var rec ownerRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to parse owner record: %w", err)
	}
	return &rec, nil
}
