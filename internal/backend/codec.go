package backend

import (
	"encoding/json"
	"fmt"

	"github.com/gezibash/dbbench/internal/dataset"
)

// MarshalRecord encodes a record as JSON for stores without native arrays.
func MarshalRecord(rec *dataset.Record) ([]byte, error) {
	data, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("encode record %s: %w", rec.UserID, err)
	}
	return data, nil
}

// UnmarshalRecord decodes a record written by MarshalRecord.
func UnmarshalRecord(data []byte) (*dataset.Record, error) {
	var rec dataset.Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decode record: %w", err)
	}
	return &rec, nil
}
