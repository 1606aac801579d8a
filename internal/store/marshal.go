package store

import (
	"encoding/json"
	"fmt"

	"github.com/roach88/lavadb/internal/model"
)

// Sequence columns are stored as JSON arrays in TEXT. json.Marshal of an
// integer slice is deterministic, so the unique indexes over these columns
// compare whole sequences with order preserved. Empty sequences serialize
// as "[]", never "null", so candidates with and without an empty sequence
// collide correctly.

// marshalLabels converts a label sequence to its TEXT column form.
func marshalLabels(labels []uint32) (string, error) {
	if len(labels) == 0 {
		return "[]", nil
	}
	data, err := json.Marshal(labels)
	if err != nil {
		return "", fmt.Errorf("marshal labels: %w", err)
	}
	return string(data), nil
}

// unmarshalLabels parses a TEXT column back into a label sequence.
func unmarshalLabels(data string) ([]uint32, error) {
	var labels []uint32
	if err := json.Unmarshal([]byte(data), &labels); err != nil {
		return nil, fmt.Errorf("unmarshal labels: %w", err)
	}
	if labels == nil {
		labels = []uint32{}
	}
	return labels, nil
}

// marshalRefs converts a reference sequence to its TEXT column form.
// Zero entries (permitted nulls, e.g. untainted dua bytes) serialize as 0.
func marshalRefs(refs []model.RecID) (string, error) {
	if len(refs) == 0 {
		return "[]", nil
	}
	data, err := json.Marshal(refs)
	if err != nil {
		return "", fmt.Errorf("marshal refs: %w", err)
	}
	return string(data), nil
}

// unmarshalRefs parses a TEXT column back into a reference sequence.
func unmarshalRefs(data string) ([]model.RecID, error) {
	var refs []model.RecID
	if err := json.Unmarshal([]byte(data), &refs); err != nil {
		return nil, fmt.Errorf("unmarshal refs: %w", err)
	}
	if refs == nil {
		refs = []model.RecID{}
	}
	return refs, nil
}
