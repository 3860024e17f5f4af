package status

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/videoreport/api/job"
)

func marshalMetadata(m *job.ProcessingMetadata) ([]byte, error) {
	b, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal processing metadata: %w", err)
	}
	return b, nil
}

func unmarshalMetadata(b []byte) (*job.ProcessingMetadata, error) {
	var m job.ProcessingMetadata
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("failed to unmarshal processing metadata: %w", err)
	}
	return &m, nil
}

// marshalSceneSet stores the completed-OCR-scene set as a sorted JSON array
// of scene indices rather than a JSON object, since Postgres's json column
// doesn't need map key ordering guarantees and an array is more compact.
func marshalSceneSet(set map[int]bool) ([]byte, error) {
	indices := make([]int, 0, len(set))
	for i, ok := range set {
		if ok {
			indices = append(indices, i)
		}
	}
	sort.Ints(indices)
	b, err := json.Marshal(indices)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal completed scene set: %w", err)
	}
	return b, nil
}

func unmarshalSceneSet(b []byte) (map[int]bool, error) {
	set := map[int]bool{}
	if len(b) == 0 {
		return set, nil
	}
	var indices []int
	if err := json.Unmarshal(b, &indices); err != nil {
		return nil, fmt.Errorf("failed to unmarshal completed scene set: %w", err)
	}
	for _, i := range indices {
		set[i] = true
	}
	return set, nil
}
